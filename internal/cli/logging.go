package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// setupLogging installs the default slog logger: text on stderr, Debug
// with --verbose, and a copy in --log-file when set. The returned function
// closes the log file.
func setupLogging(opts *RootOptions, stderr io.Writer, logFile string) (*slog.Logger, func(), error) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}

	w := stderr
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closeFn = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
