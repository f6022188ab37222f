package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// VersionResult is the output of the version command.
type VersionResult struct {
	Version string `json:"version"`
	Go      string `json:"go"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(VersionResult{Version: Version, Go: runtime.Version()})
		},
	}
}

// RenderText implements textRenderer.
func (r VersionResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "rankwatch %s (%s)\n", r.Version, r.Go)
}
