package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/rankwatch/internal/config"
)

// ConfigInitOptions holds flags for config init.
type ConfigInitOptions struct {
	*RootOptions
	GamePath string
	Language string
	Force    bool
}

// ConfigResult is the output of the config commands.
type ConfigResult struct {
	Path   string            `json:"path"`
	Values map[string]string `json:"values"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the config file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigInitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file for a game installation",
		Long: `Write the config file with the game installation directory. The
campaign save and insignia paths are derived from it.

Example:
  rankwatch config init --game-path "C:/Games/IL-2 Sturmovik Great Battles"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GamePath, "game-path", "", "game installation directory (required)")
	_ = cmd.MarkFlagRequired("game-path")
	cmd.Flags().StringVar(&opts.Language, "language", config.DefaultLanguage, "display language (RU, CHS, ENG, DEU, ESP, POL, FRA)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Aliases:       []string{"validate"},
		Short:         "Validate the config file and print the resolved values",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	}
}

func runConfigInit(opts *ConfigInitOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if _, ok := config.LocaleMap[opts.Language]; !ok {
		return out.Fail(ExitCommandError, CodeConfig, fmt.Sprintf("unsupported language %q", opts.Language), nil)
	}
	if info, err := os.Stat(opts.GamePath); err != nil || !info.IsDir() {
		return out.Fail(ExitCommandError, CodeConfig, fmt.Sprintf("game directory not found: %s", opts.GamePath), err)
	}
	if _, err := os.Stat(opts.Config); err == nil && !opts.Force {
		return out.Fail(ExitCommandError, CodeConfig,
			fmt.Sprintf("%s already exists (use --force to overwrite)", opts.Config), nil)
	}

	cfg := config.Default()
	cfg.GamePath = opts.GamePath
	cfg.Language = opts.Language
	if err := config.Save(opts.Config, cfg); err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to write config", err)
	}

	if _, err := os.Stat(cfg.DBPath()); errors.Is(err, os.ErrNotExist) {
		out.VerboseLog("warning: campaign save %s does not exist yet", cfg.DBPath())
	}
	return out.Success(ConfigResult{Path: opts.Config, Values: cfg.Summary()})
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out.Fail(ExitCommandError, CodeConfig,
				fmt.Sprintf("%s not found (run 'rankwatch config init')", opts.Config), err)
		}
		return out.Fail(ExitCommandError, CodeConfig, "invalid config", err)
	}
	return out.Success(ConfigResult{Path: opts.Config, Values: cfg.Summary()})
}

// RenderText implements textRenderer.
func (r ConfigResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Config: %s\n", r.Path)
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %s\n", k, r.Values[k])
	}
}
