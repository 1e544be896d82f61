// Package cli implements the taotie command line: the interactive shell,
// one-shot commands, and the HTTP server entry point.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"taotie/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	output     outputFormat
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{output: formatTable}

	rootCmd := &cobra.Command{
		Use:   "taotie",
		Short: "Interactive dataset exploration shell",
		Long: `Taotie connects CSV, JSON, Parquet, and Postgres datasets to an embedded
DuckDB session and lets you list, inspect, query, and describe them.

Run without a subcommand to start the interactive shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.VarP(&opts.output, "output", "o", "Output format (table, json)")
	pf.StringVar(&opts.configPath, "config", ConfigPath(), "User config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Environment file read before the process environment")

	rootCmd.AddCommand(newReplCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newDescribeCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newReplCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}
}

// loadSettings reads .env, the environment, and the user config. The user
// config's output format applies unless --output was given.
func loadSettings(cmd *cobra.Command, opts *globalOptions) (*config.Config, *UserConfig, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	user, err := LoadUserConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cmd.Flags().Changed("output") && user.Output != "" {
		if err := opts.output.Set(user.Output); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", opts.configPath, err)
		}
	}
	return cfg, user, nil
}

func newTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
