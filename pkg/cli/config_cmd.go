package cli

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taotie/internal/ingest"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user config",
	}

	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd(opts))
	cmd.AddCommand(newConfigAddDatasetCmd(opts))
	cmd.AddCommand(newConfigRemoveDatasetCmd(opts))

	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective user config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig(opts.configPath)
			if err != nil {
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}
			if opts.output == formatJSON {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show connection passwords unmasked")

	return cmd
}

func newConfigPathCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), opts.configPath)
			return err
		},
	}
}

func newConfigAddDatasetCmd(opts *globalOptions) *cobra.Command {
	var name, table string

	cmd := &cobra.Command{
		Use:   "add-dataset <conn>",
		Short: "Connect a dataset every time the shell starts",
		Example: `  taotie config add-dataset /data/trips.csv.gz --name trips
  taotie config add-dataset postgres://user@localhost/shop --name orders --table public.orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if _, err := ingest.ParseConn(args[0]); err != nil {
				return err
			}

			cfg, err := LoadUserConfig(opts.configPath)
			if err != nil {
				return err
			}
			entry := DatasetEntry{Name: name, Conn: args[0], Table: table}
			if i := slices.IndexFunc(cfg.Datasets, func(d DatasetEntry) bool { return d.Name == name }); i >= 0 {
				cfg.Datasets[i] = entry
			} else {
				cfg.Datasets = append(cfg.Datasets, entry)
			}
			if err := SaveUserConfig(opts.configPath, cfg); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s saved to %s\n", name, opts.configPath)
			return err
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Dataset name")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Source table (postgres only)")

	return cmd
}

func newConfigRemoveDatasetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-dataset <name>",
		Short: "Stop connecting a dataset at startup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig(opts.configPath)
			if err != nil {
				return err
			}
			before := len(cfg.Datasets)
			cfg.Datasets = slices.DeleteFunc(cfg.Datasets, func(d DatasetEntry) bool { return d.Name == args[0] })
			if len(cfg.Datasets) == before {
				return fmt.Errorf("dataset %q is not in %s", args[0], opts.configPath)
			}
			return SaveUserConfig(opts.configPath, cfg)
		},
	}
}

// maskConfig returns a copy of cfg with connection passwords masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := *cfg
	masked.Datasets = make([]DatasetEntry, len(cfg.Datasets))
	for i, d := range cfg.Datasets {
		d.Conn = maskConn(d.Conn)
		masked.Datasets[i] = d
	}
	return &masked
}

// maskConn hides the password of a URL-style connection string.
func maskConn(conn string) string {
	u, err := url.Parse(conn)
	if err != nil || u.User == nil {
		return conn
	}
	if _, ok := u.User.Password(); !ok {
		return conn
	}
	return u.Redacted()
}
