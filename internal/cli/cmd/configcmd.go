package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"plexprep/internal/config"
	"plexprep/internal/dirs"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write a default config.toml",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("path")
			force, _ := cmd.Flags().GetBool("force")
			if path == "" {
				p, err := dirs.DefaultConfigFile()
				if err != nil {
					return &ExitError{Code: ExitConfigError, Err: err}
				}
				path = p
			}
			if err := config.WriteDefault(path, force); err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("path", "", "Destination (default: <user config dir>/plexprep/config.toml)")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration as TOML",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			data, err := toml.Marshal(env.cfg)
			if err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			if f := config.UsedFile(); f != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", f)
			}
			_, _ = cmd.OutOrStdout().Write(data)
			return nil
		},
	}
}
