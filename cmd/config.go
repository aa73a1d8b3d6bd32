package cmd

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/config"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect the config file",
	Long: `Create and inspect the relaychat config file.

Every key can be overridden with a RELAYCHAT_ environment variable, for
example RELAYCHAT_UPSTREAM_PROVIDER=mock or RELAYCHAT_CLIENT_TRANSPORT=ws.

Examples:
  relaychat config init
  relaychat config show
  relaychat config path`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Run the setup wizard and write the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if configPath == "" && config.Exists() && !configForce {
		path, _ := config.GetConfigPath()
		return errors.Errorf("%s already exists (use --force to overwrite)", path)
	}
	wizardCfg, err := ui.RunSetupWizard()
	if err != nil {
		return errors.Wrap(err, "setup cancelled")
	}
	if err := config.Save(wizardCfg, configPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, "config saved"))
	return nil
}

// maskSecret keeps a short prefix so the key can be recognised.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "********"
}

func printConfig(w io.Writer, c *config.Config) error {
	out := *c
	out.Upstream.APIKey = maskSecret(c.Upstream.APIKey)
	out.Server.Token = maskSecret(c.Server.Token)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return enc.Close()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return printConfig(cmd.OutOrStdout(), cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
	return err
}
