package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedimesh/qkvc/config"
)

// ConfigCmd groups configuration inspection commands, modeled on the
// teacher's `am` command group (cmd/qntx/commands/am.go).
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and validate the active configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration as TOML",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the active configuration",
	RunE:  runConfigValidate,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func loadConfig() (*config.Config, error) {
	if ConfigPath != "" {
		return config.LoadFromFile(ConfigPath)
	}
	return config.Load()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rendered, err := cfg.Render()
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fmt.Println("configuration is valid")
	return nil
}
