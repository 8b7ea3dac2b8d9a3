// Command qkvcadmin is an operator's CLI for inspecting and administering
// a QKVC cache installation, modeled on the teacher's cmd/qntx entry
// point: a cobra root command wiring independent subcommand packages,
// with the global logger initialized once in PersistentPreRunE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedimesh/qkvc/cmd/qkvcadmin/commands"
	"github.com/fedimesh/qkvc/logging"
)

var rootCmd = &cobra.Command{
	Use:   "qkvcadmin",
	Short: "qkvcadmin - operate a QKVC cache installation",
	Long: `qkvcadmin - operational tooling for the quantum key-value cache.

Examples:
  qkvcadmin registry stats
  qkvcadmin registry clear
  qkvcadmin cache get userById u1
  qkvcadmin cache delete userByAcct alice
  qkvcadmin cluster serve`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(false)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.DBPath, "db", "", "path to the sqlite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "path to an explicit qkvc.toml")

	rootCmd.AddCommand(commands.RegistryCmd)
	rootCmd.AddCommand(commands.CacheCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ClusterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
