package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// RegistryCmd groups operations over the whole cache registry, modeled
// on the teacher's DbCmd grouping pattern (cmd/qntx/commands/db.go).
var RegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and administer the whole cache registry",
}

var registryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "List every registered cache name",
	RunE:  runRegistryStats,
}

var registryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every cache's local memory, without emitting events",
	RunE:  runRegistryClear,
}

var registryDisposeCmd = &cobra.Command{
	Use:   "dispose",
	Short: "Dispose every cache, releasing goroutines and bus subscriptions",
	RunE:  runRegistryDispose,
}

func init() {
	RegistryCmd.AddCommand(registryStatsCmd)
	RegistryCmd.AddCommand(registryClearCmd)
	RegistryCmd.AddCommand(registryDisposeCmd)
}

func runRegistryStats(cmd *cobra.Command, args []string) error {
	_, r, err := openBundle()
	if err != nil {
		return err
	}

	names := r.Names()
	sort.Strings(names)
	fmt.Printf("%d registered caches:\n", len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runRegistryClear(cmd *cobra.Command, args []string) error {
	_, r, err := openBundle()
	if err != nil {
		return err
	}
	if err := r.Clear(); err != nil {
		return err
	}
	fmt.Println("cleared every registered cache")
	return nil
}

func runRegistryDispose(cmd *cobra.Command, args []string) error {
	_, r, err := openBundle()
	if err != nil {
		return err
	}
	if err := r.Dispose(context.Background()); err != nil {
		return err
	}
	fmt.Println("disposed every registered cache")
	return nil
}
