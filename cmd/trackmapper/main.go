package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "trackmapper",
	Short: "Draw routed paths over raster footprints and submit tracks",
	Long: "trackmapper edits track definitions against a track mapper backend:\n" +
		"paths are snapped to the routing graph, rasters are registered by file\n" +
		"path and the result is submitted for track creation.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing trackmapper.cfg.json")
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
