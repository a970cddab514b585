package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackmapper/editor/internal/api"
	"github.com/trackmapper/editor/internal/config"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig(cmd.ErrOrStderr())

		apiCfg := config.GetAPIConfig()
		client := api.New(apiCfg.ServerURL, apiCfg.Timeout)

		start := time.Now()
		if err := client.Healthcheck(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s reachable in %s\n", apiCfg.ServerURL, time.Since(start).Round(time.Millisecond))
		return nil
	},
}
