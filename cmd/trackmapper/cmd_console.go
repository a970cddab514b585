package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/trackmapper/editor/internal/dispatcher"
	"github.com/trackmapper/editor/internal/handlers"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Edit paths and rasters interactively",
	Long: "Reads editing commands from stdin, one per line. Type 'help' for the\n" +
		"command list and 'quit' to leave. Logs go to the logs directory.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		loadConfig(cmd.ErrOrStderr())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		d, err := dispatcher.New(a.log.With("component", "dispatcher"))
		if err != nil {
			return err
		}
		svc := handlers.NewService(handlers.Dependencies{
			Session: a.session,
			Job:     a.job,
			Logger:  a.log,
		})
		svc.Register(d)

		out := cmd.OutOrStdout()
		console := handlers.NewConsole(d, a.notices, out)
		console.SetPrompt("> ")
		fmt.Fprintf(out, "trackmapper %s, session %s. Type 'help' for commands.\n", version, a.sessionID)

		if err := console.Run(ctx, cmd.InOrStdin()); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
