package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/trackmapper/editor/internal/config"
	"github.com/trackmapper/editor/internal/editor"
	"github.com/trackmapper/editor/internal/plan"
)

var applyLogToFile bool

var applyCmd = &cobra.Command{
	Use:   "apply <plan.yaml>",
	Short: "Apply a YAML track plan non-interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		loadConfig(cmd.ErrOrStderr())

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, applyLogToFile)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		res, applyErr := plan.Apply(ctx, p, plan.Dependencies{
			Session:     a.session,
			Job:         a.job,
			Concurrency: config.GetInt("plan.fetchConcurrency"),
			Logger:      a.log.With("component", "plan"),
		})

		out := cmd.OutOrStdout()
		printNotices(cmd, a.notices)
		if res != nil {
			fmt.Fprintf(out, "rasters: %d, paths: %d, skipped clicks: %d, discarded paths: %d, unclosed paths: %d\n",
				len(res.RasterKeys), len(res.PathKeys), res.SkippedClicks, res.DiscardedPaths, res.UnclosedPaths)
			if res.Submitted {
				fmt.Fprintf(out, "track %q: %s\n", res.Job.Track, res.Job.State)
			}
		}
		return applyErr
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyLogToFile, "log-file", false, "write logs to the logs directory instead of stderr")
}

func printNotices(cmd *cobra.Command, notices *editor.NoticeQueue) {
	for _, n := range notices.Drain() {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", n.Level, n.Message)
	}
}
