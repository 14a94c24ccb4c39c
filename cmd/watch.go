package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pares/internal/catalog"
	"github.com/papapumpkin/pares/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [input-dir]",
	Short: "Re-run the analysis whenever the input tables change",
	Long: `Runs once, then watches the input directory (and the catalog file, if any)
and re-runs after every debounced batch of changes. Creating a file named
STOP in the input directory ends the watch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Int("debounce-ms", int(watch.DefaultDebounce/time.Millisecond), "quiet period before re-running")
	bindFlags(map[string]string{"debounce_ms": "debounce-ms"}, watchCmd.Flags().Lookup)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	once := func(ctx context.Context) {
		res, err := s.execute(ctx)
		if err != nil {
			s.printer.Error(err.Error())
			return
		}
		s.report(res, "", 10)
	}
	once(ctx)

	var extra []string
	if s.cfg.ScenariosFile != "" {
		extra = append(extra, s.cfg.ScenariosFile)
	}
	w, err := watch.NewWatcher(s.cfg.InputDir, time.Duration(s.cfg.DebounceMS)*time.Millisecond, extra...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	s.printer.Info("watching " + s.cfg.InputDir + " (create " + watch.StopFile + " to stop)")

	err = w.Run(ctx, func(ctx context.Context, c watch.Change) {
		s.printer.Rerun(c.Files)
		if s.cfg.ScenariosFile != "" {
			cat, err := catalog.Load(s.cfg.ScenariosFile)
			if err != nil {
				s.printer.Error(err.Error())
				return
			}
			s.cat = cat
		}
		once(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
