package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/pares/internal/catalog"
	"github.com/papapumpkin/pares/internal/config"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/ingest"
	"github.com/papapumpkin/pares/internal/logging"
	"github.com/papapumpkin/pares/internal/pipeline"
	"github.com/papapumpkin/pares/internal/store"
	"github.com/papapumpkin/pares/internal/telemetry"
	"github.com/papapumpkin/pares/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Run the full analysis over a directory of CSV tables",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.String("scenario", "", "priority scenario to print (default: first in catalog)")
	f.Int("show-diagnostics", 20, "diagnostics to print (0 for all)")
	rootCmd.AddCommand(runCmd)
}

// session is the state shared by every command that executes a run.
type session struct {
	cfg     config.Config
	cat     *catalog.Catalog
	logger  *log.Logger
	printer *ui.Printer
}

func newSession(cmd *cobra.Command, args []string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(args) > 0 {
		cfg.InputDir = args[0]
	}
	cat, err := catalog.Load(cfg.ScenariosFile)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:     cfg,
		cat:     cat,
		logger:  logging.New(logging.Options{Verbose: cfg.Verbose}),
		printer: ui.New(cmd.OutOrStdout()),
	}, nil
}

// execute ingests the input directory, runs the pipeline and persists the
// result when an output database is configured. Ingest diagnostics are
// prepended to the run's own.
func (s *session) execute(ctx context.Context) (*pipeline.Result, error) {
	reg := s.cat.NewRegistry()
	ingestDiags, err := ingest.LoadDir(ctx, s.cfg.InputDir, reg)
	if err != nil {
		return nil, err
	}
	logging.Diagnostics(s.logger, ingestDiags)

	var events *telemetry.Emitter
	if s.cfg.EventsFile != "" {
		events, err = telemetry.NewEmitter(s.cfg.EventsFile)
		if err != nil {
			return nil, err
		}
		defer events.Close()
	}

	asOf, _, err := s.cfg.AsOfTime()
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, reg, s.cat, pipeline.Options{
		Strict:        s.cfg.Strict,
		TopN:          s.cfg.TopN,
		HalfLife:      s.cfg.HalfLife(),
		AsOf:          asOf,
		PowerWeighted: s.cfg.PowerWeighted,
		Inclusiveness: s.cfg.Inclusiveness,
		Parallel:      s.cfg.Parallel,
		Logger:        s.logger,
		Events:        events,
	})
	if err != nil {
		return nil, err
	}
	all := make(diag.List, 0, len(ingestDiags)+len(res.Diagnostics))
	all.Extend(ingestDiags)
	all.Extend(res.Diagnostics)
	res.Diagnostics = all

	if s.cfg.OutputDB != "" {
		if err := s.persist(ctx, res); err != nil {
			return nil, err
		}
		if err := events.Record(telemetry.KindPersisted, res.Summary.RunID, "", map[string]any{"db": s.cfg.OutputDB}); err != nil {
			s.logger.Warn("telemetry write failed", "err", err)
		}
	}
	return res, nil
}

func (s *session) persist(ctx context.Context, res *pipeline.Result) error {
	st, err := store.Open(ctx, s.cfg.OutputDB)
	if err != nil {
		return err
	}
	defer st.Close()
	run := store.Run{
		ID:         res.Summary.RunID,
		StartedAt:  res.Summary.StartedAt,
		FinishedAt: res.Summary.FinishedAt,
		InputDir:   s.cfg.InputDir,
		Catalog:    s.cfg.ScenariosFile,
		Strict:     s.cfg.Strict,
	}
	if err := st.SaveRun(ctx, run, res.Tables, res.Diagnostics); err != nil {
		return err
	}
	s.logger.Info("run stored", "db", s.cfg.OutputDB, "tables", len(res.Tables))
	return nil
}

// report prints the summary, feasibility, the bundle portfolio, priority
// rankings and the first diagnostics of a run.
func (s *session) report(res *pipeline.Result, scenario string, diagLimit int) {
	if scenario == "" {
		if sc := s.cat.PriorityScenarios(); len(sc) > 0 {
			scenario = sc[0].Name
		}
	}
	s.printer.Summary(res.Summary)
	s.printer.Feasibility(res.Feasibility)
	s.printer.Portfolio(res.Portfolio, s.cfg.TopN)
	s.printer.PriorityRankings(res.Priority, scenario, s.cfg.TopN)
	s.printer.Diagnostics(res.Diagnostics, diagLimit)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	res, err := s.execute(ctx)
	if err != nil {
		s.printer.Error(err.Error())
		return err
	}
	scenario, _ := cmd.Flags().GetString("scenario")
	limit, _ := cmd.Flags().GetInt("show-diagnostics")
	s.report(res, scenario, limit)
	s.logger.Debug("command finished", "elapsed", time.Since(start))
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
