package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/VatsalSy/MPTimer/internal/app"
	"github.com/VatsalSy/MPTimer/internal/sim"
	"github.com/VatsalSy/MPTimer/internal/state"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the estimator against a simulated host session",
	Long: `Generate a deterministic host session from a hidden server tick and feed
it through the estimator. The simulator knows the true tick, so the
report includes the estimate's drift.

Sessions can be recorded to the journal for later replay, and the
estimator's Prometheus metrics can be served while the session runs.`,
	Example: `  # Two simulated minutes, as fast as possible
  mptimer simulate

  # Record a labelled session with zone changes every 40s
  mptimer simulate --record --label ley-lines --zone-every 40s

  # Serve metrics while pacing the session in real time
  mptimer simulate --duration 10m --metrics-addr :9120`,
	RunE: runSimulate,
}

var (
	simSeed        int64
	simDuration    time.Duration
	simRecord      bool
	simLabel       string
	simMetricsAddr string
	simZoneEvery   time.Duration
	simRealtime    bool
	simTrace       bool
	simFormat      string
)

func init() {
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Simulator random seed")
	simulateCmd.Flags().DurationVarP(&simDuration, "duration", "d", 2*time.Minute,
		"Host time to simulate")
	simulateCmd.Flags().BoolVarP(&simRecord, "record", "r", false,
		"Record the session to the journal")
	simulateCmd.Flags().StringVarP(&simLabel, "label", "l", "", "Label for the recorded session")
	simulateCmd.Flags().StringVar(&simMetricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (implies --realtime)")
	simulateCmd.Flags().DurationVar(&simZoneEvery, "zone-every", 0,
		"Simulate a zone change this often (0 disables)")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false,
		"Pace frames against the wall clock")
	simulateCmd.Flags().BoolVar(&simTrace, "trace", false,
		"Print every estimator cycle that moved the estimate")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", formatTable,
		"Statistics format (table, json, yaml)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := validateFormat(simFormat); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := a.Context(cmd.Context())
	defer cancel()

	cfg := a.Config()
	simCfg := sim.DefaultConfig()
	simCfg.Seed = simSeed
	simCfg.Period = cfg.Timing.Period
	simCfg.ZoneChangeEvery = simZoneEvery
	simulator := sim.New(simCfg)

	opts, err := a.TrackerOptions()
	if err != nil {
		return err
	}
	drv := newDriver(opts, nil)
	if simTrace {
		drv.trace = os.Stdout
	}

	var rec *state.Recorder
	if simRecord {
		rec, err = startRecording(ctx, a, state.SessionOptions{
			Label:  simLabel,
			Source: state.SourceSimulate,
			Seed:   &simSeed,
			Period: simCfg.Period,
		})
		if err != nil {
			return err
		}
	}

	realtime := simRealtime || simMetricsAddr != ""
	g, gctx := errgroup.WithContext(ctx)
	simDone := make(chan struct{})

	if simMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.Registry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: simMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.Logger().Info("Serving metrics", "addr", simMetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-simDone:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer close(simDone)
		return simulateLoop(gctx, a, simulator, drv, rec, realtime)
	})

	runErr := a.Logger().With("seed", simSeed, "duration", simDuration.String()).LogOperation("simulate", g.Wait)
	if rec != nil {
		if err := finishRecording(a, rec, runErr); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	fmt.Fprintln(os.Stdout)
	if runErr != nil {
		fmt.Println(color.YellowString("Simulation interrupted"))
	}
	if rec != nil {
		fmt.Printf("%s Recorded session %s (%d frames)\n",
			color.GreenString("✓"), color.CyanString(rec.SessionID()), rec.NextSeq())
	}
	return printStats(os.Stdout, drv.stats.GetStats(), simFormat)
}

func simulateLoop(ctx context.Context, a *app.App, simulator *sim.Simulator,
	drv *driver, rec *state.Recorder, realtime bool) error {
	start := time.Now()

	for {
		f := simulator.Next()
		if f.Sample.Now > simDuration {
			return nil
		}

		if realtime {
			if wait := f.Sample.Now - time.Since(start); wait > 0 {
				pace := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					pace.Stop()
					return ctx.Err()
				case <-pace.C:
				}
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		drv.step(f.Sample, f.ContextChanged, f.TrueTick)

		if rec != nil {
			obs := state.NewObservation(rec.NextSeq(), f.Sample, f.ContextChanged, f.TrueTick)
			if err := rec.Add(ctx, obs); err != nil {
				if err := a.Flush(ctx, rec); err != nil {
					return err
				}
			}
		}
	}
}

// startRecording opens a journal session and its recorder.
func startRecording(ctx context.Context, a *app.App, opts state.SessionOptions) (*state.Recorder, error) {
	manager, err := a.State()
	if err != nil {
		return nil, err
	}

	session, err := manager.StartSession(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	a.Logger().Info("Recording session",
		"session", session.ID,
		"source", session.Source,
		"period", session.Period(),
	)

	return a.NewRecorder(session.ID)
}

// finishRecording flushes the remaining buffer and closes the session. The
// session is marked failed when the run itself failed.
func finishRecording(a *app.App, rec *state.Recorder, runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		manager, err := a.State()
		if err != nil {
			return err
		}
		if err := a.Flush(ctx, rec); err != nil {
			a.Logger().Error(err, "Failed to flush partial session", "session", rec.SessionID())
		}
		return manager.FinishSession(ctx, rec.SessionID(), state.SessionStatusFailed)
	}

	if err := a.Flush(ctx, rec); err != nil {
		return err
	}
	return rec.Close(ctx)
}
