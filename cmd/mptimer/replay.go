package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/VatsalSy/MPTimer/internal/app"
	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/pkg/progress"
)

var replayCmd = &cobra.Command{
	Use:   "replay [session-id | file.jsonl]",
	Short: "Replay a recorded session through the estimator",
	Long: `Feed a recorded session through a fresh estimator and report how it
behaved. The session is read from the journal by id or id prefix, or from
an exported JSON-lines file. Without an argument the latest journal
session is replayed.

The current timing tuning applies; the regeneration period is taken
from the session itself unless --period is given.`,
	Example: `  # Replay the latest recorded session
  mptimer replay

  # Replay by id prefix and print statistics as JSON
  mptimer replay 3f2a --format json

  # Replay an exported file with a different poll interval
  MPTIMER_TIMING_POLL_INTERVAL=50ms mptimer replay session.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

var (
	replayFormat   string
	replayProgress string
	replayPeriod   time.Duration
	replayTrace    bool
)

func init() {
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", formatTable,
		"Statistics format (table, json, yaml)")
	replayCmd.Flags().StringVar(&replayProgress, "progress", string(progress.OutputFormatTerminal),
		"Progress output (terminal, json, quiet, none)")
	replayCmd.Flags().DurationVar(&replayPeriod, "period", 0,
		"Override the regeneration period")
	replayCmd.Flags().BoolVar(&replayTrace, "trace", false,
		"Print every estimator cycle that moved the estimate")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := validateFormat(replayFormat); err != nil {
		return err
	}
	switch replayProgress {
	case string(progress.OutputFormatTerminal), string(progress.OutputFormatJSON),
		string(progress.OutputFormatQuiet), "none":
	default:
		return fmt.Errorf("unknown progress output %q", replayProgress)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := a.Context(cmd.Context())
	defer cancel()

	src, err := openReplaySource(ctx, a, args)
	if err != nil {
		return err
	}

	opts, err := a.TrackerOptions()
	if err != nil {
		return err
	}
	switch {
	case replayPeriod > 0:
		opts.Period = replayPeriod
	case src.period > 0:
		opts.Period = src.period
	}

	drv := newDriver(opts, nil)
	if replayTrace {
		drv.trace = os.Stdout
	}

	tracker := progress.NewTracker(100)
	tracker.SetTotal(src.total)
	var reporter *progress.Reporter
	if replayProgress != "none" {
		reporter = progress.NewReporter(tracker, progress.ReporterConfig{
			Format:      progress.OutputFormat(replayProgress),
			ShowETA:     true,
			Description: "Replaying " + src.name,
		})
		reporter.Start()
	}
	tracker.Start()

	if src.skipped != nil {
		for _, skipErr := range src.skipped.Errors {
			tracker.AddError(skipErr)
		}
	}

	log := a.Logger().With("source", src.name, "period", opts.Period.String())
	runErr := log.LogOperation("replay", func() error {
		return src.each(ctx, func(obs *state.Observation) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := drv.stepObservation(obs)
			tracker.AddFrame(obs.Now(), out.Updated && out.Outcome == tick.OutcomeResync)
			return nil
		})
	})
	if runErr != nil {
		tracker.AddError(runErr)
	}

	tracker.Stop()
	if reporter != nil {
		reporter.Stop()
	}

	if src.skipped != nil && src.skipped.HasErrors() {
		fmt.Fprintln(os.Stderr, color.YellowString("Skipped %d malformed records", len(src.skipped.Errors)))
		log.Warn("Skipped malformed records", "count", len(src.skipped.Errors), "first", src.skipped.Errors[0].Error())
	}
	if runErr != nil {
		if mperrors.IsContextError(runErr) {
			fmt.Fprintln(os.Stderr, color.YellowString("Replay interrupted"))
		} else {
			return runErr
		}
	}

	return printStats(os.Stdout, drv.stats.GetStats(), replayFormat)
}

// replaySource is a stream of observations from the journal or a file.
type replaySource struct {
	name    string
	period  time.Duration
	total   int64
	skipped *mperrors.ErrorBatch
	each    func(ctx context.Context, fn func(*state.Observation) error) error
}

func openReplaySource(ctx context.Context, a *app.App, args []string) (*replaySource, error) {
	if len(args) == 1 && isFile(args[0]) {
		observations, skipped, err := readObservationsFile(args[0])
		if err != nil {
			return nil, err
		}
		return &replaySource{
			name:    args[0],
			total:   int64(len(observations)),
			skipped: skipped,
			each: func(_ context.Context, fn func(*state.Observation) error) error {
				for _, obs := range observations {
					if err := fn(obs); err != nil {
						return err
					}
				}
				return nil
			},
		}, nil
	}

	session, err := resolveSession(ctx, a, args)
	if err != nil {
		return nil, err
	}
	manager, err := a.State()
	if err != nil {
		return nil, err
	}

	return &replaySource{
		name:   session.DisplayLabel(),
		period: session.Period(),
		total:  session.SampleCount,
		each: func(ctx context.Context, fn func(*state.Observation) error) error {
			return manager.EachObservation(ctx, session.ID, fn)
		},
	}, nil
}

// resolveSession finds the session named by args, or the latest one.
func resolveSession(ctx context.Context, a *app.App, args []string) (*state.Session, error) {
	manager, err := a.State()
	if err != nil {
		return nil, err
	}

	if len(args) == 0 {
		session, err := manager.LatestSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("no recorded session to replay: %w", err)
		}
		return session, nil
	}
	return manager.GetSession(ctx, args[0])
}
