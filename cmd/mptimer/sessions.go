package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/util"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Manage recorded sessions",
	Long: `List, inspect, export, import and delete sessions in the journal.

Sessions are recorded by 'mptimer simulate --record' or imported from
JSON-lines files, and can be replayed with 'mptimer replay'.`,
	Example: `  # List recent sessions
  mptimer sessions list

  # Show one session with aggregate statistics
  mptimer sessions show 3f2a

  # Export a session and import it elsewhere
  mptimer sessions export 3f2a -o run.jsonl
  mptimer sessions import run.jsonl --label copy`,
}

var (
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList,
	}

	sessionsShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show session details",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSessionsShow,
	}

	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its observations",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDelete,
	}

	sessionsExportCmd = &cobra.Command{
		Use:   "export [session-id]",
		Short: "Export a session as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSessionsExport,
	}

	sessionsCompactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Check and compact the journal database",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCompact,
	}

	sessionsImportCmd = &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import a JSON-lines session into the journal",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsImport,
	}
)

var (
	listLimit     int
	deleteYes     bool
	exportOutput  string
	importLabel   string
	importPeriod  time.Duration
	importSkipped bool
)

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsCmd.AddCommand(sessionsCompactCmd)

	sessionsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum sessions to list")
	sessionsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output file (default stdout)")
	sessionsImportCmd.Flags().StringVarP(&importLabel, "label", "l", "", "Session label")
	sessionsImportCmd.Flags().DurationVar(&importPeriod, "period", 0,
		"Regeneration period of the imported session (default timing.period)")
	sessionsImportCmd.Flags().BoolVar(&importSkipped, "show-skipped", false,
		"List every skipped record")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	manager, err := a.State()
	if err != nil {
		return err
	}

	sessions, err := manager.ListSessions(cmd.Context(), listLimit, 0)
	if err != nil {
		return err
	}

	fmt.Println(color.CyanString("📼 Recorded Sessions"))
	fmt.Println()

	if len(sessions) == 0 {
		fmt.Println(color.YellowString("No recorded sessions."))
		fmt.Println("\nUse 'mptimer simulate --record' to record one")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Label", "Source", "Started", "Period", "Frames", "Status"})

	for _, session := range sessions {
		t.AppendRow(table.Row{
			session.ID[:8],
			session.DisplayLabel(),
			session.Source,
			session.StartTime.Local().Format("Jan 2 15:04"),
			session.Period(),
			session.SampleCount,
			statusText(session.Status),
		})
	}
	t.Render()

	fmt.Printf("\nShowing %d sessions | Journal: %s (%s)\n", len(sessions),
		manager.DB().Path(), util.FormatBytes(journalSize(manager.DB().Path())))
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	session, err := resolveSession(cmd.Context(), a, args)
	if err != nil {
		return err
	}
	manager, err := a.State()
	if err != nil {
		return err
	}
	stats, err := manager.GetSessionStats(cmd.Context(), session.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s Session Details: %s\n",
		color.GreenString("▶"),
		color.CyanString(session.ID))
	fmt.Println(strings.Repeat("─", 50))

	for _, row := range sessionInfo(session) {
		fmt.Printf("%-15s: %s\n", row[0], row[1])
	}

	fmt.Println()
	fmt.Println(color.YellowString("Observations:"))
	fmt.Printf("  Frames          : %d\n", stats.Observations)
	fmt.Printf("  Host span       : %s\n", state.FormatHostTime(stats.Span()))
	fmt.Printf("  Mean frame      : %.1fms\n", stats.MeanFrameMillis)
	fmt.Printf("  Context changes : %d\n", stats.ContextChanges)
	fmt.Printf("  Lucid frames    : %d\n", stats.LucidFrames)
	fmt.Printf("  Suppressed      : %d\n", stats.SuppressedFrames)
	fmt.Printf("  Value range     : %d - %d\n", stats.MinValue, stats.MaxValue)

	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	session, err := resolveSession(cmd.Context(), a, args)
	if err != nil {
		return err
	}

	if !deleteYes {
		var confirm bool
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Delete session %s (%d frames)?", session.DisplayLabel(), session.SampleCount),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			return nil
		}
	}

	manager, err := a.State()
	if err != nil {
		return err
	}
	if err := manager.DeleteSession(cmd.Context(), session.ID); err != nil {
		return err
	}

	fmt.Println(color.GreenString("✓ Deleted session %s", session.ID[:8]))
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	session, err := resolveSession(cmd.Context(), a, args)
	if err != nil {
		return err
	}
	manager, err := a.State()
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return mperrors.New(mperrors.ErrorTypeStorage, "journal.export", exportOutput, err)
		}
		defer f.Close()
		w = f
	}

	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	count := 0
	err = manager.EachObservation(cmd.Context(), session.ID, func(obs *state.Observation) error {
		count++
		return writeObservation(enc, obs)
	})
	if err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return mperrors.New(mperrors.ErrorTypeStorage, "journal.export", exportOutput, err)
	}

	if exportOutput != "" {
		fmt.Printf("%s Exported %d frames to %s\n", color.GreenString("✓"), count, exportOutput)
	}
	return nil
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := a.Context(cmd.Context())
	defer cancel()

	observations, skipped, err := readObservationsFile(args[0])
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		return mperrors.New(mperrors.ErrorTypeInput, "journal.import", args[0],
			fmt.Errorf("no valid records"))
	}

	period := importPeriod
	if period <= 0 {
		period = a.Config().Timing.Period
	}
	label := importLabel
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	rec, err := startRecording(ctx, a, state.SessionOptions{
		Label:  label,
		Source: state.SourceImport,
		Period: period,
	})
	if err != nil {
		return err
	}

	var runErr error
	for _, obs := range observations {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		if err := rec.Add(ctx, obs); err != nil {
			if runErr = a.Flush(ctx, rec); runErr != nil {
				break
			}
		}
	}
	if err := finishRecording(a, rec, runErr); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("%s Imported %d frames as session %s\n",
		color.GreenString("✓"), len(observations), color.CyanString(rec.SessionID()))
	if skipped.HasErrors() {
		fmt.Println(color.YellowString("Skipped %d malformed records", len(skipped.Errors)))
		if importSkipped {
			for _, skipErr := range skipped.Errors {
				fmt.Printf("  line %v: %v\n", skipErr.Context["line"], skipErr.Err)
			}
		}
	}
	return nil
}

func runSessionsCompact(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	manager, err := a.State()
	if err != nil {
		return err
	}
	if err := manager.HealthCheck(cmd.Context()); err != nil {
		return mperrors.New(mperrors.ErrorTypeCorruption, "journal.check", manager.DB().Path(), err)
	}

	path := manager.DB().Path()
	before := journalSize(path)
	if err := manager.Vacuum(cmd.Context()); err != nil {
		return mperrors.New(mperrors.ErrorTypeStorage, "journal.compact", path, err)
	}

	fmt.Printf("%s Journal compacted: %s → %s\n", color.GreenString("✓"),
		util.FormatBytes(before), util.FormatBytes(journalSize(path)))
	return nil
}

func journalSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// sessionInfo lists the detail rows shown for a session.
func sessionInfo(session *state.Session) [][]string {
	durationLabel := "Recorded for"
	if session.IsRecording() {
		durationLabel = "Recording for"
	}

	info := [][]string{
		{"Label", session.DisplayLabel()},
		{"Source", session.Source},
		{"Status", statusText(session.Status)},
		{"Started", session.StartTime.Local().Format("Jan 2, 2006 3:04:05 PM")},
		{durationLabel, state.FormatDuration(session.Duration())},
		{"Period", session.Period().String()},
	}
	if session.Seed.Valid {
		info = append(info, []string{"Seed", fmt.Sprintf("%d", session.Seed.Int64)})
	}
	return info
}

func statusText(status string) string {
	switch status {
	case state.SessionStatusCompleted:
		return color.GreenString("✓ Completed")
	case state.SessionStatusFailed:
		return color.RedString("✗ Failed")
	case state.SessionStatusRecording:
		return color.YellowString("● Recording")
	default:
		return status
	}
}
