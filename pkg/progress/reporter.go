/**
 * Replay Reporter
 * Provides different output formats for replay progress
 *
 * Features:
 * - Terminal output with a progress bar
 * - JSON lines for programmatic consumption
 * - Quiet mode for minimal output
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-07: Initial implementation
 */

package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// OutputFormat defines the output format for progress reporting
type OutputFormat string

const (
	OutputFormatTerminal OutputFormat = "terminal"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatQuiet    OutputFormat = "quiet"
)

// Reporter renders a Tracker's progress.
type Reporter struct {
	format      OutputFormat
	output      io.Writer
	tracker     *Tracker
	progressBar *progressbar.ProgressBar
	refreshRate time.Duration
	lastUpdate  time.Time
	updateMu    sync.Mutex
	done        chan struct{}
	wg          sync.WaitGroup
}

// ReporterConfig configures a progress reporter
type ReporterConfig struct {
	Format      OutputFormat
	Output      io.Writer
	RefreshRate time.Duration
	ShowETA     bool
	Description string
}

// NewReporter creates a new progress reporter
func NewReporter(tracker *Tracker, config ReporterConfig) *Reporter {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.RefreshRate == 0 {
		config.RefreshRate = 100 * time.Millisecond
	}
	if config.Format == "" {
		config.Format = OutputFormatTerminal
	}
	if config.Description == "" {
		config.Description = "Replaying"
	}

	r := &Reporter{
		format:      config.Format,
		output:      config.Output,
		tracker:     tracker,
		refreshRate: config.RefreshRate,
		done:        make(chan struct{}),
	}

	if config.Format == OutputFormatTerminal {
		r.progressBar = progressbar.NewOptions64(
			-1,
			progressbar.OptionSetWriter(config.Output),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription("[cyan]"+config.Description+"[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(config.ShowETA),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(config.Output, "\n")
			}),
		)
	}

	return r
}

// Start begins reporting progress
func (r *Reporter) Start() {
	updates := r.tracker.Subscribe()

	r.wg.Add(1)
	go r.processUpdates(updates)

	if r.format == OutputFormatTerminal {
		r.wg.Add(1)
		go r.refreshTerminal()
	}
}

// Stop stops reporting and writes the final state.
func (r *Reporter) Stop() {
	close(r.done)
	r.wg.Wait()

	snapshot := r.tracker.GetSnapshot()
	switch r.format {
	case OutputFormatTerminal:
		r.updateProgressBar(snapshot)
		if r.progressBar != nil {
			r.progressBar.Finish()
		}
	case OutputFormatJSON:
		r.reportJSON(snapshot)
	case OutputFormatQuiet:
		r.reportQuiet(snapshot)
	}
}

// processUpdates processes incoming progress updates
func (r *Reporter) processUpdates(updates <-chan Update) {
	defer r.wg.Done()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			r.handleUpdate(update)

		case <-r.done:
			// Drain what was already delivered so late errors are not lost.
			for {
				select {
				case update, ok := <-updates:
					if !ok {
						return
					}
					r.handleUpdate(update)
				default:
					r.tracker.Unsubscribe(updates)
					return
				}
			}
		}
	}
}

func (r *Reporter) handleUpdate(update Update) {
	switch update.Type {
	case UpdateTypeError:
		r.reportError(update.Error)
	case UpdateTypeState:
		r.reportStateChange()
	default:
		if r.format == OutputFormatJSON {
			r.updateMu.Lock()
			if time.Since(r.lastUpdate) > r.refreshRate {
				r.reportJSON(r.tracker.GetSnapshot())
				r.lastUpdate = time.Now()
			}
			r.updateMu.Unlock()
		}
	}
}

// refreshTerminal refreshes terminal display periodically
func (r *Reporter) refreshTerminal() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.updateProgressBar(r.tracker.GetSnapshot())
		case <-r.done:
			return
		}
	}
}

// updateProgressBar updates the terminal progress bar
func (r *Reporter) updateProgressBar(snapshot ProgressSnapshot) {
	if r.progressBar == nil {
		return
	}

	r.progressBar.Describe(formatDescription(snapshot))
	if snapshot.TotalFrames > 0 {
		r.progressBar.ChangeMax64(snapshot.TotalFrames)
	}
	r.progressBar.Set64(snapshot.ProcessedFrames)
}

// formatDescription formats the progress bar description
func formatDescription(snapshot ProgressSnapshot) string {
	var parts []string

	switch snapshot.State {
	case StateRunning:
		parts = append(parts, "[cyan]Replaying[reset]")
	case StateCompleted:
		parts = append(parts, "[green]Completed[reset]")
	case StateError:
		parts = append(parts, "[red]Completed with errors[reset]")
	}

	parts = append(parts, fmt.Sprintf("host %s", formatDuration(snapshot.HostTime)))
	parts = append(parts, fmt.Sprintf("%d resyncs", snapshot.Resyncs))

	if speedup := snapshot.Speedup(); speedup > 0 {
		parts = append(parts, fmt.Sprintf("%.0fx", speedup))
	}

	if snapshot.ErrorCount > 0 {
		parts = append(parts, fmt.Sprintf("[red]%d errors[reset]", snapshot.ErrorCount))
	}

	return strings.Join(parts, " | ")
}

// reportJSON outputs progress in JSON format
func (r *Reporter) reportJSON(snapshot ProgressSnapshot) {
	output := map[string]interface{}{
		"timestamp":        time.Now().Unix(),
		"type":             "progress",
		"state":            snapshot.State.String(),
		"total_frames":     snapshot.TotalFrames,
		"processed_frames": snapshot.ProcessedFrames,
		"resyncs":          snapshot.Resyncs,
		"host_seconds":     snapshot.HostTime.Seconds(),
		"percent":          snapshot.PercentComplete(),
		"frames_per_sec":   snapshot.FramesPerSecond(),
		"eta_seconds":      snapshot.ETA().Seconds(),
		"elapsed_seconds":  snapshot.ElapsedTime.Seconds(),
		"error_count":      snapshot.ErrorCount,
	}

	data, _ := json.Marshal(output)
	fmt.Fprintln(r.output, string(data))
}

// reportQuiet outputs minimal progress information
func (r *Reporter) reportQuiet(snapshot ProgressSnapshot) {
	fmt.Fprintf(r.output, "Replayed: %d frames, %s of host time in %s\n",
		snapshot.ProcessedFrames,
		formatDuration(snapshot.HostTime),
		formatDuration(snapshot.ElapsedTime))

	if snapshot.ErrorCount > 0 {
		fmt.Fprintf(r.output, "Errors: %d\n", snapshot.ErrorCount)
	}
}

// reportError reports an error
func (r *Reporter) reportError(err error) {
	switch r.format {
	case OutputFormatTerminal:
		if r.progressBar != nil {
			r.progressBar.Clear()
		}
		fmt.Fprintf(r.output, "Error: %v\n", err)
	case OutputFormatJSON:
		output := map[string]interface{}{
			"timestamp": time.Now().Unix(),
			"type":      "error",
			"error":     err.Error(),
		}
		data, _ := json.Marshal(output)
		fmt.Fprintln(r.output, string(data))
	case OutputFormatQuiet:
	}
}

// reportStateChange reports a state change
func (r *Reporter) reportStateChange() {
	if r.format != OutputFormatJSON {
		return
	}

	output := map[string]interface{}{
		"timestamp": time.Now().Unix(),
		"type":      "state_change",
		"state":     r.tracker.GetSnapshot().State.String(),
	}
	data, _ := json.Marshal(output)
	fmt.Fprintln(r.output, string(data))
}

// formatDuration formats duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
