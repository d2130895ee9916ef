package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/VatsalSy/MPTimer/internal/app"
	"github.com/VatsalSy/MPTimer/internal/config"
	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/sim"
	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
	"github.com/VatsalSy/MPTimer/pkg/progress"
)

const (
	refreshInterval = 50 * time.Millisecond
	resyncHint      = "re-sync after zone change"
	widthStep       = 5
	minBarWidth     = 10
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#73CBF7"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8CA1AE"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA622")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6B75"))
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id | file.jsonl]",
	Short: "Show the live tick bar",
	Long: `Render the tick bar in the terminal while frames arrive in real time.

Without an argument a simulated host session drives the bar. With a
session id or JSON-lines file, the recorded frames are played back at
their original pace.

Keys:
  q        quit
  p        pause / resume
  z        signal a zone change
  t        toggle the commit threshold marker
  + / -    widen / narrow the bar (unless display.lock_bar is set)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchSeed int64

func init() {
	watchCmd.Flags().Int64Var(&watchSeed, "seed", 1, "Simulator random seed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Stop()

	cfg := a.Config()
	opts, err := a.TrackerOptions()
	if err != nil {
		return err
	}

	var (
		source  frameSource
		name    string
		skipped *mperrors.ErrorBatch
	)
	if len(args) == 1 {
		var observations []*state.Observation
		if isFile(args[0]) {
			observations, skipped, err = readObservationsFile(args[0])
			name = args[0]
		} else {
			var session *state.Session
			session, err = resolveSession(cmd.Context(), a, args)
			if err == nil {
				opts.Period = session.Period()
				name = session.DisplayLabel()
				observations, err = loadSession(cmd.Context(), a, session)
			}
		}
		if err != nil {
			return err
		}
		source = &recordedSource{observations: observations}
	} else {
		simCfg := sim.DefaultConfig()
		simCfg.Seed = watchSeed
		simCfg.Period = cfg.Timing.Period
		source = simSource{sim: sim.New(simCfg)}
		name = fmt.Sprintf("simulated, seed %d", watchSeed)
	}

	m := newWatchModel(source, name, opts, cfg)
	if skipped != nil && skipped.HasErrors() {
		a.Logger().Warn("Skipped malformed records", "count", len(skipped.Errors), "first", skipped.Errors[0].Error())
		m = m.withSkipped(skipped)
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func loadSession(ctx context.Context, a *app.App, session *state.Session) ([]*state.Observation, error) {
	manager, err := a.State()
	if err != nil {
		return nil, err
	}
	return manager.LoadObservations(ctx, session.ID)
}

// watchFrame is one frame delivered to the watch view.
type watchFrame struct {
	sample         timer.Sample
	contextChanged bool
}

// frameSource yields frames in host-clock order.
type frameSource interface {
	next() (watchFrame, bool)
}

type simSource struct {
	sim *sim.Simulator
}

func (s simSource) next() (watchFrame, bool) {
	f := s.sim.Next()
	return watchFrame{sample: f.Sample, contextChanged: f.ContextChanged}, true
}

type recordedSource struct {
	observations []*state.Observation
	pos          int
}

func (s *recordedSource) next() (watchFrame, bool) {
	if s.pos >= len(s.observations) {
		return watchFrame{}, false
	}
	obs := s.observations[s.pos]
	s.pos++
	return watchFrame{sample: obs.Sample(), contextChanged: obs.ContextChanged}, true
}

type frameTickMsg time.Time

func watchTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// watchModel is the bubbletea model of the live bar.
type watchModel struct {
	source  frameSource
	name    string
	tracker *timer.Tracker
	bar     *progress.Bar
	period  time.Duration

	prefs         visibility.Preferences
	showThreshold bool
	lockBar       bool
	barWidth      int
	termWidth     int

	pending  *watchFrame
	started  bool
	done     bool
	paused   bool
	clock    time.Duration
	lastWall time.Time

	out     timer.Output
	frames  int
	resyncs int
	status  string
}

func newWatchModel(source frameSource, name string, opts timer.Options, cfg *config.Config) watchModel {
	tr := timer.NewTracker(opts)
	return watchModel{
		source:  source,
		name:    name,
		tracker: tr,
		bar: progress.NewBar(progress.BarStyle{
			Border:     cfg.Colors.Border,
			Background: cfg.Colors.Background,
			Fill:       cfg.Colors.Fill,
			Threshold:  cfg.Colors.Threshold,
			Width:      cfg.Display.BarWidth,
		}),
		period:        tr.Estimator().Period(),
		prefs:         opts.Preferences,
		showThreshold: opts.ShowThreshold,
		lockBar:       cfg.Display.LockBar,
		barWidth:      cfg.Display.BarWidth,
		out:           timer.Output{AwaitingResync: true},
	}
}

// withSkipped reports lines dropped while reading the source.
func (m watchModel) withSkipped(skipped *mperrors.ErrorBatch) watchModel {
	m.status = fmt.Sprintf("skipped %d malformed records", len(skipped.Errors))
	return m
}

// Init starts the refresh loop
func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

// Update handles messages and updates the model
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.fitBar()
		return m, nil

	case frameTickMsg:
		now := time.Time(msg)
		if !m.lastWall.IsZero() && !m.paused {
			m.clock += now.Sub(m.lastWall)
		}
		m.lastWall = now
		m.advance()
		return m, watchTick()
	}

	return m, nil
}

func (m watchModel) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "p", " ":
		m.paused = !m.paused
		if m.paused {
			m.status = "paused"
		} else {
			m.status = "resumed"
		}

	case "z":
		m.tracker.OnContextChanged()
		m.out.AwaitingResync = true
		m.status = "zone change signalled"

	case "t":
		m.showThreshold = !m.showThreshold
		m.tracker.SetPreferences(m.prefs, m.showThreshold)
		m.status = fmt.Sprintf("threshold marker %s", onOff(m.showThreshold))

	case "+", "=":
		m.resize(widthStep)

	case "-", "_":
		m.resize(-widthStep)
	}

	return m, nil
}

func (m *watchModel) resize(delta int) {
	if m.lockBar {
		m.status = "bar is locked"
		return
	}
	m.barWidth += delta
	if m.barWidth < minBarWidth {
		m.barWidth = minBarWidth
	}
	m.fitBar()
	m.status = fmt.Sprintf("bar width %d", m.bar.Width())
}

// fitBar applies the requested width, narrowed to fit the terminal.
func (m *watchModel) fitBar() {
	width := m.barWidth
	if m.termWidth > 0 && width > m.termWidth-2 {
		width = m.termWidth - 2
	}
	m.bar.Resize(width)
}

// advance delivers every frame due by the current host clock.
func (m *watchModel) advance() {
	if m.done || m.paused {
		return
	}

	for {
		if m.pending == nil {
			f, ok := m.source.next()
			if !ok {
				m.done = true
				m.status = "end of session"
				return
			}
			if !m.started {
				m.clock = f.sample.Now
				m.started = true
			}
			m.pending = &f
		}
		if m.pending.sample.Now > m.clock {
			return
		}

		f := *m.pending
		m.pending = nil
		if f.contextChanged {
			m.tracker.OnContextChanged()
			m.status = "zone changed"
		}
		m.out = m.tracker.OnUpdate(f.sample)
		m.frames++
		if m.out.Updated && m.out.Outcome == tick.OutcomeResync {
			m.resyncs++
		}
	}
}

// View renders the UI
func (m watchModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("MPTimer"))
	sb.WriteString(" ")
	sb.WriteString(mutedStyle.Render(m.name))
	sb.WriteString("\n\n")

	if bar := m.bar.RenderOutput(m.out, m.tracker.Predictor().Fraction, resyncHint); bar != "" {
		sb.WriteString(bar)
		sb.WriteString("\n")
		sb.WriteString(progress.Caption(m.out, m.period))
	} else {
		sb.WriteString(mutedStyle.Render("(bar hidden)"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(mutedStyle.Render(fmt.Sprintf("host %s  frames %d  resyncs %d  last %s",
		state.FormatHostTime(m.clock), m.frames, m.resyncs, m.out.Outcome)))
	if m.status != "" {
		sb.WriteString("  ")
		sb.WriteString(statusStyle.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("q quit • p pause • z zone change • t threshold • +/- width"))
	sb.WriteString("\n")

	return sb.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
