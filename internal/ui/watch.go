package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostmon/internal/snapshot"
	"hostmon/pkg/utils"
)

// NextFunc blocks until the next snapshot is available
type NextFunc func(ctx context.Context) (*snapshot.Snapshot, error)

type snapshotMsg struct {
	snap *snapshot.Snapshot
	err  error
}

// WatchModel is the live terminal view. It pulls one snapshot at a time
// from next and re-renders on each.
type WatchModel struct {
	ctx     context.Context
	next    NextFunc
	title   string
	spinner spinner.Model
	bar     progress.Model

	snap     *snapshot.Snapshot
	err      error
	quitting bool
}

// NewWatch builds the model. ctx bounds every call to next.
func NewWatch(ctx context.Context, title string, next NextFunc) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return WatchModel{
		ctx:     ctx,
		next:    next,
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
}

func (m WatchModel) wait() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.next(m.ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		w := msg.Width / 3
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
	case spinner.TickMsg:
		if m.snap != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.snap = msg.snap
		return m, m.wait()
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return RenderStatus("error", m.err.Error()) + "\n"
	}
	if m.snap == nil {
		return "  " + m.spinner.View() + " " + WhiteStyle.Render("Waiting for the first snapshot...") + "\n"
	}

	snap := m.snap
	var b strings.Builder
	b.WriteString(RenderBanner(m.title))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  %s  tick %d", snap.CurrentTime, snap.Tick)))
	b.WriteString("\n\n")

	gauge := func(label string, pct float64) {
		b.WriteString(fmt.Sprintf("  %-7s %s %s\n", label, m.bar.ViewAs(clampPercent(pct)/100), LevelStyle(pct).Render(utils.FormatPercentage(pct))))
	}
	gauge("CPU", snap.CPUUtilization)
	gauge("Memory", snap.MemoryUtilization)
	gauge("Swap", snap.SwapUtilization)
	gauge("Disk", snap.DiskUtilization)
	b.WriteString("\n")

	b.WriteString(RenderKeyValue("Network", fmt.Sprintf("↑ %s  ↓ %s",
		utils.FormatKBps(snap.NetworkUtilization.Upload), utils.FormatKBps(snap.NetworkUtilization.Download))) + "\n")
	b.WriteString(RenderKeyValue("Load", snap.LoadAvg) + "\n")
	b.WriteString(RenderKeyValue("Uptime", snap.UptimeOutput) + "\n\n")

	b.WriteString(ServiceSection("Services", snap.ServiceStatus).String())
	b.WriteString(ProcessTable(snap.ProcessList))
	for _, s := range ExchangeSections(snap) {
		b.WriteString(s.String())
	}

	b.WriteString("\n" + DimStyle.Render("  q to quit") + "\n")
	return b.String()
}

// Err returns the error that ended the view, if any
func (m WatchModel) Err() error {
	return m.err
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
