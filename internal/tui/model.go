// Package tui provides a terminal dashboard over the build archive.
package tui

import (
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quantops/pipedash/internal/logarchive"
)

// Archive is the read surface the TUI refreshes from.
type Archive interface {
	ListBuilds() ([]logarchive.BuildInfo, error)
	ReadLog(name string) ([]byte, error)
}

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// logTailLines is how much of a log the detail view shows.
const logTailLines = 30

// Model holds the state for the TUI.
type Model struct {
	archive Archive
	logger  *slog.Logger

	viewMode     ViewMode
	builds       []logarchive.BuildInfo
	selected     int
	detailTail   string
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	errorMessage string

	totalBuilds   int
	runningBuilds int
	failedBuilds  int
}

// New creates a new TUI model.
func New(archive Archive, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		archive:    archive,
		logger:     logger,
		builds:     []logarchive.BuildInfo{},
		lastUpdate: time.Now(),
	}
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// tickMsg is sent on a regular interval to refresh the UI.
type tickMsg time.Time

// tickCmd returns a command that sends a tick message every two seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData re-reads the archive.
func (m *Model) refreshData() {
	builds, err := m.archive.ListBuilds()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.errorMessage = ""
	m.builds = builds
	m.totalBuilds = len(builds)
	m.runningBuilds = 0
	m.failedBuilds = 0
	for _, b := range builds {
		switch b.Status {
		case "running":
			m.runningBuilds++
		case "failed":
			m.failedBuilds++
		}
	}
	if m.selected >= len(m.builds) && len(m.builds) > 0 {
		m.selected = len(m.builds) - 1
	}
	m.lastUpdate = time.Now()
}

// loadDetail reads the tail of the selected build's log.
func (m *Model) loadDetail() {
	if m.selected >= len(m.builds) {
		m.detailTail = ""
		return
	}
	content, err := m.archive.ReadLog(m.builds[m.selected].LogFile)
	if err != nil {
		m.detailTail = "log unavailable: " + err.Error()
		return
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	m.detailTail = strings.Join(lines, "\n")
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
