package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refreshData()
		if m.viewMode == ViewModeDetail {
			m.loadDetail()
		}
		return m, tickCmd()

	case error:
		m.errorMessage = msg.Error()
		return m, nil
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.viewMode == ViewModeDetail {
			m.viewMode = ViewModeList
			m.detailTail = ""
		}
		return m, nil

	case "enter":
		if m.viewMode == ViewModeList && len(m.builds) > 0 {
			m.viewMode = ViewModeDetail
			m.loadDetail()
		}
		return m, nil

	case "up", "k":
		if m.viewMode == ViewModeList && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.viewMode == ViewModeList && m.selected < len(m.builds)-1 {
			m.selected++
		}
		return m, nil

	case "g":
		if m.viewMode == ViewModeList {
			m.selected = 0
		}
		return m, nil

	case "G":
		if m.viewMode == ViewModeList && len(m.builds) > 0 {
			m.selected = len(m.builds) - 1
		}
		return m, nil

	case "r":
		m.refreshData()
		if m.viewMode == ViewModeDetail {
			m.loadDetail()
		}
		return m, nil
	}

	return m, nil
}
