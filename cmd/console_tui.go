// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusCommandInput = iota
	focusCellList
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// chainCell represents a discovered cell
type chainCell struct {
	id       uint16
	voltage  string
	current  string
	lastSeen time.Time
}

// Implement list.Item interface
func (c chainCell) Title() string { return fmt.Sprintf("Cell %d", c.id) }
func (c chainCell) Description() string {
	if c.voltage == "" && c.current == "" {
		return "no readings"
	}
	return fmt.Sprintf("%s V  %s mA", orDash(c.voltage), orDash(c.current))
}
func (c chainCell) FilterValue() string { return fmt.Sprintf("%d", c.id) }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Chain tracking
	cells    []chainCell
	cellList list.Model

	// Monitoring
	stats         *scbs.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int

	// Command entry
	input        textinput.Model
	focusedField int

	// Output readings
	pollInterval time.Duration
	lastPollTime time.Time

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type consoleBatchMsg struct {
	lines []busLineMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(connMgr *connectionManager, connInfo string, pollInterval time.Duration) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "SRD 1 1000"
	ti.Prompt = "> "
	ti.CharLimit = scbs.MaxPacketLen
	ti.Width = 40
	ti.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	cellList := list.New([]list.Item{}, delegate, 28, 10)
	cellList.Title = "Cells"
	cellList.SetShowStatusBar(false)
	cellList.SetShowHelp(false)
	cellList.SetFilteringEnabled(false)

	return consoleModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		cells:         make([]chainCell, 0),
		cellList:      cellList,
		stats:         scbs.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		input:         ti,
		focusedField:  focusCommandInput,
		pollInterval:  pollInterval,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, consoleTickCmd())
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case consoleTickMsg:
		m.stats.CalculateRates()
		// Refresh output readings once the chain is known
		if m.pollInterval > 0 && len(m.cells) > 0 && !m.connectionLost &&
			time.Since(m.lastPollTime) >= m.pollInterval {
			m.lastPollTime = time.Now()
			m.sendQuiet(scbs.NewMultiRead(scbs.RegSetOutputVoltage).Raw())
			m.sendQuiet(scbs.NewMultiRead(scbs.RegReadOutputCurrent).Raw())
		}
		return m, consoleTickCmd()

	case consoleBatchMsg:
		for _, line := range msg.lines {
			m.processLine(line)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - starting discovery", false)
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "ctrl+r":
		m.cells = m.cells[:0]
		m.updateCellList()
		m.send(scbs.NewDiscover(0).Raw())
		return m, nil

	case "enter":
		if m.focusedField == focusCellList {
			if selected := m.getSelectedCell(); selected != nil {
				m.input.SetValue(fmt.Sprintf("SRD %d ", selected.id))
				m.input.CursorEnd()
				m.toggleFocus()
			}
			return m, nil
		}
		m.submitCommand()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusCommandInput:
		m.input, cmd = m.input.Update(msg)
	case focusCellList:
		m.cellList, cmd = m.cellList.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) toggleFocus() {
	if m.focusedField == focusCommandInput && len(m.cells) > 0 {
		m.focusedField = focusCellList
		m.input.Blur()
		return
	}
	m.focusedField = focusCommandInput
	m.input.Focus()
}

// submitCommand parses the input line and transmits the packet it describes
func (m *consoleModel) submitCommand() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}

	msg, err := scbs.ParseCommand(text)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	m.input.Reset()
	m.send(msg.Raw())
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("SCBS CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Esc=quit Tab=switch Ctrl+R=discover", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (cells) | right panel (command)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusCellList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	var cellPanel string
	if len(m.cells) == 0 {
		cellPanel = listStyle.Render(warningStyle.Render("Discovering cells..."))
	} else {
		cellPanel = listStyle.Render(m.cellList.View())
	}

	inputStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusCommandInput {
		inputStyle = focusedBoxStyle.Width(rightWidth)
	}
	commandPanel := inputStyle.Render(m.renderCommandPanel(statsLabelStyle, headerStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cellPanel, " ", commandPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m consoleModel) renderCommandPanel(statsLabelStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("COMMAND"))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")
	s.WriteString(headerStyle.Render(scbs.CommandUsage))
	return s.String()
}

func (m consoleModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalPackets)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Cell errors:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.ErrorResponses)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkt/s", m.stats.PacketRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m consoleModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Calculate available height for log
	logHeight := m.height - 24
	if logHeight < 6 {
		logHeight = 6
	}
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *consoleModel) processLine(line busLineMsg) {
	m.stats.Update(line.msg, line.err)

	if line.err != nil {
		m.addLogEntry(fmt.Sprintf("RX invalid %q: %v", line.line, line.err), true)
		return
	}

	switch p := line.msg.(type) {
	case *scbs.Discover:
		m.handleDiscover(p)
	case *scbs.MultiRead:
		m.handleMultiRead(p)
	case *scbs.SingleResponse:
		m.handleResponse(p)
	default:
		m.addLogEntry("RX "+scbs.FormatSummary(p), false)
	}
}

// handleDiscover rebuilds the cell list from a returning discover packet.
// Cells are numbered from 1 because the console always discovers from 0.
func (m *consoleModel) handleDiscover(p *scbs.Discover) {
	known := make(map[uint16]chainCell, len(m.cells))
	for _, c := range m.cells {
		known[c.id] = c
	}

	m.cells = make([]chainCell, 0, p.LastCellID)
	for id := uint16(1); id <= p.LastCellID && id != 0; id++ {
		c, ok := known[id]
		if !ok {
			c = chainCell{id: id}
		}
		m.cells = append(m.cells, c)
	}
	m.updateCellList()
	m.addLogEntry(fmt.Sprintf("Discovery complete: %d cell(s)", len(m.cells)), false)
}

// handleMultiRead stores one value per cell, in chain order
func (m *consoleModel) handleMultiRead(p *scbs.MultiRead) {
	now := time.Now()
	for i, value := range p.Values {
		if i >= len(m.cells) {
			break
		}
		switch p.RegAddr {
		case scbs.RegSetOutputVoltage:
			m.cells[i].voltage = value
		case scbs.RegReadOutputCurrent:
			m.cells[i].current = value
		}
		m.cells[i].lastSeen = now
	}
	m.updateCellList()

	if len(p.Values) != len(m.cells) {
		m.addLogEntry(fmt.Sprintf("RX %s (expected %d values)", scbs.FormatSummary(p), len(m.cells)), true)
	}
}

func (m *consoleModel) handleResponse(p *scbs.SingleResponse) {
	if code, isErr := p.ErrorCode(); isErr {
		m.addLogEntry(fmt.Sprintf("Cell %d: %s (0x%02X)", p.CellID, code.Error(), uint8(code)), true)
		return
	}
	for i := range m.cells {
		if m.cells[i].id == p.CellID {
			m.cells[i].lastSeen = time.Now()
		}
	}
	m.addLogEntry(fmt.Sprintf("Cell %d: %s", p.CellID, p.Value), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *consoleModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// send transmits line and logs it
func (m *consoleModel) send(line string) {
	if err := m.sendQuiet(line); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send %s: %v", line, err), true)
		return
	}
	m.addLogEntry("TX "+line, false)
}

// sendQuiet transmits line without logging; a nil connection manager drops it
func (m *consoleModel) sendQuiet(line string) error {
	if m.connMgr == nil {
		return nil
	}
	return m.connMgr.send(line)
}

func (m *consoleModel) getSelectedCell() *chainCell {
	if len(m.cells) == 0 {
		return nil
	}

	idx := m.cellList.Index()
	if idx < 0 || idx >= len(m.cells) {
		return nil
	}

	return &m.cells[idx]
}

func (m *consoleModel) updateCellList() {
	items := make([]list.Item, len(m.cells))
	for i, c := range m.cells {
		items[i] = c
	}
	m.cellList.SetItems(items)
}

func (m *consoleModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.cellList.SetSize(28, listHeight)
}
