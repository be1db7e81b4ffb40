// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// Latest values seen on the bus
type busReadings struct {
	chainLength int               // cells counted by the last returning discover, -1 if none
	cellValues  map[uint16]string // last SRS value per cell
	multiReads  map[uint32][]string
}

// Monitor TUI model
type monitorModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *scbs.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	skippedLines  int
	readings      busReadings
	linkClosed    bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time

// formatElapsed formats a duration as a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := uint64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo string, statsInterval int, showAll bool) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         scbs.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		readings: busReadings{
			chainLength: -1,
			cellValues:  make(map[uint16]string),
			multiReads:  make(map[uint32][]string),
		},
		width:  80,
		height: 24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.skippedLines = msg.skippedLines
		if msg.skippedLines > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid lines", msg.skippedLines), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case busLineMsg:
		m.handleLine(msg)

	case linkClosedMsg:
		m.linkClosed = true
		if msg.err != nil && !errors.Is(msg.err, ErrConnectionClosed) {
			m.addLogEntry(fmt.Sprintf("Link closed: %v", msg.err), true)
		} else {
			m.addLogEntry("Link closed", true)
		}
	}

	return m, nil
}

func (m *monitorModel) handleLine(msg busLineMsg) {
	m.stats.Update(msg.msg, msg.err)

	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v (%q)", msg.err, msg.line), true)
		return
	}

	m.readings.record(msg.msg)

	if resp, ok := msg.msg.(*scbs.SingleResponse); ok {
		if code, isErr := resp.ErrorCode(); isErr {
			m.addLogEntry(fmt.Sprintf("Cell %d: %s (0x%02X)", resp.CellID, code.Error(), uint8(code)), true)
			return
		}
	}
	if m.showAll {
		m.addLogEntry(scbs.FormatSummary(msg.msg), false)
	}
}

// record keeps the latest value carried by msg
func (r *busReadings) record(msg scbs.Message) {
	switch p := msg.(type) {
	case *scbs.Discover:
		r.chainLength = int(p.LastCellID)
	case *scbs.SingleResponse:
		r.cellValues[p.CellID] = p.Value
	case *scbs.MultiRead:
		if p.NumValues() > 0 {
			r.multiReads[p.RegAddr] = append([]string(nil), p.Values...)
		}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SCBS - BUS MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatElapsed(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkClosed:
		s.WriteString(errorStyle.Render("✗ Link closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for first valid packet..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedLines > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid lines)", m.skippedLines)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(m.stats.Errors()) * 100.0 / float64(m.stats.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Errors(), errorPercent)),
	))

	if m.stats.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FramingErrors)),
			statsLabelStyle.Render("Header:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.HeaderErrors)),
			statsLabelStyle.Render("Field:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FieldErrors)),
		))
	}

	if m.stats.ErrorResponses > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Cell errors:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.ErrorResponses)),
		))
	}

	typeCounts := []string{}
	for t := scbs.PacketType(0); t < scbs.PacketUnknown; t++ {
		typeCounts = append(typeCounts, fmt.Sprintf("%s %d", headerStyle.Render(t.String()), m.stats.ByType[t]))
	}
	statsContent.WriteString(strings.Join(typeCounts, "  "))
	statsContent.WriteString("\n")

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Readings section (only shown once something has been read)
	if readings := m.renderReadings(statsLabelStyle, statsValueStyle); readings != "" {
		s.WriteString(statsLabelStyle.Render("Latest Readings:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(readings))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 18 // Reserve space for header, stats and readings
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func (m monitorModel) renderReadings(labelStyle, valueStyle lipgloss.Style) string {
	r := m.readings
	content := strings.Builder{}

	if r.chainLength >= 0 {
		content.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Chain:"), valueStyle.Render(fmt.Sprintf("%d cells", r.chainLength))))
	}

	addrs := make([]uint32, 0, len(r.multiReads))
	for addr := range r.multiReads {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		content.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render(scbs.FormatRegister(addr)+":"),
			valueStyle.Render(strings.Join(r.multiReads[addr], "  "))))
	}

	ids := make([]int, 0, len(r.cellValues))
	for id := range r.cellValues {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		content.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render(fmt.Sprintf("Cell %d:", id)),
			valueStyle.Render(r.cellValues[uint16(id)])))
	}

	return strings.TrimSuffix(content.String(), "\n")
}
