// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/sextant/pkg/catalog"
	"github.com/Thermoquad/sextant/pkg/duplex"
)

// monitorBackend is the part of a link the TUI drives
type monitorBackend interface {
	Stats(ctx context.Context) (duplex.Statistics, error)
	Pending(ctx context.Context) (duplex.Pending, bool, error)
	Send(ctx context.Context, cmd uint8, payload []byte) (*duplex.Call, error)
	Reset(ctx context.Context) error
}

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type monitorModel struct {
	backend  monitorBackend
	catalog  *catalog.Catalog
	connInfo string
	queue    *eventQueue

	stats      duplex.Statistics
	pending    duplex.Pending
	hasPending bool
	linkErr    error

	input   textinput.Model
	editing bool

	eventLog      []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type monitorTickMsg time.Time
type engineEventMsg duplex.Event
type linkStoppedMsg struct {
	err error
}
type snapshotMsg struct {
	stats      duplex.Statistics
	pending    duplex.Pending
	hasPending bool
	err        error
}
type callDoneMsg struct {
	call *duplex.Call
	err  error
}

func initialMonitorModel(backend monitorBackend, cat *catalog.Catalog, connInfo string, queue *eventQueue) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "02 de ad be ef"
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 40

	return monitorModel{
		backend:       backend,
		catalog:       cat,
		connInfo:      connInfo,
		queue:         queue,
		stats:         duplex.NewStatistics(),
		input:         ti,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), m.snapshotCmd())
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func takeSnapshot(ctx context.Context, backend monitorBackend) snapshotMsg {
	stats, err := backend.Stats(ctx)
	if err != nil {
		return snapshotMsg{err: err}
	}
	pending, ok, err := backend.Pending(ctx)
	return snapshotMsg{stats: stats, pending: pending, hasPending: ok, err: err}
}

func (m monitorModel) snapshotCmd() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return takeSnapshot(ctx, backend)
	}
}

// sendCmd issues a request and waits for its completion off the UI loop
func (m monitorModel) sendCmd(cmd uint8, payload []byte) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.callTimeout())
		defer cancel()

		call, err := backend.Send(ctx, cmd, payload)
		if err != nil {
			return callDoneMsg{err: err}
		}
		if _, err := call.Wait(ctx); err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return callDoneMsg{err: err}
		}
		return callDoneMsg{call: call}
	}
}

func (m monitorModel) resetCmd() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := backend.Reset(ctx); err != nil {
			return snapshotMsg{err: err}
		}
		return takeSnapshot(ctx, backend)
	}
}

// parseRequestLine parses "CMD [HEX...]" where CMD is hex
func parseRequestLine(line string) (uint8, []byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, errors.New("empty request")
	}

	code, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fields[0]), "0x"), 16, 8)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid command %q", fields[0])
	}
	if len(fields) == 1 {
		return uint8(code), nil, nil
	}
	payload, err := parseHexPayload(strings.Join(fields[1:], ""))
	if err != nil {
		return 0, nil, err
	}
	return uint8(code), payload, nil
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "i", "/":
			m.editing = true
			m.input.Focus()
			return m, nil
		case "p":
			m.addLogEntry("PING requested", false)
			return m, m.sendCmd(catalog.CmdPing, nil)
		case "R":
			m.addLogEntry("Engine reset", false)
			return m, m.resetCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		return m, tea.Batch(monitorTickCmd(), m.snapshotCmd())

	case snapshotMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Snapshot failed: %v", msg.err), true)
			return m, nil
		}
		m.stats = msg.stats
		m.pending = msg.pending
		m.hasPending = msg.hasPending

	case engineEventMsg:
		ev := duplex.Event(msg)
		switch ev.Kind {
		case duplex.EventTagCollision, duplex.EventCRCError, duplex.EventMalformed, duplex.EventIOError:
			m.addLogEntry(duplex.FormatEvent(ev), true)
		default:
			m.addLogEntry(duplex.FormatEvent(ev), false)
		}

	case callDoneMsg:
		switch {
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("Send failed: %v", msg.err), true)
		case msg.call.Err != nil:
			m.addLogEntry(fmt.Sprintf("%s failed after %d attempts: %v",
				m.catalog.Name(msg.call.Command), msg.call.Attempts, msg.call.Err), true)
		default:
			m.addLogEntry(fmt.Sprintf("%s (rtt %v)",
				m.catalog.FormatReply(msg.call.Command, msg.call.Reply), msg.call.RTT().Round(time.Millisecond)), false)
		}
		return m, m.snapshotCmd()

	case linkStoppedMsg:
		m.linkErr = msg.err
		if msg.err == nil {
			m.linkErr = duplex.ErrClosed
		}
		m.addLogEntry(fmt.Sprintf("Link stopped: %v", m.linkErr), true)
	}

	return m, nil
}

func (m monitorModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		line := m.input.Value()
		m.input.Reset()
		m.editing = false
		m.input.Blur()

		cmd, payload, err := parseRequestLine(line)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.addLogEntry(fmt.Sprintf("%s (0x%02X) requested, %d bytes", m.catalog.Name(cmd), cmd, len(payload)), false)
		return m, m.sendCmd(cmd, payload)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
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

	var s strings.Builder
	s.WriteString(titleStyle.Render("SEXTANT - LINK MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Timeout: %d ms x %d | 'i' request, 'p' ping, 'R' reset, 'q' quit",
		m.connInfo, cfg.TimeoutMs, cfg.MaxAttempts)))
	s.WriteString("\n\n")

	if m.linkErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link stopped: %v", m.linkErr)))
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.stats
	num := func(v uint64) string { return valueStyle.Render(fmt.Sprintf("%d", v)) }
	errNum := func(v uint64) string {
		if v > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", v))
		}
		return valueStyle.Render("0")
	}

	var stats strings.Builder
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("In:"), num(st.FramesReceived),
		labelStyle.Render("Out:"), num(st.FramesSent),
		labelStyle.Render("Dispatched:"), num(st.Dispatched),
		labelStyle.Render("Replayed:"), num(st.Replayed),
	))
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Sends:"), num(st.Sends),
		labelStyle.Render("Completed:"), num(st.Completed),
		labelStyle.Render("Retransmits:"), num(st.Retransmits),
		labelStyle.Render("Timeouts:"), errNum(st.Timeouts),
	))
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("CRC:"), errNum(st.CRCErrors),
		labelStyle.Render("Malformed:"), errNum(st.MalformedFrames),
		labelStyle.Render("Collisions:"), errNum(st.TagCollisions),
		labelStyle.Render("Rejected:"), errNum(st.Rejected),
		labelStyle.Render("IO:"), errNum(st.IOErrors),
	))
	if m.queue != nil {
		if dropped := m.queue.dropped.Load(); dropped > 0 {
			stats.WriteString("\n" + warningStyle.Render(fmt.Sprintf("%d events not shown (UI behind)", dropped)))
		}
	}
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n")

	// Outstanding send
	if m.hasPending {
		s.WriteString(warningStyle.Render(fmt.Sprintf("⏳ Outstanding: %s (0x%02X) tag=0x%02X attempt %d/%d",
			m.catalog.Name(m.pending.Command), m.pending.Command, m.pending.Tag, m.pending.Attempt, cfg.MaxAttempts)))
	} else {
		s.WriteString(valueStyle.Render("✓ Idle"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 16
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, "ℹ "+entry.message))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")

	if m.editing {
		s.WriteString(m.input.View())
		s.WriteString(headerStyle.Render("  (enter to send, esc to cancel)"))
	}

	return s.String()
}
