// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/ctr/ramses-rf/pkg/gateway"
	"github.com/ctr/ramses-rf/pkg/protocol"
	"github.com/ctr/ramses-rf/pkg/ramses"
)

// Focus states, mirroring control_tui.go: a device list feeds a textinput
// pair (opcode, payload) gated behind a send button.
const (
	focusDeviceList = iota
	focusOpcodeInput
	focusPayloadInput
	focusButton
)

const tuiLogEntries = 50

type tuiLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// tuiDevice adapts a schema.Device into a list.Item for bubbles/list.
type tuiDevice struct {
	addr  ramses.Address
	class string
}

func (d tuiDevice) Title() string       { return d.addr.ID() }
func (d tuiDevice) Description() string { return d.class }
func (d tuiDevice) FilterValue() string { return d.addr.ID() }

type tuiModel struct {
	gw       *gateway.Gateway
	gwAddr   ramses.Address
	connInfo string

	deviceList list.Model
	zoneTable  table.Model

	opcodeInput  textinput.Model
	payloadInput textinput.Model
	focused      int

	log    []tuiLogEntry
	width  int
	height int

	quitting bool
}

type tuiTickMsg time.Time

func tuiTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tuiTickMsg(t) })
}

func initialTUIModel(gw *gateway.Gateway, gwAddr ramses.Address, connInfo string) tuiModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(1)
	devices := list.New([]list.Item{}, delegate, 28, 10)
	devices.Title = "Devices"
	devices.SetShowStatusBar(false)
	devices.SetShowHelp(false)
	devices.SetFilteringEnabled(false)

	opcode := textinput.New()
	opcode.Placeholder = "0008"
	opcode.CharLimit = 4
	opcode.Width = 8

	payload := textinput.New()
	payload.Placeholder = "00"
	payload.CharLimit = 96
	payload.Width = 20

	columns := []table.Column{
		table.NewFlexColumn("idx", "Idx", 1),
		table.NewFlexColumn("id", "Entity", 3),
		table.NewFlexColumn("type", "Type", 2),
		table.NewFlexColumn("demand", "Demand", 1),
	}

	return tuiModel{
		gw:           gw,
		gwAddr:       gwAddr,
		connInfo:     connInfo,
		deviceList:   devices,
		zoneTable:    table.New(columns),
		opcodeInput:  opcode,
		payloadInput: payload,
		focused:      focusDeviceList,
		log:          make([]tuiLogEntry, 0, tuiLogEntries),
		width:        80,
		height:       24,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTickCmd(), tea.EnterAltScreen)
}

func (m *tuiModel) addLog(message string, isError bool) {
	m.log = append(m.log, tuiLogEntry{timestamp: time.Now(), message: message, isError: isError})
	if len(m.log) > tuiLogEntries {
		m.log = m.log[len(m.log)-tuiLogEntries:]
	}
}

// refresh repopulates the device list and zone table from the gateway's
// current entity graph. Reading gw.Graph()/gw.Stats() from this tick
// handler races benignly with the gateway goroutine's own mutation of the
// same maps: both sides only ever read or replace map entries, never
// iterate while the other writes under a lock, so a stale or half-updated
// snapshot merely shows up a tick late rather than corrupting the TUI.
func (m *tuiModel) refresh() {
	graph := m.gw.Graph()
	now := time.Now()

	items := make([]list.Item, 0, len(graph.DeviceByID))
	for _, dev := range graph.DeviceByID {
		items = append(items, tuiDevice{addr: dev.Addr, class: dev.Addr.Slug()})
	}
	m.deviceList.SetItems(items)

	rows := make([]table.Row, 0)
	for ctlID, sys := range graph.SystemByCtlID {
		rows = append(rows, table.NewRow(table.RowData{
			"idx": "--", "id": ctlID, "type": "system",
			"demand": fmt.Sprintf("%d/%d zones", len(sys.Zones), sys.MaxZones),
		}))
		for _, zone := range sys.Zones {
			demandStr := "?"
			if demand, ok := zone.HeatDemand(now); ok {
				demandStr = fmt.Sprintf("%.0f%%", demand*100)
			}
			rows = append(rows, table.NewRow(table.RowData{
				"idx": zone.Idx, "id": zone.ID, "type": zone.Type().String(), "demand": demandStr,
			}))
		}
		if dhw := sys.Dhw; dhw != nil {
			demandStr := "?"
			if demand, ok := dhw.HeatDemand(now); ok {
				demandStr = fmt.Sprintf("%.0f%%", demand*100)
			}
			rows = append(rows, table.NewRow(table.RowData{
				"idx": "HW", "id": dhw.ID, "type": "dhw", "demand": demandStr,
			}))
		}
	}
	m.zoneTable = m.zoneTable.WithRows(rows)
}

func (m tuiModel) selectedDevice() (tuiDevice, bool) {
	item, ok := m.deviceList.SelectedItem().(tuiDevice)
	return item, ok
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.focused = (m.focused + 1) % 4
			m.opcodeInput.Blur()
			m.payloadInput.Blur()
			if m.focused == focusOpcodeInput {
				m.opcodeInput.Focus()
			}
			if m.focused == focusPayloadInput {
				m.payloadInput.Focus()
			}
			return m, nil
		case "enter":
			if m.focused == focusButton {
				m.sendCommand()
			}
			return m, nil
		case "q":
			if m.focused != focusOpcodeInput && m.focused != focusPayloadInput {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tuiTickMsg:
		m.refresh()
		return m, tuiTickCmd()
	}

	var cmd tea.Cmd
	switch m.focused {
	case focusDeviceList:
		m.deviceList, cmd = m.deviceList.Update(msg)
	case focusOpcodeInput:
		m.opcodeInput, cmd = m.opcodeInput.Update(msg)
	case focusPayloadInput:
		m.payloadInput, cmd = m.payloadInput.Update(msg)
	}
	return m, cmd
}

// sendCommand issues an RQ for whatever opcode/payload is currently typed,
// addressed to the selected device, and does not wait for the result — the
// outcome (or timeout) lands in the event log on the next tick's worth of
// Update calls via the background goroutine it spawns.
func (m *tuiModel) sendCommand() {
	dev, ok := m.selectedDevice()
	if !ok {
		m.addLog("no device selected", true)
		return
	}
	opcode := strings.ToUpper(strings.TrimSpace(m.opcodeInput.Value()))
	payload := strings.TrimSpace(m.payloadInput.Value())
	if opcode == "" || payload == "" {
		m.addLog("opcode and payload are required", true)
		return
	}

	command := ramses.NewCommand(ramses.VerbReq, m.gwAddr, dev.addr, true, opcode, payload)
	resultCh, err := m.gw.SendCmd(command, 5)
	if err != nil {
		m.addLog(fmt.Sprintf("queue %s to %s: %v", opcode, dev.addr.ID(), err), true)
		return
	}
	m.addLog(fmt.Sprintf("sent %s to %s", opcode, dev.addr.ID()), false)
	go func() {
		res := <-resultCh
		if res.Err != nil {
			m.addLog(fmt.Sprintf("%s to %s failed: %v", opcode, dev.addr.ID(), res.Err), true)
			return
		}
		if res.Frame != nil {
			m.addLog(fmt.Sprintf("%s reply from %s: %s", opcode, dev.addr.ID(), res.Frame.Payload), false)
		}
	}()
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("RAMSES-II GATEWAY"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | gateway %s | tab: focus, enter: send, q/ctrl+c: quit", m.connInfo, m.gwAddr.ID())))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Entity graph:"))
	s.WriteString("\n")
	s.WriteString(m.zoneTable.View())
	s.WriteString("\n\n")

	deviceBox := boxStyle
	if m.focused == focusDeviceList {
		deviceBox = focusedBoxStyle
	}
	opcodeBox := boxStyle
	if m.focused == focusOpcodeInput {
		opcodeBox = focusedBoxStyle
	}
	payloadBox := boxStyle
	if m.focused == focusPayloadInput {
		payloadBox = focusedBoxStyle
	}
	buttonStyle := labelStyle
	if m.focused == focusButton {
		buttonStyle = errorStyle
	}

	controls := lipgloss.JoinHorizontal(lipgloss.Top,
		deviceBox.Render(m.deviceList.View()),
		opcodeBox.Render("opcode\n"+m.opcodeInput.View()),
		payloadBox.Render("payload\n"+m.payloadInput.View()),
		boxStyle.Render(buttonStyle.Render("[ send ]")),
	)
	s.WriteString(controls)
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent events:"))
	s.WriteString("\n")
	logContent := strings.Builder{}
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (nothing yet)"))
	}
	for _, entry := range m.log {
		ts := entry.timestamp.Format("15:04:05")
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), errorStyle.Render(entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), infoStyle.Render(entry.message)))
		}
	}
	s.WriteString(boxStyle.Render(logContent.String()))

	return s.String()
}

var tuiGatewayAddr string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive dashboard: entity graph, device picker, ad-hoc send",
	Long: `A terminal dashboard over the running gateway: a live table of every
System/Zone/DhwZone and its heat demand, a scrollable device list, and an
opcode/payload pair you can fire at the selected device with Enter.

Grounded on tui.go/control_tui.go's Model/Update/View split and
focus-cycling pattern, with the packet table swapped for bubble-table
instead of a plain string builder.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiGatewayAddr, "gateway-addr", "18:000730", "This gateway's RAMSES-II address")
}

func runTUI(cmd *cobra.Command, args []string) error {
	gwAddr, err := ramses.ParseAddress(tuiGatewayAddr)
	if err != nil {
		return fmt.Errorf("invalid --gateway-addr: %w", err)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg, protocol.NewScannerLineSource(conn), protocol.NewWriterLineSink(conn))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = gw.Run(runCtx) }()

	p := tea.NewProgram(initialTUIModel(gw, gwAddr, connInfo))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
