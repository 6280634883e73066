package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Joserraldo/diabetes/internal/domain"
)

const maxLogEntries = 200

// Recorder receives every engine event the UI sees.
type Recorder interface {
	Record(domain.Event)
}

type EventMsg struct {
	Event domain.Event
	OK    bool
}

type connectField int

const (
	fieldHost connectField = iota
	fieldPort
)

type modalState struct {
	active  bool
	title   string
	message string
}

type Model struct {
	mode     Mode
	events   <-chan domain.Event
	cancel   func()
	actions  chan<- domain.Action
	recorder Recorder

	state domain.AppState
	meta  Meta
	// Metrics in presentation order.
	order []domain.MetricKey

	width  int
	height int
	layout layoutState

	hostInput textinput.Model
	portInput textinput.Model
	focus     connectField

	selected int
	formVP   viewport.Model

	spin     spinner.Model
	spinning bool

	logs []domain.LogEntry

	// Events channel closed (engine finished or was cancelled).
	engineDone bool
	// Connect inputs hold the engine's target.
	seeded bool

	modal modalState
}

func NewModel(mode Mode, events <-chan domain.Event, actions chan<- domain.Action, meta Meta, cancel func()) *Model {
	host := textinput.New()
	host.Prompt = ""
	host.Placeholder = domain.DefaultHost
	host.CharLimit = 253
	host.Focus()

	port := textinput.New()
	port.Prompt = ""
	port.Placeholder = domain.DefaultPort
	port.CharLimit = 5

	spin := spinner.New()
	spin.Spinner = spinner.Line

	return &Model{
		mode:      mode,
		events:    events,
		cancel:    cancel,
		actions:   actions,
		meta:      meta,
		order:     presentationOrder(),
		state:     domain.AppState{Screen: domain.ScreenConnect, Outcome: domain.Pending(), StartedAt: time.Now()},
		hostInput: host,
		portInput: port,
		spin:      spin,
	}
}

func presentationOrder() []domain.MetricKey {
	var out []domain.MetricKey
	for _, c := range domain.Categories() {
		out = append(out, c.Keys...)
	}
	return out
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), textinput.Blink)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.reflow()
		return m, nil

	case spinner.TickMsg:
		if !m.state.Busy {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		if !msg.OK {
			// Engine finished; keep the UI open until the user quits.
			m.engineDone = true
			m.state.Busy = false
			m.reflow()
			return m, nil
		}
		if m.recorder != nil {
			m.recorder.Record(msg.Event)
		}
		cmd := m.applyEvent(msg.Event)
		m.reflow()
		return m, tea.Batch(waitForEvent(m.events), cmd)

	default:
		if m.state.Screen == domain.ScreenConnect {
			return m, m.updateInputs(msg)
		}
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := strings.ToLower(msg.String())

	if key == "ctrl+c" || key == "ctrl+с" {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	if m.modal.active {
		switch key {
		case "enter", "esc", " ":
			m.modal = modalState{}
			m.reflow()
		}
		return m, nil
	}

	if m.state.Screen == domain.ScreenConnect {
		return m.handleConnectKey(msg, key)
	}
	return m.handleFormKey(key)
}

func (m *Model) handleConnectKey(msg tea.KeyMsg, key string) (tea.Model, tea.Cmd) {
	switch key {
	case "tab", "shift+tab", "up", "down":
		if m.focus == fieldHost {
			m.setFocus(fieldPort)
		} else {
			m.setFocus(fieldHost)
		}
		return m, nil
	case "enter":
		m.connect()
		m.reflow()
		return m, nil
	}
	return m, m.updateInputs(msg)
}

func (m *Model) handleFormKey(key string) (tea.Model, tea.Cmd) {
	n := len(m.order)
	switch key {
	case "up", "k":
		m.selected = (m.selected - 1 + n) % n
	case "down", "j":
		m.selected = (m.selected + 1) % n
	case "left", "h":
		m.step(-1)
	case "right", "l":
		m.step(1)
	case "shift+left", "[":
		m.step(-10)
	case "shift+right", "]":
		m.step(10)
	case "s", "enter":
		if m.state.Busy {
			return m, nil
		}
		m.sendAction(domain.Action{Type: domain.ActionSubmit})
	case "b", "esc":
		m.sendAction(domain.Action{Type: domain.ActionDisconnect})
	case "pgup", "pageup":
		m.formVP.LineUp(m.formVP.Height)
		return m, nil
	case "pgdown", "pagedown":
		m.formVP.LineDown(m.formVP.Height)
		return m, nil
	case "q":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	default:
		return m, nil
	}
	m.reflow()
	return m, nil
}

func (m *Model) step(delta int) {
	if len(m.order) == 0 {
		return
	}
	m.sendAction(domain.Action{Type: domain.ActionStepMetric, Metric: m.order[m.selected], Delta: delta})
}

// connect sends the typed target, falling back to the placeholder for an
// empty field, then enters the form.
func (m *Model) connect() {
	host := strings.TrimSpace(m.hostInput.Value())
	if host == "" {
		host = m.hostInput.Placeholder
	}
	port := strings.TrimSpace(m.portInput.Value())
	if port == "" {
		port = m.portInput.Placeholder
	}
	m.sendAction(domain.Action{Type: domain.ActionSetHost, Text: host})
	m.sendAction(domain.Action{Type: domain.ActionSetPort, Text: port})
	m.sendAction(domain.Action{Type: domain.ActionConnect})
}

func (m *Model) setFocus(f connectField) {
	m.focus = f
	if f == fieldHost {
		m.hostInput.Focus()
		m.portInput.Blur()
	} else {
		m.portInput.Focus()
		m.hostInput.Blur()
	}
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var hostCmd, portCmd tea.Cmd
	m.hostInput, hostCmd = m.hostInput.Update(msg)
	m.portInput, portCmd = m.portInput.Update(msg)
	return tea.Batch(hostCmd, portCmd)
}

func (m *Model) applyEvent(ev domain.Event) tea.Cmd {
	switch ev.Type {
	case domain.EventState:
		p, ok := ev.Payload.(domain.StatePayload)
		if !ok {
			return nil
		}
		prev := m.state.Screen
		m.state = p.State
		if m.state.Screen == domain.ScreenConnect && (prev != domain.ScreenConnect || !m.seeded) {
			m.seedInputs()
		}
		if m.state.Busy && !m.spinning {
			m.spinning = true
			return m.spin.Tick
		}
	case domain.EventSubmitDone:
		p, ok := ev.Payload.(domain.SubmitDonePayload)
		if ok && p.Outcome.Status == domain.OutcomeFailure {
			m.modal = modalState{
				active:  true,
				title:   "Prediction failed",
				message: "Error connecting to server: " + p.Outcome.Reason,
			}
		}
	case domain.EventLog:
		m.addLog(ev, domain.LogInfo)
	case domain.EventWarning:
		m.addLog(ev, domain.LogWarning)
	case domain.EventError:
		m.addLog(ev, domain.LogError)
	}
	return nil
}

// seedInputs shows the current target when returning to the connect screen.
func (m *Model) seedInputs() {
	m.hostInput.SetValue(m.state.Target.Host)
	m.portInput.SetValue(m.state.Target.Port)
	m.setFocus(fieldHost)
	m.seeded = true
}

func (m *Model) addLog(ev domain.Event, level domain.LogLevel) {
	payload, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	m.logs = append(m.logs, domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		Message: payload.Message,
		Fields:  payload.Fields,
	})
	if len(m.logs) > maxLogEntries {
		m.logs = m.logs[len(m.logs)-maxLogEntries:]
	}
}

func (m *Model) sendAction(a domain.Action) {
	if m.actions == nil {
		return
	}
	select {
	case m.actions <- a:
	default:
	}
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return EventMsg{Event: ev, OK: ok}
	}
}
