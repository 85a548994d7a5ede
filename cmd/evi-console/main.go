// Command evi-console is a terminal host for the voice bridge. It keeps a
// command list like any other host, sends typed lines as user input and shows
// the conversation as snapshots arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/jerhadf/voice-computer-use/host"
	"github.com/jerhadf/voice-computer-use/messages"
)

var listenTo = []string{
	string(messages.EventOpened),
	string(messages.EventClosed),
	string(messages.EventError),
	"message." + messages.MessageUserMessage,
	"message." + messages.MessageAssistantMessage,
}

type appConfig struct {
	server   string
	apiKey   string
	configID string
	debug    bool
	noPause  bool
}

type (
	valueMsg  messages.ComponentValue
	errorMsg  messages.ErrorPayload
	debugMsg  messages.DebugPayload
	closedMsg struct{}
	sentMsg   struct {
		label string
		err   error
	}
)

type theme struct {
	root      lipgloss.Style
	header    lipgloss.Style
	panel     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	errorLine lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	mint := lipgloss.Color("#05ffa1")
	blue := lipgloss.Color("#01cdfe")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")
	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(blue).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderBottom(true),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(blue),
		system:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		errorLine: lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
	}
}

type model struct {
	cfg    appConfig
	client *host.Client
	cursor host.EventCursor

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme

	lines     []string
	value     messages.ComponentValue
	paused    bool
	debugText string
	status    string
	width     int
	height    int
}

func newModel(cfg appConfig, client *host.Client) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Say something, or /pause /resume /mute /unmute /clear /assistant <text>"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return model{
		cfg:      cfg,
		client:   client,
		input:    input,
		timeline: viewport.New(0, 0),
		spinner:  sp,
		theme:    newTheme(),
		value:    messages.DefaultComponentValue(),
		status:   "connecting...",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		m.send("connect", messages.Connect{}),
		waitFor(m.client.Values(), func(v messages.ComponentValue) tea.Msg { return valueMsg(v) }),
		waitFor(m.client.Errors(), func(e messages.ErrorPayload) tea.Msg { return errorMsg(e) }),
		waitFor(m.client.DebugViews(), func(d messages.DebugPayload) tea.Msg { return debugMsg(d) }),
		waitClosed(m.client.Done()),
	)
}

// waitFor turns the next item of ch into a tea.Msg.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return wrap(<-ch)
	}
}

func waitClosed(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return closedMsg{}
	}
}

func (m model) send(label string, cmds ...messages.Command) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return sentMsg{label: label, err: client.Send(cmds...)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			_ = m.client.Send(messages.Disconnect{})
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				cmds = append(cmds, m.handleLine(line))
			}
		}
	case valueMsg:
		v := messages.ComponentValue(msg)
		m.value = v
		for _, ev := range m.cursor.Next(v.Events) {
			if cmd := m.handleEvent(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		m.status = fmt.Sprintf("events %d", m.cursor.Position())
		cmds = append(cmds, waitFor(m.client.Values(), func(v messages.ComponentValue) tea.Msg { return valueMsg(v) }))
	case errorMsg:
		m.appendLine(m.theme.errorLine.Render(fmt.Sprintf("%s: %s", msg.Code, msg.Message)))
		cmds = append(cmds, waitFor(m.client.Errors(), func(e messages.ErrorPayload) tea.Msg { return errorMsg(e) }))
	case debugMsg:
		m.debugText = msg.Text
		m.resize()
		cmds = append(cmds, waitFor(m.client.DebugViews(), func(d messages.DebugPayload) tea.Msg { return debugMsg(d) }))
	case sentMsg:
		if msg.err != nil {
			m.appendLine(m.theme.errorLine.Render(fmt.Sprintf("%s failed: %v", msg.label, msg.err)))
		}
	case closedMsg:
		m.status = "server closed the connection"
		m.appendLine(m.theme.system.Render("connection closed"))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.timeline, cmd = m.timeline.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) handleLine(line string) tea.Cmd {
	if !strings.HasPrefix(line, "/") {
		return m.send("user input", messages.SendUserInput{Message: line})
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	switch name {
	case "pause":
		m.paused = true
		return m.send(name, messages.PauseAssistant{})
	case "resume":
		m.paused = false
		return m.send(name, messages.ResumeAssistant{})
	case "mute":
		return m.send(name, messages.Mute{})
	case "unmute":
		return m.send(name, messages.Unmute{})
	case "clear":
		return m.send(name, messages.ClearAudioQueue{})
	case "assistant":
		return m.send(name, messages.SendAssistantInput{Message: strings.TrimSpace(rest)})
	case "disconnect":
		return m.send(name, messages.Disconnect{})
	case "connect":
		return m.send(name, messages.Connect{})
	default:
		m.appendLine(m.theme.errorLine.Render("unknown command /" + name))
		return nil
	}
}

func (m *model) handleEvent(ev messages.ChatEvent) tea.Cmd {
	switch ev.Type {
	case messages.EventOpened:
		m.appendLine(m.theme.system.Render("session opened"))
		if !m.cfg.noPause && !m.paused {
			m.paused = true
			m.appendLine(m.theme.system.Render("assistant paused, /resume to let it answer"))
			return m.send("pause", messages.PauseAssistant{})
		}
	case messages.EventClosed:
		m.appendLine(m.theme.system.Render("session closed"))
	case messages.EventError:
		if ev.Error != nil {
			m.appendLine(m.theme.errorLine.Render(fmt.Sprintf("%s: %s", ev.Error.Code, ev.Error.Message)))
		}
	case messages.EventMessage:
		if ev.Message == nil {
			return nil
		}
		text := messageContent(*ev.Message)
		switch ev.Message.Type {
		case messages.MessageUserMessage:
			m.appendLine(m.theme.user.Render("you: ") + text)
		case messages.MessageAssistantMessage:
			m.appendLine(m.theme.assistant.Render("assistant: ") + text)
		}
	}
	return nil
}

func messageContent(msg messages.TransportMessage) string {
	node, err := sonic.Get(msg.Raw, "message", "content")
	if err != nil {
		return ""
	}
	text, err := node.StrictString()
	if err != nil {
		return ""
	}
	return text
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.timeline.SetContent(strings.Join(m.lines, "\n"))
	m.timeline.GotoBottom()
}

func (m *model) resize() {
	debugHeight := 0
	if m.debugText != "" {
		debugHeight = strings.Count(m.debugText, "\n") + 2
	}
	m.timeline.Width = max(20, m.width-4)
	m.timeline.Height = max(3, m.height-8-debugHeight)
	m.input.Width = max(10, m.width-8)
}

func (m model) View() string {
	flags := []string{}
	if m.value.IsConnected {
		flags = append(flags, "connected")
	} else {
		flags = append(flags, m.spinner.View()+" offline")
	}
	if m.value.IsMuted {
		flags = append(flags, "muted")
	}
	if m.paused {
		flags = append(flags, "paused")
	}
	header := m.theme.header.Render(fmt.Sprintf("EVI console · %s · %s", strings.Join(flags, " · "), m.status))
	parts := []string{header, m.theme.panel.Render(m.timeline.View())}
	if m.debugText != "" {
		parts = append(parts, m.theme.help.Render(m.debugText))
	}
	parts = append(parts, m.input.View(), m.theme.help.Render("enter to send · esc to quit"))
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func main() {
	_ = godotenv.Load()

	cfg := appConfig{}
	flag.StringVar(&cfg.server, "server", "ws://localhost:8080/ws", "bridge WebSocket URL")
	flag.StringVar(&cfg.apiKey, "api-key", os.Getenv("HUME_API_KEY"), "Hume API key")
	flag.StringVar(&cfg.configID, "config-id", os.Getenv("HUME_CONFIG_ID"), "EVI config id")
	flag.BoolVar(&cfg.debug, "debug", false, "show the bridge debug view")
	flag.BoolVar(&cfg.noPause, "no-pause", false, "let the assistant answer as soon as the session opens")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := host.Dial(ctx, host.Config{
		URL:        cfg.server,
		HumeAPIKey: cfg.apiKey,
		ConfigID:   cfg.configID,
		ListenTo:   listenTo,
		Debug:      cfg.debug,
	})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "evi-console: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	p := tea.NewProgram(newModel(cfg, client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "evi-console fatal error: %v\n", err)
		os.Exit(1)
	}
}
