package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 80

// session is the part of the orchestrator the terminal client drives.
type session interface {
	PrimaryAction()
	Cancel()
	Retry()
	SubmitQuestion(question string)
	SetSpeaking(isSpeaking bool)
	IsSpeaking() bool
}

type (
	stateChangedMsg struct {
		from, to orchestration.SessionState
	}
	interimTranscriptMsg string
	questionMsg          string
	responseSegmentMsg   string
	sentenceSpokenMsg    string
	sessionErrorMsg      string
	noticeMsg            string
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	questionStyle = lipgloss.NewStyle().Bold(true)
	interimStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	spokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type model struct {
	session session

	spinner spinner.Model
	input   textinput.Model
	width   int

	state        orchestration.SessionState
	status       string
	question     string
	interim      string
	answer       strings.Builder
	lastSpoken   string
	errorMessage string
	notice       string
}

func newModel(session session) *model {
	input := textinput.New()
	input.Placeholder = "Type a question"
	input.CharLimit = 500

	return &model{
		session: session,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		input:   input,
		width:   defaultWidth,
		status:  orchestration.StateIdle.String(),
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	case stateChangedMsg:
		m.state = msg.to
		m.status = msg.from.String() + " -> " + msg.to.String()
		if msg.to == orchestration.StateListening {
			m.question = ""
			m.answer.Reset()
			m.lastSpoken = ""
		}
		if msg.to != orchestration.StateError {
			m.errorMessage = ""
		}
		return m, nil
	case interimTranscriptMsg:
		m.interim = string(msg)
		return m, nil
	case questionMsg:
		m.question = string(msg)
		m.interim = ""
		m.answer.Reset()
		m.lastSpoken = ""
		return m, nil
	case responseSegmentMsg:
		m.answer.WriteString(string(msg))
		return m, nil
	case sentenceSpokenMsg:
		m.lastSpoken = string(msg)
		return m, nil
	case sessionErrorMsg:
		m.errorMessage = string(msg)
		return m, nil
	case noticeMsg:
		m.notice = string(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ":
		return m, m.run(m.session.PrimaryAction)
	case "esc":
		return m, m.run(m.session.Cancel)
	case "r":
		return m, m.run(m.session.Retry)
	case "m":
		speaking := !m.session.IsSpeaking()
		return m, m.run(func() { m.session.SetSpeaking(speaking) })
	case "tab", "enter":
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		return m, nil
	case "enter":
		question := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.input.Blur()
		if question == "" {
			return m, nil
		}
		return m, m.run(func() { m.session.SubmitQuestion(question) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run calls a session control outside of the update loop.
func (m *model) run(control func()) tea.Cmd {
	return func() tea.Msg {
		control()
		return nil
	}
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ema voice"))
	b.WriteString("  ")
	if m.state == orchestration.StateListening || m.state == orchestration.StateProcessing {
		b.WriteString(m.spinner.View())
	}
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n\n")

	if m.question != "" {
		b.WriteString(questionStyle.Render(wordwrap.String("Q: "+m.question, m.width)))
		b.WriteString("\n")
	} else if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(m.interim, m.width)))
		b.WriteString("\n")
	}
	if answer := m.answer.String(); answer != "" {
		b.WriteString(wordwrap.String(answer, m.width))
		b.WriteString("\n")
	}
	if m.lastSpoken != "" {
		b.WriteString(spokenStyle.Render(wordwrap.String("♪ "+m.lastSpoken, m.width)))
		b.WriteString("\n")
	}
	if m.errorMessage != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(wordwrap.String(m.errorMessage, m.width)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(wordwrap.String(m.notice, m.width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.input.Focused() {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: ask • esc: back"))
	} else {
		b.WriteString(helpStyle.Render(m.help()))
	}
	b.WriteString("\n")

	return b.String()
}

func (m *model) help() string {
	action := "listen"
	switch m.state {
	case orchestration.StateListening:
		action = "stop"
	case orchestration.StateProcessing:
		action = "cancel"
	case orchestration.StateError:
		action = "retry"
	}

	speech := "mute"
	if !m.session.IsSpeaking() {
		speech = "unmute"
	}
	return "space: " + action + " • tab: type • esc: cancel • r: retry • m: " + speech + " • q: quit"
}
