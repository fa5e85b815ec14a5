package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

// Model is the Bubble Tea model for the console chat loop. One model
// drives one conversation thread; answers stream into the transcript
// token by token.
type Model struct {
	engine     *chat.Engine
	role       string
	input      textinput.Model
	viewport   viewport.Model
	turn       *chat.Turn
	threadID   string
	transcript string
	status     string
	streaming  bool
	ready      bool
}

// New creates a chat TUI over the given engine. role is an optional
// caller-supplied tag folded into prompt framing.
func New(engine *chat.Engine, role string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		engine:   engine,
		role:     role,
		input:    ti,
		viewport: vp,
		status:   "Ready. Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type turnMsg struct{ turn *chat.Turn }
type tokenMsg struct{ tok domain.StreamToken }
type streamClosedMsg struct{}
type chatErrMsg struct{ err error }

func (m Model) startTurn(query string) tea.Cmd {
	engine, role, threadID := m.engine, m.role, m.threadID
	return func() tea.Msg {
		turn, err := engine.Run(context.Background(), query, role, threadID)
		if err != nil {
			return chatErrMsg{err}
		}
		return turnMsg{turn}
	}
}

func waitToken(turn *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		tok, ok := <-turn.Tokens
		if !ok {
			return streamClosedMsg{}
		}
		return tokenMsg{tok}
	}
}

// Update handles key, window and streaming events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := inputBoxStyle.GetFrameSize()
		_, th := transcriptStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.transcript)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.streaming {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.transcript += userStyle.Render("You: ") + q + "\n"
			m.transcript += assistantStyle.Render("Assistant: ")
			m.streaming = true
			m.status = "Thinking..."
			m.refresh()
			return m, m.startTurn(q)
		}

	case turnMsg:
		m.turn = msg.turn
		m.threadID = msg.turn.ThreadID
		return m, waitToken(m.turn)

	case tokenMsg:
		if msg.tok.Err != nil {
			m.streaming = false
			m.status = "Error: " + msg.tok.Err.Error()
			m.transcript += "\n"
			m.refresh()
			return m, nil
		}
		if msg.tok.Done {
			m.streaming = false
			m.status = "Done. Ask a follow-up."
			m.transcript += "\n\n"
			m.refresh()
			return m, nil
		}
		m.transcript += msg.tok.Content
		m.refresh()
		return m, waitToken(m.turn)

	case streamClosedMsg:
		m.streaming = false
		m.refresh()
		return m, nil

	case chatErrMsg:
		m.streaming = false
		m.status = "Error: " + msg.err.Error()
		m.transcript += "\n"
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript)
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
