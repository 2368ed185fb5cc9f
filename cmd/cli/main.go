// Command cli is a terminal front-end for the search chat.
//
// Usage:
//
//	export GROQ_API_KEY="your-api-key"
//	go run ./cmd/cli
//
// Commands:
//
//	/exit - Exit the program
//	<message> - Ask a question
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/searchchat/pkg/agent"
	"github.com/nstogner/searchchat/pkg/chat"
	"github.com/nstogner/searchchat/pkg/config"
	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model/providers"
	"github.com/nstogner/searchchat/pkg/store/sqlite"
	"github.com/nstogner/searchchat/pkg/tools"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1) // Red
)

// logFile receives logs while the UI owns the terminal.
const logFile = "searchchat.log"

type sessionUpdateMsg string
type transcriptMsg []domain.Message
type chatEventMsg domain.Event
type submitDoneMsg struct{ err error }
type errMsg struct{ err error }

type model struct {
	ctx     context.Context
	session *chat.Session
	updates <-chan string
	events  chan domain.Event

	processing bool
	status     string
	warning    string
	err        error
	width      int
	height     int

	// UI Components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	messages []domain.Message
	renderer *glamour.TermRenderer
}

func initialModel(ctx context.Context, session *chat.Session, updates <-chan string) model {
	ta := textarea.New()
	ta.Placeholder = domain.InputPlaceholder
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetWidth(80)
	ta.SetHeight(3)
	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		ctx:      ctx,
		session:  session,
		updates:  updates,
		events:   make(chan domain.Event, 256),
		viewport: vp,
		textarea: ta,
		spinner:  sp,
		renderer: r,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.reloadMessages(),
		waitForUpdate(m.updates),
		waitForEvent(m.events),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, tiCmd, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 4 // Header, status, margins
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}

		// Recreate renderer with new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(max(m.width-4, 20)),
		)
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.sendMessage()
		}

	case sessionUpdateMsg:
		if string(msg) == m.session.ID() {
			cmds = append(cmds, m.reloadMessages())
		}
		cmds = append(cmds, waitForUpdate(m.updates))

	case transcriptMsg:
		m.messages = msg
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()

	case chatEventMsg:
		m.applyEvent(domain.Event(msg))
		cmds = append(cmds, waitForEvent(m.events))

	case submitDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}

	case spinner.TickMsg:
		if m.processing {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			cmds = append(cmds, spCmd)
		}

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m *model) applyEvent(e domain.Event) {
	switch e.Type {
	case domain.EventState:
		m.processing = e.State == domain.StateProcessing
		if !m.processing {
			m.status = ""
		}
	case domain.EventWarning:
		m.warning = e.Text
	case domain.EventError:
		m.err = fmt.Errorf("%s", e.Text)
	case domain.EventRound:
		m.status = fmt.Sprintf("Thinking (round %d)...", e.Round)
	case domain.EventToolStart:
		m.status = fmt.Sprintf("Using %s: %s", e.Tool, e.Input)
	case domain.EventToolFinish:
		if e.IsError {
			m.status = fmt.Sprintf("%s failed, continuing", e.Tool)
		}
	}
}

func (m model) View() string {
	var notice string
	if m.warning != "" {
		notice = warningStyle.Width(m.width).Render(m.warning)
	}
	if m.err != nil {
		notice = errorStyle.Width(m.width).Render(fmt.Sprintf("Error: %v", m.err))
	}

	status := ""
	if m.processing {
		status = statusStyle.Render(m.spinner.View() + " " + m.status)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Chat with Search"),
		"",
		m.viewport.View(),
		status,
		notice,
		m.textarea.View(),
	)
}

func (m model) render() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		content := msg.Content
		if m.renderer != nil {
			if rendered, err := m.renderer.Render(content); err == nil {
				content = rendered
			}
		}
		if msg.Role == domain.RoleUser {
			sb.WriteString(userStyle.Render("User: "))
		} else {
			sb.WriteString(senderStyle.Render("AI: "))
		}
		sb.WriteString("\n")
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Actions

func (m model) sendMessage() (model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" {
		return m, nil
	}
	if v == "/exit" {
		return m, tea.Quit
	}
	if m.processing {
		m.err = chat.ErrBusy
		return m, nil
	}

	m.textarea.Reset()
	m.err = nil
	m.warning = ""
	m.processing = true
	m.status = "Thinking..."

	session, events, ctx := m.session, m.events, m.ctx
	submit := func() tea.Msg {
		sink := func(e domain.Event) {
			// Tokens are not shown in the terminal; drop them rather than
			// stall the agent on a full channel.
			if e.Type == domain.EventToken {
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		err := session.Submit(ctx, chat.SubmitRequest{Content: v}, sink)
		return submitDoneMsg{err: err}
	}
	return m, tea.Batch(submit, m.spinner.Tick)
}

func (m model) reloadMessages() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		msgs, err := session.Transcript(ctx)
		if err != nil {
			return errMsg{err}
		}
		slog.Debug("Loaded transcript", "sessionID", session.ID(), "count", len(msgs))
		return transcriptMsg(msgs)
	}
}

func waitForUpdate(sub <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-sub
		if !ok {
			return nil
		}
		return sessionUpdateMsg(id)
	}
}

func waitForEvent(ch <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return chatEventMsg(e)
	}
}

// --- Main ---

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The terminal belongs to the UI, so logs go to a file.
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel})
	slog.SetDefault(slog.New(handler))
	slog.Info("Logging initialized", "config", cfg)

	store, err := sqlite.New()
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	factory, err := providers.Factory(cfg)
	if err != nil {
		slog.Error("Failed to initialize model provider", "error", err)
		os.Exit(1)
	}

	build := chat.NewBuilder(chat.BuilderConfig{
		Factory:            factory,
		Tools:              tools.NewDefaultRegistry(tools.Options{Timeout: cfg.ToolTimeout}),
		Model:              cfg.Model,
		FallbackCredential: cfg.APIKey,
		Options: []agent.Option{
			agent.WithMaxRounds(cfg.MaxRounds),
			agent.WithToolTimeout(cfg.ToolTimeout),
		},
	})

	updates := store.Subscribe()
	session, err := chat.NewSession(ctx, store, build)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(ctx, session, updates), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}

	cancel()
	if err := session.Close(context.Background()); err != nil {
		slog.Error("Failed to close session", "error", err)
	}
}
