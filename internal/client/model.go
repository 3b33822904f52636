package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flavluc/chat/internal/protocol"
)

// Sender sends one line to the server.
type Sender interface {
	Send(line string) error
}

type incomingMsg Incoming

type sendErrMsg struct{ err error }

// Model is the bubbletea model of the chat client.
type Model struct {
	input    textinput.Model
	viewport viewport.Model

	lines    []string
	nick     string
	server   string
	snapshot protocol.Snapshot
	closed   bool

	sender   Sender
	incoming <-chan Incoming

	ready  bool
	width  int
	height int
}

// NewModel creates a model sending through sender and rendering what arrives
// on incoming.
func NewModel(sender Sender, incoming <-chan Incoming, nick, server string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, JOIN #channel or KICK nick..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	return Model{
		input:    ti,
		nick:     nick,
		server:   server,
		sender:   sender,
		incoming: incoming,
	}
}

func waitForIncoming(ch <-chan Incoming) tea.Cmd {
	return func() tea.Msg {
		in, ok := <-ch
		if !ok {
			return nil
		}
		return incomingMsg(in)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForIncoming(m.incoming))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header(1) + divider(1) + viewport + divider(1) + input(1)
		vpHeight := max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case incomingMsg:
		m.receive(Incoming(msg))
		m.refresh()
		if msg.Closed {
			return m, nil
		}
		return m, waitForIncoming(m.incoming)

	case sendErrMsg:
		m.lines = append(m.lines, errStyle.Render("send failed: "+msg.err.Error()))
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if line == "/quit" {
				return m, tea.Quit
			}
			m.input.SetValue("")
			if m.closed {
				return m, nil
			}
			m.lines = append(m.lines, formatOwn(time.Now(), m.nick, line))
			m.refresh()
			return m, m.send(line)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(line string) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		if err := sender.Send(line); err != nil {
			return sendErrMsg{err: err}
		}
		return nil
	}
}

// receive records one incoming result. A snapshot also becomes the current
// channel shown in the header.
func (m *Model) receive(in Incoming) {
	switch {
	case in.Closed:
		m.closed = true
		m.lines = append(m.lines, errStyle.Render("disconnected: "+in.Err.Error()))
		return
	case in.Err != nil:
		m.lines = append(m.lines, errStyle.Render(in.Err.Error()))
		return
	case in.Result == nil:
		return
	}

	if success, ok := in.Result.(protocol.CommandSuccess); ok {
		if snapshot, err := success.Snapshot(); err == nil {
			m.snapshot = snapshot
		}
	}
	m.lines = append(m.lines, FormatResult(in.Result))
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	divider := dimStyle.Render(strings.Repeat("─", m.width))
	return m.renderHeader() + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		" " + m.input.View()
}

func (m Model) renderHeader() string {
	left := headerStyle.Render(" " + m.nick + "@" + m.server)
	if m.snapshot.Name != "" {
		left += "  " + channelStyle.Render(m.snapshot.Name)
	}

	right := ""
	if m.snapshot.Name != "" {
		right = dimStyle.Render(fmt.Sprintf("%d/%d users ", len(m.snapshot.Users), m.snapshot.Capacity))
	}
	if m.closed {
		right = errStyle.Render("offline ")
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

// FormatResult renders one server result as a scrollback line.
func FormatResult(r protocol.ClientResult) string {
	switch r := r.(type) {
	case protocol.ChatMessage:
		return timeStyle.Render(r.Time.Local().Format("15:04")) + " " +
			nickStyle.Render(r.Nick) + ": " + r.Message
	case protocol.CommandSuccess:
		snapshot, err := r.Snapshot()
		if err != nil {
			return dimStyle.Render("ok")
		}
		return fmt.Sprintf("%s %s %s\n%s",
			dimStyle.Render("-- joined"),
			channelStyle.Render(snapshot.Name),
			dimStyle.Render(fmt.Sprintf("(admin %s, %d/%d)", snapshot.Admin, len(snapshot.Users), snapshot.Capacity)),
			dimStyle.Render("   topic: "+snapshot.Topic+"\n   users: "+strings.Join(snapshot.Users, ", ")))
	case protocol.CommandFailure:
		line := errStyle.Render(r.Error)
		if r.Hint != "" {
			line += " " + r.Hint
		}
		return line
	case protocol.Notice:
		return timeStyle.Render(r.Time.Local().Format("15:04")) + " " + noticeStyle.Render(r.Text)
	default:
		return dimStyle.Render(fmt.Sprintf("%v", r))
	}
}

func formatOwn(t time.Time, nick, line string) string {
	return timeStyle.Render(t.Format("15:04")) + " " + selfStyle.Render(nick) + ": " + line
}

// Run starts the interactive client on conn until the user quits.
func Run(conn *Conn, nick, server string) error {
	m := NewModel(conn, conn.Incoming(), nick, server)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
