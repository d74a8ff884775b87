package chatui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glide-the/RAGFlowMCP/internal/events"
)

type turnMsg struct {
	lines          []string
	conversationID string
	err            error
	quit           bool
	clear          bool
	reset          bool
}

type model struct {
	ctx     context.Context
	turn    Turn
	palette Palette

	conversationID string

	viewport  viewport.Model
	textInput textinput.Model
	spinner   spinner.Model
	messages  []string
	banner    []string
	isLoading bool
	ready     bool
	width     int
	height    int
	showHelp  bool
}

func newModel(ctx context.Context, turn Turn, opts Options, p Palette) model {
	ti := textinput.New()
	ti.Placeholder = "Ask the data agent or type /help..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ClrBrand)

	msgs := []string{
		p.Brand.Render("ragflowmcp chat") + " " + p.Muted.Render(opts.Endpoint),
	}
	if opts.ConversationID != "" {
		msgs = append(msgs, p.Muted.Render("conversation "+opts.ConversationID))
	}

	return model{
		ctx:            ctx,
		turn:           turn,
		palette:        p,
		conversationID: opts.ConversationID,
		textInput:      ti,
		spinner:        s,
		messages:       msgs,
		banner:         append([]string(nil), msgs...),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+k" {
			m.showHelp = !m.showHelp
			m.applyWindowSize(m.width, m.height)
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.SetValue("")
			m.messages = append(m.messages, m.palette.Brand.Render("you>")+" "+input)
			m.isLoading = true
			m.refresh()
			return m, tea.Batch(m.processInputCmd(input), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.applyWindowSize(msg.Width, msg.Height)

	case turnMsg:
		m.isLoading = false
		switch {
		case msg.quit:
			return m, tea.Quit
		case msg.clear:
			m.messages = append([]string(nil), m.banner...)
		case msg.reset:
			m.conversationID = ""
			m.messages = append(m.messages, m.palette.Muted.Render("Started a new conversation."))
		case msg.err != nil:
			m.messages = append(m.messages, m.palette.Red.Render(fmt.Sprintf("error: %v", msg.err)))
		default:
			if msg.conversationID != "" {
				m.conversationID = msg.conversationID
			}
			if len(msg.lines) > 0 {
				m.messages = append(m.messages, strings.Join(msg.lines, "\n"))
			}
		}
		m.refresh()
		return m, nil
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.renderHelpBlock())
		b.WriteString("\n")
	}
	if m.isLoading {
		b.WriteString(m.spinner.View() + " ")
	} else {
		b.WriteString(m.palette.Brand.Render("chat>") + " ")
	}
	b.WriteString(m.textInput.View())
	b.WriteString("\n")
	status := "ctrl+k help"
	if m.conversationID != "" {
		status += "  conversation " + m.conversationID
	}
	b.WriteString(m.palette.Muted.Render(status))
	return b.String()
}

func (m *model) applyWindowSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height

	vpWidth := maxInt(width-2, 1)
	m.textInput.Width = maxInt(width-10, 1)

	reservedHeight := 2 // input row + status row
	if m.showHelp {
		reservedHeight += lipgloss.Height(m.renderHelpBlock()) + 1
	}
	vpHeight := maxInt(height-reservedHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
		m.ready = true
		return
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
}

func (m model) renderHelpBlock() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ClrSubtle).
		Padding(0, 1).
		MaxWidth(maxInt(m.width-2, 1)).
		Render(formatHelp(m.palette))
}

func formatHelp(p Palette) string {
	var b strings.Builder
	b.WriteString(p.Brand.Render("Commands:") + "\n")
	fmt.Fprintf(&b, "  %s  %s\n", p.Keyword.Render("/help"), p.Muted.Render("Show help"))
	fmt.Fprintf(&b, "  %s  %s\n", p.Keyword.Render("/new"), p.Muted.Render("Start a new conversation"))
	fmt.Fprintf(&b, "  %s  %s\n", p.Keyword.Render("/clear"), p.Muted.Render("Clear the screen"))
	fmt.Fprintf(&b, "  %s  %s\n", p.Keyword.Render("/quit"), p.Muted.Render("Exit"))
	b.WriteString(p.Muted.Render("  Any other text is sent to the agent"))
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m model) processInputCmd(input string) tea.Cmd {
	conversationID := m.conversationID
	return func() tea.Msg {
		switch strings.ToLower(input) {
		case "/quit", "/exit":
			return turnMsg{quit: true}
		case "/help":
			return turnMsg{lines: []string{formatHelp(m.palette)}}
		case "/clear":
			return turnMsg{clear: true}
		case "/new":
			return turnMsg{reset: true}
		}
		evts, err := m.turn(m.ctx, input, conversationID)
		if err != nil {
			return turnMsg{err: err}
		}
		return renderTurn(m.palette, evts)
	}
}

// renderTurn formats the events of one turn and picks up the conversation id
// the server assigned.
func renderTurn(p Palette, evts []events.Event) turnMsg {
	var msg turnMsg
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			msg.lines = append(msg.lines, text.String())
			text.Reset()
		}
	}
	for _, e := range evts {
		if e.ConversationID != "" {
			msg.conversationID = e.ConversationID
		}
		if e.Type == events.TypeText {
			text.WriteString(e.Text)
			continue
		}
		flush()
		if line := FormatEvent(p, e); line != "" {
			msg.lines = append(msg.lines, line)
		}
	}
	flush()
	return msg
}
