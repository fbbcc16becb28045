package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/session"
	"github.com/nachoal/planchat-go/tui/styles"
)

// Sender delivers user input to the backend
type Sender interface {
	Send(ctx context.Context, sessionID, turnID, text string) error
}

// Options configures the chat view
type Options struct {
	Sender Sender
	// Store receives a transcript after every settled turn; nil disables saving
	Store       history.Store
	Backend     string
	Suggestions []string
	Logger      zerolog.Logger
}

type keyMap struct {
	Send    key.Binding
	Suggest key.Binding
	Retry   key.Binding
	Cancel  key.Binding
	New     key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Suggest, k.Retry, k.Cancel, k.New, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Suggest: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "suggestion")),
	Retry:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry")),
	Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
	New:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "new plan")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type updateMsg struct {
	sessionID string
	update    session.Update
}

type sendResultMsg struct {
	sessionID string
	turnID    string
	err       error
}

type savedMsg struct {
	sessionID string
	err       error
}

// Chat is the bubbletea model for a planning conversation
type Chat struct {
	ctx    context.Context
	router *Router
	sess   *session.Session
	opts   Options
	log    zerolog.Logger

	updates     <-chan session.Update
	unsubscribe func()

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	styles   *styles.Styles
	renderer *transcriptRenderer

	messages        []*conversation.Message
	open            bool
	showSuggestions bool
	suggestIndex    int
	errText         string
	notice          string
	width           int
	height          int
}

// NewChat creates the chat view for the router's active session.
func NewChat(ctx context.Context, router *Router, opts Options) *Chat {
	ta := textarea.New()
	ta.Placeholder = "Ask for a plan…"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.SetWidth(74)
	// Enter sends, it never inserts a newline
	ta.KeyMap.InsertNewline.SetEnabled(false)
	plain := lipgloss.NewStyle()
	ta.FocusedStyle.CursorLine = plain
	ta.BlurredStyle.CursorLine = plain
	ta.Focus()

	st := styles.Default()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.Spinner

	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}

	c := &Chat{
		ctx:      ctx,
		router:   router,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "tui").Logger(),
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeys,
		styles:   st,
		renderer: newTranscriptRenderer(st, 78),
		width:    80,
		height:   24,
	}
	c.attach(router.Session())
	c.layout()
	return c
}

// Session returns the session currently shown
func (c *Chat) Session() *session.Session {
	return c.sess
}

func (c *Chat) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, c.waitForUpdate())
}

func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.layout()
		return c, nil

	case updateMsg:
		if msg.sessionID != c.sess.ID() {
			return c, nil
		}
		wasOpen := c.open
		c.sync(msg.update.Messages)
		if msg.update.Err != "" {
			c.errText = msg.update.Err
		}
		cmds = append(cmds, c.waitForUpdate())
		switch {
		case wasOpen && !c.open:
			cmds = append(cmds, c.save())
		case !wasOpen && c.open:
			cmds = append(cmds, c.spinner.Tick)
		}
		return c, tea.Batch(cmds...)

	case sendResultMsg:
		if msg.err != nil && msg.sessionID == c.sess.ID() {
			c.log.Error().Err(msg.err).Msg("Send failed")
			c.sess.OnError(msg.turnID, fmt.Sprintf("send failed: %v", msg.err))
			c.errText = c.sess.LastError()
			c.sync(c.sess.Snapshot())
		}
		return c, nil

	case savedMsg:
		if msg.err != nil {
			c.log.Error().Err(msg.err).Str("session_id", msg.sessionID).Msg("Failed to save transcript")
			c.notice = fmt.Sprintf("Failed to save transcript: %v", msg.err)
		}
		return c, nil

	case spinner.TickMsg:
		if !c.open {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		c.refresh()
		return c, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		return c, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, c.keys.Quit):
			c.sess.Cancel()
			if err := saveTranscript(c.opts.Store, c.opts.Backend, c.sess); err != nil {
				c.log.Error().Err(err).Msg("Failed to save transcript")
			}
			c.detach()
			return c, tea.Quit

		case key.Matches(msg, c.keys.Send):
			return c, c.submit()

		case key.Matches(msg, c.keys.Retry):
			return c, c.retry()

		case key.Matches(msg, c.keys.Cancel):
			if c.open {
				c.sess.Cancel()
				c.notice = "Stopped"
				c.sync(c.sess.Snapshot())
				return c, c.save()
			}
			return c, nil

		case key.Matches(msg, c.keys.New):
			return c, c.newSession()

		case key.Matches(msg, c.keys.Suggest):
			if c.showSuggestions && len(c.opts.Suggestions) > 0 {
				c.textarea.SetValue(c.opts.Suggestions[c.suggestIndex%len(c.opts.Suggestions)])
				c.suggestIndex++
				c.refresh()
			}
			return c, nil

		case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
			var cmd tea.Cmd
			c.viewport, cmd = c.viewport.Update(msg)
			return c, cmd
		}
	}

	var cmd tea.Cmd
	c.textarea, cmd = c.textarea.Update(msg)
	return c, cmd
}

func (c *Chat) View() string {
	var b strings.Builder

	b.WriteString(c.header())
	b.WriteString("\n")
	b.WriteString(c.viewport.View())
	b.WriteString("\n")

	boxWidth := c.width - 2
	if boxWidth < 1 {
		boxWidth = 1
	}
	switch {
	case c.errText != "":
		b.WriteString(c.styles.Error.Render(truncateToWidth("❌ "+c.errText, boxWidth)))
	case c.notice != "":
		b.WriteString(c.styles.Notice.Render(truncateToWidth(c.notice, boxWidth)))
	}
	b.WriteString("\n")

	input := c.styles.InputBorder.Width(boxWidth).Render("> " + c.textarea.View())
	b.WriteString(input)
	b.WriteString("\n")
	b.WriteString(c.help.View(c.keys))

	return b.String()
}

func (c *Chat) header() string {
	title := c.sess.Title()
	if title == "" {
		title = "New plan"
	}
	status := conversation.PhaseOf(c.messages).String()
	line := fmt.Sprintf("planchat · %s · %s", title, status)
	return c.styles.Header.Render(truncateToWidth(line, c.width))
}

// attach subscribes to s and takes its current transcript
func (c *Chat) attach(s *session.Session) {
	c.sess = s
	c.updates, c.unsubscribe = s.Subscribe()
	c.errText = s.LastError()
	c.notice = ""
	c.suggestIndex = 0
	c.sync(s.Snapshot())
}

func (c *Chat) detach() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// sync takes a transcript snapshot into the view
func (c *Chat) sync(msgs []*conversation.Message) {
	c.messages = msgs
	_, c.open = conversation.OpenTurn(msgs)
	c.showSuggestions = conversation.ShouldShowSuggestions(msgs)
	c.refresh()
}

func (c *Chat) refresh() {
	var content string
	if c.showSuggestions {
		content = c.suggestionsView()
	} else {
		content = c.renderer.render(c.messages, c.spinner.View())
	}
	c.viewport.SetContent(content)
	c.viewport.GotoBottom()
}

func (c *Chat) suggestionsView() string {
	if len(c.opts.Suggestions) == 0 {
		return c.styles.Status.Render("Ask for a plan to get started.")
	}
	lines := []string{c.styles.Status.Render("Try one of these (tab to insert):"), ""}
	current := -1
	if c.suggestIndex > 0 {
		current = (c.suggestIndex - 1) % len(c.opts.Suggestions)
	}
	for i, s := range c.opts.Suggestions {
		line := "  • " + truncateToWidth(s, c.width-6)
		if i == current {
			line = c.styles.SuggestionSelected.Render(line)
		} else {
			line = c.styles.Suggestion.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (c *Chat) layout() {
	textareaWidth := c.width - 6
	if textareaWidth < 1 {
		textareaWidth = 1
	}
	c.textarea.SetWidth(textareaWidth)

	// header, error line, input box with borders, help
	reserved := 1 + 1 + c.textarea.Height() + 2 + 1 + 1
	vpHeight := c.height - reserved
	if vpHeight < 3 {
		vpHeight = 3
	}
	c.viewport.Width = c.width
	c.viewport.Height = vpHeight
	c.help.Width = c.width
	c.renderer.setWidth(c.width - 2)
	c.refresh()
}

func (c *Chat) submit() tea.Cmd {
	text := strings.TrimSpace(c.textarea.Value())
	if text == "" {
		return nil
	}

	turn, err := c.sess.Submit(text)
	if err != nil {
		if errors.Is(err, session.ErrTurnOpen) {
			c.notice = "Still answering. Press esc to stop."
		} else {
			c.notice = err.Error()
		}
		return nil
	}

	c.textarea.Reset()
	c.errText = ""
	c.notice = ""
	c.sync(c.sess.Snapshot())
	return tea.Batch(c.send(turn), c.spinner.Tick)
}

func (c *Chat) retry() tea.Cmd {
	turn, err := c.sess.Retry()
	if err != nil {
		if errors.Is(err, session.ErrTurnOpen) {
			c.notice = "Still answering. Press esc to stop."
		} else {
			c.notice = err.Error()
		}
		return nil
	}
	c.errText = ""
	c.notice = ""
	c.sync(c.sess.Snapshot())
	return tea.Batch(c.send(turn), c.spinner.Tick)
}

func (c *Chat) newSession() tea.Cmd {
	old := c.sess
	old.Cancel()
	saveOld := c.saveSession(old)

	c.detach()
	next := session.New(history.NewSessionID(), session.WithLogger(c.opts.Logger))
	c.router.Set(next)
	c.attach(next)
	c.log.Info().Str("previous", old.ID()).Str("session_id", next.ID()).Msg("Started new session")

	return tea.Batch(saveOld, c.waitForUpdate())
}

func (c *Chat) send(turn session.Turn) tea.Cmd {
	sess, sender, ctx := c.sess, c.opts.Sender, c.ctx
	return func() tea.Msg {
		result := sendResultMsg{sessionID: sess.ID(), turnID: turn.ID}
		if sender == nil {
			result.err = errors.New("not connected")
		} else {
			result.err = sender.Send(ctx, sess.ID(), turn.ID, turn.Prompt)
		}
		return result
	}
}

// waitForUpdate blocks on the active subscription, the way a tool event
// channel is drained: one message per command, re-issued after each.
func (c *Chat) waitForUpdate() tea.Cmd {
	id, ch := c.sess.ID(), c.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg{sessionID: id, update: u}
	}
}

func (c *Chat) save() tea.Cmd {
	return c.saveSession(c.sess)
}

func (c *Chat) saveSession(s *session.Session) tea.Cmd {
	store, backend := c.opts.Store, c.opts.Backend
	return func() tea.Msg {
		return savedMsg{sessionID: s.ID(), err: saveTranscript(store, backend, s)}
	}
}

func saveTranscript(store history.Store, backend string, s *session.Session) error {
	if store == nil {
		return nil
	}
	msgs := s.Snapshot()
	if len(msgs) == 0 {
		return nil
	}
	return store.Save(history.NewTranscript(s.ID(), backend, s.Title(), msgs))
}
