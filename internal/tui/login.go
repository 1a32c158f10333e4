package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

const (
	fieldName = iota
	fieldEmail
	fieldPassword
)

type loginDoneMsg struct{ err error }

// loginModel signs in or registers. The submit key does nothing while a
// request is outstanding.
type loginModel struct {
	ctx  context.Context
	sess *session.Manager
	st   ui.Styles

	register bool
	inputs   [3]textinput.Model
	focus    int
	pending  bool
	err      string
	notice   string
}

func newLoginModel(ctx context.Context, sess *session.Manager, st ui.Styles, expired bool) *loginModel {
	m := &loginModel{ctx: ctx, sess: sess, st: st}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.CharLimit = 120
		m.inputs[i] = ti
	}
	m.inputs[fieldName].Placeholder = "Name"
	m.inputs[fieldEmail].Placeholder = "Email"
	m.inputs[fieldPassword].Placeholder = "Password"
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'
	if expired {
		m.notice = "Your session has expired. Please sign in again."
	}
	m.focus = fieldEmail
	return m
}

func (m *loginModel) init() tea.Cmd {
	return m.inputs[m.focus].Focus()
}

func (m *loginModel) fields() []int {
	if m.register {
		return []int{fieldName, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m *loginModel) move(delta int) tea.Cmd {
	fs := m.fields()
	pos := 0
	for i, f := range fs {
		if f == m.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(fs)) % len(fs)
	m.inputs[m.focus].Blur()
	m.focus = fs[pos]
	return m.inputs[m.focus].Focus()
}

func (m *loginModel) submit() tea.Cmd {
	if m.pending {
		return nil
	}
	m.pending = true
	m.err = ""
	ctx, sess, register := m.ctx, m.sess, m.register
	name := strings.TrimSpace(m.inputs[fieldName].Value())
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	return func() tea.Msg {
		var err error
		if register {
			_, err = sess.Register(ctx, name, email, password)
		} else {
			_, err = sess.Login(ctx, email, password)
		}
		return loginDoneMsg{err: err}
	}
}

func (m *loginModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case loginDoneMsg:
		m.pending = false
		if msg.err != nil {
			m.err = message(msg.err)
			m.inputs[fieldPassword].SetValue("")
		}
		return nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return tea.Quit
		case "tab", "down":
			return m.move(1)
		case "shift+tab", "up":
			return m.move(-1)
		case "ctrl+r":
			m.register = !m.register
			m.err = ""
			if !m.register && m.focus == fieldName {
				return m.move(0)
			}
			return nil
		case "enter":
			fs := m.fields()
			if m.focus != fs[len(fs)-1] {
				return m.move(1)
			}
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

func (m *loginModel) view() string {
	title := "Sign in to SmartBoard"
	if m.register {
		title = "Create a SmartBoard account"
	}
	var b strings.Builder
	b.WriteString(m.st.Title.Render(title) + "\n\n")
	if m.notice != "" {
		b.WriteString(m.st.Accent.Render(m.notice) + "\n\n")
	}
	for _, f := range m.fields() {
		b.WriteString(m.inputs[f].View() + "\n")
	}
	b.WriteString("\n")
	switch {
	case m.pending:
		b.WriteString(m.st.Muted.Render("Please wait...") + "\n")
	case m.err != "":
		b.WriteString(m.st.Error.Render(m.err) + "\n")
	}
	other := "ctrl+r register"
	if m.register {
		other = "ctrl+r sign in"
	}
	b.WriteString(m.st.Help.Render("tab next • enter submit • " + other + " • esc quit"))
	return m.st.Frame.Render(b.String())
}
