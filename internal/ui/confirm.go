package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/gate"
	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Confirmer asks through the configured terminal backend and falls back to
// the plain line prompt. Every backend keeps the same rule as the line
// prompt: Enter on the default choice runs, anything else cancels.
type Confirmer struct {
	Backend string
	In      io.Reader
	Out     io.Writer
	Logger  *zap.Logger
}

func (c Confirmer) Confirm(ctx context.Context, candidate resolver.Candidate) (gate.Decision, error) {
	in := c.In
	if in == nil {
		in = os.Stdin
	}
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interactive := in == io.Reader(os.Stdin) && stdinIsInteractive() && stdoutIsInteractive()
	if interactive && IsInteractiveBackend(c.Backend) {
		decision, handled, err := confirmWithBackends(ctx, c.Backend, candidate)
		if handled {
			return decision, nil
		}
		if err != nil {
			logger.Debug("terminal backend failed, using line prompt", zap.Error(err))
		}
	}

	render := gate.PlainRender
	if interactive {
		render = RenderCandidate
	}
	return gate.LineConfirmer{In: in, Out: out, Render: render}.Confirm(ctx, candidate)
}

func confirmWithBackends(ctx context.Context, backend string, candidate resolver.Candidate) (gate.Decision, bool, error) {
	var firstErr error
	for _, name := range backendCandidates(backend) {
		var (
			approved bool
			err      error
		)
		switch name {
		case BackendBubbleTea:
			approved, err = confirmWithBubbleTea(ctx, candidate)
		case BackendHuh:
			approved, err = confirmWithHuh(ctx, candidate)
		case BackendTView:
			approved, err = confirmWithTView(ctx, candidate)
		default:
			continue
		}
		if ctx.Err() != nil {
			return gate.DecisionRejected, true, nil
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if approved {
			return gate.DecisionAccepted, true, nil
		}
		return gate.DecisionRejected, true, nil
	}
	return gate.DecisionRejected, false, firstErr
}

type confirmKeyMap struct {
	Run    key.Binding
	Cancel key.Binding
}

var confirmKeys = confirmKeyMap{
	Run: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "run"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c", "n", "q"),
		key.WithHelp("any other key", "cancel"),
	),
}

type bubbleConfirmModel struct {
	candidate resolver.Candidate
	approved  bool
	done      bool
}

func (m bubbleConfirmModel) Init() tea.Cmd { return nil }

func (m bubbleConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.done = true
	m.approved = key.Matches(k, confirmKeys.Run)
	return m, tea.Quit
}

func (m bubbleConfirmModel) View() string {
	return fmt.Sprintf("%s%s  %s\n",
		RenderCandidate(m.candidate),
		hintStyle.Render(confirmKeys.Run.Help().Key+" "+confirmKeys.Run.Help().Desc),
		hintStyle.Render(confirmKeys.Cancel.Help().Key+" "+confirmKeys.Cancel.Help().Desc),
	)
}

func confirmWithBubbleTea(ctx context.Context, candidate resolver.Candidate) (bool, error) {
	model := bubbleConfirmModel{candidate: candidate}
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return false, err
	}
	out, ok := final.(bubbleConfirmModel)
	if !ok || !out.done {
		return false, nil
	}
	return out.approved, nil
}

// huhConfirmModel hosts the huh form but keeps the gate rule: only Enter on
// the default "Run" choice reaches the form, any other key cancels.
type huhConfirmModel struct {
	form     *huh.Form
	approved *bool
	rejected bool
}

func newHuhConfirmModel(candidate resolver.Candidate) huhConfirmModel {
	approved := true
	km := huh.NewDefaultKeyMap()
	km.Confirm.Accept.SetEnabled(false)
	km.Confirm.Toggle.SetEnabled(false)

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Run this command?").
			Description(describe(candidate)).
			Affirmative("Run").
			Negative("Cancel").
			Value(&approved),
	)).
		WithTheme(huh.ThemeCharm()).
		WithKeyMap(km)
	return huhConfirmModel{form: form, approved: &approved}
}

func (m huhConfirmModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m huhConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && !key.Matches(k, confirmKeys.Run) {
		m.rejected = true
		return m, tea.Quit
	}
	next, cmd := m.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		return m, tea.Quit
	case huh.StateAborted:
		m.rejected = true
		return m, tea.Quit
	}
	return m, cmd
}

func (m huhConfirmModel) View() string {
	if m.rejected || m.form.State != huh.StateNormal {
		return ""
	}
	return m.form.View()
}

func (m huhConfirmModel) accepted() bool {
	return !m.rejected && m.form.State == huh.StateCompleted && *m.approved
}

func confirmWithHuh(ctx context.Context, candidate resolver.Candidate) (bool, error) {
	final, err := tea.NewProgram(newHuhConfirmModel(candidate), tea.WithContext(ctx)).Run()
	if err != nil {
		return false, err
	}
	out, ok := final.(huhConfirmModel)
	if !ok {
		return false, nil
	}
	return out.accepted(), nil
}

// tviewKeyFilter passes Enter through to the focused "Run" button and turns
// every other key into a cancel, so focus never moves between buttons.
func tviewKeyFilter(reject func()) func(*tcell.EventKey) *tcell.EventKey {
	return func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEnter {
			return ev
		}
		reject()
		return nil
	}
}

func confirmWithTView(ctx context.Context, candidate resolver.Candidate) (bool, error) {
	app := tview.NewApplication()
	approved := false
	done := false

	modal := tview.NewModal().
		SetText("Run this command?\n\n" + describe(candidate)).
		AddButtons([]string{"Run", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			done = true
			approved = strings.EqualFold(strings.TrimSpace(label), "run")
			app.Stop()
		})
	app.SetInputCapture(tviewKeyFilter(func() {
		done = true
		approved = false
		app.Stop()
	}))

	stop := context.AfterFunc(ctx, app.Stop)
	defer stop()

	if err := app.SetRoot(modal, true).Run(); err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}
	return approved, nil
}

func describe(candidate resolver.Candidate) string {
	var b strings.Builder
	b.WriteString(candidate.Command)
	if candidate.Source != "" {
		fmt.Fprintf(&b, "\n\n%s, confidence %.2f", candidate.Source, candidate.Confidence)
	}
	if highRisk(candidate.Command) {
		b.WriteString("\nwarning: this command looks destructive")
	}
	return b.String()
}
