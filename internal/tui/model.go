package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	appI18n "github.com/pavelanni/lsocheck/internal/i18n"
	"github.com/pavelanni/lsocheck/internal/metrics"
	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

type phase int

const (
	phaseContact phase = iota
	phaseQuestions
	phaseResult
)

// SubmitFunc delivers a finished questionnaire.
type SubmitFunc func(ctx context.Context, sub model.Submission) error

// Options configure a terminal questionnaire.
type Options struct {
	// Submit is called once per finished questionnaire. nil disables it.
	Submit SubmitFunc
	// SkipContact starts directly with the questions.
	SkipContact bool
}

type submittedMsg struct {
	id  string
	err error
}

// Model is the bubbletea model of the questionnaire.
type Model struct {
	ctx    context.Context // carries the localizer
	opts   Options
	styles Styles

	phase   phase
	engine  *questionnaire.Engine
	contact *model.Contact

	fields []textinput.Model
	focus  int

	cursor    int
	textInput textinput.Model
	bar       progress.Model

	errMsg       string
	submissionID string
	submitting   bool
	submitErr    error
	quitting     bool
}

// New creates the model. ctx must carry a localizer.
func New(ctx context.Context, opts Options) Model {
	m := Model{
		ctx:       ctx,
		opts:      opts,
		styles:    DefaultStyles(),
		engine:    questionnaire.New(),
		textInput: textinput.New(),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	labels := []string{"ContactNombre", "ContactApellidos", "ContactEmail", "ContactTelefono"}
	for _, l := range labels {
		ti := textinput.New()
		ti.Placeholder = appI18n.T(ctx, l)
		ti.CharLimit = 100
		ti.Width = 40
		m.fields = append(m.fields, ti)
	}
	m.fields[0].Focus()

	if opts.SkipContact {
		m.enterQuestions()
	}
	return m
}

// Init starts the cursor blink of the first field.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Engine exposes the underlying questionnaire state.
func (m Model) Engine() *questionnaire.Engine { return m.engine }

// Update handles key presses and submission results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case submittedMsg:
		if msg.id == m.submissionID {
			m.submitting = false
			m.submitErr = msg.err
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.phase {
		case phaseContact:
			return m.updateContact(msg)
		case phaseQuestions:
			return m.updateQuestions(msg)
		case phaseResult:
			return m.updateResult(msg)
		}
	}
	return m, nil
}

func (m Model) updateContact(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		m.setFocus(m.focus + 1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.setFocus(m.focus - 1)
		return m, nil
	case tea.KeyEnter:
		if m.focus < len(m.fields)-1 {
			m.setFocus(m.focus + 1)
			return m, nil
		}
		c := model.Contact{
			Nombre:    m.fields[0].Value(),
			Apellidos: m.fields[1].Value(),
			Email:     m.fields[2].Value(),
			Telefono:  m.fields[3].Value(),
		}
		if err := c.Validate(); err != nil {
			m.errMsg = appI18n.Td(m.ctx, "ContactInvalid", map[string]any{"Error": err.Error()})
			return m, nil
		}
		c = c.Normalize()
		m.contact = &c
		m.fields[m.focus].Blur()
		m.enterQuestions()
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) {
	if i < 0 || i >= len(m.fields) {
		return
	}
	m.fields[m.focus].Blur()
	m.focus = i
	m.fields[m.focus].Focus()
}

func (m *Model) enterQuestions() {
	m.phase = phaseQuestions
	m.errMsg = ""
	m.syncCursor()
}

// syncCursor points the cursor at the stored answer of the current question.
func (m *Model) syncCursor() {
	m.cursor = 0
	q, err := m.engine.CurrentQuestion()
	if err != nil {
		return
	}
	current := m.engine.CurrentAnswer()
	if q.Kind == questionnaire.KindText {
		m.textInput.SetValue(current)
		m.textInput.Focus()
		return
	}
	m.textInput.Blur()
	for i, c := range q.Choices {
		if c.Value == current {
			m.cursor = i
			return
		}
	}
}

func (m Model) updateQuestions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q, err := m.engine.CurrentQuestion()
	if err != nil {
		m.phase = phaseResult
		return m, nil
	}

	if q.Kind == questionnaire.KindText {
		switch msg.Type {
		case tea.KeyEnter:
			return m.answer(m.textInput.Value())
		case tea.KeyLeft:
			return m.back()
		case tea.KeyCtrlR:
			return m.resetTrack()
		}
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(q.Choices)-1 {
			m.cursor++
		}
	case "enter":
		if len(q.Choices) == 0 {
			return m.answer("")
		}
		return m.answer(q.Choices[m.cursor].Value)
	case "left", "b":
		return m.back()
	case "ctrl+r":
		return m.resetTrack()
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) answer(value string) (tea.Model, tea.Cmd) {
	if err := m.engine.RecordAnswer(value); err != nil {
		m.errMsg = err.Error()
		return m, nil
	}
	if err := m.engine.Advance(); err != nil {
		var ve *questionnaire.ValidationError
		if errors.As(err, &ve) {
			m.errMsg = appI18n.T(m.ctx, "AnswerRequired")
		} else {
			m.errMsg = err.Error()
		}
		return m, nil
	}
	m.errMsg = ""
	if m.engine.Stage().Terminal() {
		return m.finish()
	}
	m.syncCursor()
	return m, nil
}

func (m Model) back() (tea.Model, tea.Cmd) {
	m.engine.Retreat()
	m.errMsg = ""
	m.syncCursor()
	return m, nil
}

func (m Model) resetTrack() (tea.Model, tea.Cmd) {
	m.engine.ResetTrack()
	m.errMsg = ""
	m.syncCursor()
	return m, nil
}

// finish shows the result and submits the questionnaire in the background.
func (m Model) finish() (tea.Model, tea.Cmd) {
	m.phase = phaseResult
	sub := model.NewSubmission(uuid.NewString(), m.engine, m.contact)
	m.submissionID = sub.ID
	m.submitErr = nil
	metrics.QuestionnaireCompleted(m.engine.Verdict())
	if m.opts.Submit == nil {
		return m, nil
	}
	m.submitting = true
	submit := m.opts.Submit
	return m, func() tea.Msg {
		return submittedMsg{id: sub.ID, err: submit(context.Background(), sub)}
	}
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.engine.Reset()
		m.submissionID = ""
		m.submitting = false
		m.submitErr = nil
		m.enterQuestions()
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the current phase.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.phase {
	case phaseContact:
		return m.viewContact()
	case phaseResult:
		return m.viewResult()
	default:
		return m.viewQuestion()
	}
}

func (m Model) viewContact() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(appI18n.T(m.ctx, "ContactTitle")) + "\n")
	for _, f := range m.fields {
		b.WriteString(f.View() + "\n")
	}
	if m.errMsg != "" {
		b.WriteString("\n" + m.styles.Error.Render(m.errMsg) + "\n")
	}
	return b.String()
}

func (m Model) viewQuestion() string {
	q, err := m.engine.CurrentQuestion()
	if err != nil {
		return ""
	}
	var b strings.Builder
	title := appI18n.T(m.ctx, "AppTitle")
	if m.engine.Track() == questionnaire.TrackAsset {
		title = appI18n.T(m.ctx, "AssetTitle")
	}
	b.WriteString(m.styles.Title.Render(title) + "\n")
	if m.engine.Track() == questionnaire.TrackAsset && m.engine.Position() == 0 {
		b.WriteString(m.styles.Description.Render(appI18n.T(m.ctx, "AssetIntro")) + "\n\n")
	}
	step := appI18n.Td(m.ctx, "StepOf", map[string]any{"Step": m.engine.Position() + 1, "Total": m.engine.Total()})
	b.WriteString(m.styles.Step.Render(step) + "\n")
	b.WriteString(m.bar.ViewAs(float64(m.engine.Progress())/100) + "\n\n")

	b.WriteString(m.styles.Prompt.Render(q.Prompt) + "\n")
	if q.Description != "" {
		b.WriteString(m.styles.Description.Render(q.Description) + "\n")
	}
	b.WriteString("\n")

	if q.Kind == questionnaire.KindText {
		b.WriteString(m.textInput.View() + "\n")
	} else {
		for i, c := range q.Choices {
			if i == m.cursor {
				b.WriteString(m.styles.Selected.Render("> "+c.Label) + "\n")
			} else {
				b.WriteString(m.styles.Choice.Render(c.Label) + "\n")
			}
		}
	}
	if m.errMsg != "" {
		b.WriteString("\n" + m.styles.Error.Render(m.errMsg) + "\n")
	}
	b.WriteString(m.styles.Help.Render(appI18n.T(m.ctx, "HelpKeys")))
	return b.String()
}

func (m Model) viewResult() string {
	var b strings.Builder
	v := m.engine.Verdict()
	if v.Eligible {
		b.WriteString(m.styles.Title.Render(appI18n.T(m.ctx, "ResultEligibleTitle")) + "\n")
		b.WriteString(m.styles.Good.Render("✓ "+appI18n.T(m.ctx, "ResultEligible")) + "\n\n")
		if m.engine.Stage() == questionnaire.StageSecondaryComplete {
			var box strings.Builder
			box.WriteString(m.styles.Prompt.Render(appI18n.T(m.ctx, "NoAssetsTitle")) + "\n")
			box.WriteString(appI18n.T(m.ctx, "NoAssetsNote") + "\n\n")
			box.WriteString(appI18n.T(m.ctx, "DocumentsTitle") + "\n")
			for _, d := range questionnaire.RequiredDocuments(m.engine.ReachableAssetAnswers()) {
				box.WriteString("• " + appI18n.DocumentText(m.ctx, d) + "\n")
			}
			box.WriteString("\n" + appI18n.T(m.ctx, "NextSteps"))
			b.WriteString(m.styles.Box.Render(box.String()) + "\n\n")
		}
		b.WriteString(m.styles.Description.Render(appI18n.T(m.ctx, "ResultEligibleNote")) + "\n")
	} else {
		b.WriteString(m.styles.Title.Render(appI18n.T(m.ctx, "ResultIneligibleTitle")) + "\n")
		b.WriteString(m.styles.Bad.Render(appI18n.T(m.ctx, "ResultIneligible")) + "\n")
		for _, r := range appI18n.ReasonTexts(m.ctx, v.Reasons) {
			b.WriteString(m.styles.Error.Render("• "+r) + "\n")
		}
		b.WriteString("\n" + m.styles.Description.Render(appI18n.T(m.ctx, "ResultIneligibleNote")) + "\n")
	}

	switch {
	case m.submitting:
		b.WriteString("\n…\n")
	case m.submitErr != nil:
		b.WriteString("\n" + m.styles.Error.Render(appI18n.T(m.ctx, "SubmitFailed")) + "\n")
	case m.submissionID != "" && m.opts.Submit != nil:
		b.WriteString("\n" + m.styles.Good.Render(appI18n.T(m.ctx, "SubmitOK")) + "\n")
	}
	b.WriteString(m.styles.Help.Render(appI18n.T(m.ctx, "HelpResult")))
	return b.String()
}

// Run starts the terminal questionnaire and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if _, err := tea.NewProgram(New(ctx, opts), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run questionnaire: %w", err)
	}
	return nil
}
