package tui

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/pavelanni/quizflow/internal/client"
	"github.com/pavelanni/quizflow/internal/i18n"
	"github.com/pavelanni/quizflow/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	codeStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	timerStyle = lipgloss.NewStyle().Bold(true)
	lowTime    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
)

func (m *Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m *Model) render() string {
	ctx := context.Background()
	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T(ctx, "AppTitle")))
	if m.state.Subject != "" {
		b.WriteString(dimStyle.Render(" · " + m.state.Subject))
	}
	b.WriteString("\n\n")

	switch m.state.Phase {
	case client.PhaseLoading:
		m.renderMenu(ctx, &b)
	case client.PhaseGenerating:
		b.WriteString(i18n.T(ctx, "TUIGenerating") + "\n")
	case client.PhaseTaking, client.PhaseSubmitting:
		m.renderQuestion(ctx, &b)
	case client.PhaseCompleted:
		renderResult(ctx, &b, m.state.Result)
	case client.PhaseFailed:
		b.WriteString(errorStyle.Render(i18n.T(ctx, "TUIFailed")) + "\n")
	}

	if m.state.Err != "" {
		b.WriteString("\n" + errorStyle.Render(m.state.Err) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render(m.helpLine(ctx)) + "\n")
	return b.String()
}

func (m *Model) renderMenu(ctx context.Context, b *strings.Builder) {
	b.WriteString(i18n.T(ctx, "TUIChooseSubject") + "\n\n")
	for i, s := range m.subjects {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+s) + "\n")
		} else {
			b.WriteString("  " + s + "\n")
		}
	}
}

func (m *Model) renderQuestion(ctx context.Context, b *strings.Builder) {
	q, ok := m.currentQuestion()
	if !ok {
		return
	}
	total := len(m.state.Quiz.Questions)
	fmt.Fprintf(b, "%s %s   %s %s\n\n",
		dimStyle.Render(fmt.Sprintf("%d/%d", m.state.Current+1, total)),
		dimStyle.Render(fmt.Sprintf("[%s · %s]", q.Difficulty, q.Topic)),
		i18n.T(ctx, "TUITimeLeft")+":",
		formatRemaining(m.state.Remaining),
	)
	b.WriteString(q.Question + "\n")
	if q.CodeSnippet != "" {
		b.WriteString(codeStyle.Render(q.CodeSnippet) + "\n")
	}
	b.WriteString("\n")

	switch q.Type {
	case model.QuestionMultipleChoice:
		for i, opt := range q.Options {
			line := fmt.Sprintf("%c) %s", 'A'+i, opt)
			if m.state.Answers[q.ID] == opt {
				line = selectedStyle.Render(line + " ✓")
			}
			b.WriteString("  " + line + "\n")
		}
	case model.QuestionTrueFalse:
		b.WriteString("  " + dimStyle.Render("t = "+model.AnswerTrue+", f = "+model.AnswerFalse) + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	fmt.Fprintf(b, "\n%s\n", dimStyle.Render(i18n.Tp(ctx, "QuestionsCount", m.state.Answered())+" ✓"))

	switch {
	case m.state.Phase == client.PhaseSubmitting:
		b.WriteString("\n" + i18n.T(ctx, "TUISubmitting") + "\n")
	case m.timeUp():
		b.WriteString("\n" + errorStyle.Render(i18n.T(ctx, "TUITimeUp")) + "\n")
	}
}

func renderResult(ctx context.Context, b *strings.Builder, res *model.GradingResult) {
	if res == nil {
		return
	}
	s := res.OverallScore
	fmt.Fprintf(b, "%s: %g/%d (%.1f%%)   %s: %s\n\n",
		i18n.T(ctx, "TUIScore"), s.PointsEarned, s.TotalPoints, s.Percentage,
		i18n.T(ctx, "TUIGrade"), selectedStyle.Render(s.Grade))

	for _, tp := range res.PerformanceByTopic {
		fmt.Fprintf(b, "  %-30s %d/%d\n", tp.Topic, tp.CorrectAnswers, tp.QuestionsAnswered)
	}
	if len(res.Recommendations) > 0 {
		b.WriteString("\n" + titleStyle.Render(i18n.T(ctx, "TUIRecommendations")) + "\n")
		for _, r := range res.Recommendations {
			b.WriteString("  • " + r + "\n")
		}
	}
}

func (m *Model) helpLine(ctx context.Context) string {
	switch m.state.Phase {
	case client.PhaseTaking, client.PhaseSubmitting:
		return i18n.T(ctx, "TUIHelpTaking")
	case client.PhaseCompleted, client.PhaseFailed:
		return i18n.T(ctx, "TUIHelpDone")
	}
	return "↑/↓ • enter • esc"
}

func formatRemaining(sec int) string {
	s := fmt.Sprintf("%02d:%02d", sec/60, sec%60)
	if sec < 60 {
		return lowTime.Render(s)
	}
	return timerStyle.Render(s)
}
