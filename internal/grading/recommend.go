package grading

import (
	"context"
	"sort"
	"strings"

	"github.com/pavelanni/quizflow/internal/i18n"
	"github.com/pavelanni/quizflow/internal/model"
)

const (
	challengeThreshold = 85.0
	solidThreshold     = 70.0
	weakThreshold      = 60.0
	maxWeakTopics      = 3
)

// Recommend builds study advice from a graded result, in the language
// carried by ctx.
func Recommend(ctx context.Context, subject string, res model.GradingResult) []string {
	var recs []string
	pct := res.OverallScore.Percentage
	subj := map[string]any{"Subject": subject}

	switch {
	case pct >= challengeThreshold:
		recs = append(recs, i18n.Td(ctx, "RecChallenge", subj))
	case pct >= solidThreshold:
		recs = append(recs, i18n.T(ctx, "RecSolid"))
	default:
		recs = append(recs,
			i18n.Td(ctx, "RecFundamentals", subj),
			i18n.Td(ctx, "RecRetake", subj),
		)
	}

	weak := make([]model.TopicPerformance, 0, len(res.PerformanceByTopic))
	for _, tp := range res.PerformanceByTopic {
		if tp.QuestionsAnswered > 0 && tp.Percentage < weakThreshold {
			weak = append(weak, tp)
		}
	}
	// Weakest first; ties keep quiz order.
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Percentage < weak[j].Percentage })
	for _, tp := range weak[:min(len(weak), maxWeakTopics)] {
		recs = append(recs, i18n.Td(ctx, "RecWeakTopic", map[string]any{
			"Topic":   tp.Topic,
			"Correct": tp.CorrectAnswers,
			"Total":   tp.QuestionsAnswered,
		}))
	}

	for _, d := range model.Difficulties {
		p := res.PerformanceByDifficulty[d]
		if p.Total > 0 && percent(p.Correct, p.Total) < weakThreshold {
			recs = append(recs, i18n.Td(ctx, "RecWeakDifficulty", map[string]any{
				"Difficulty": string(d),
				"Correct":    p.Correct,
				"Total":      p.Total,
			}))
		}
	}

	unanswered := 0
	for _, qr := range res.QuestionResults {
		if strings.TrimSpace(qr.UserAnswer) == "" {
			unanswered++
		}
	}
	if unanswered > 0 {
		recs = append(recs, i18n.Tp(ctx, "RecUnanswered", unanswered))
	}
	return recs
}
