package grading

import "github.com/pavelanni/quizflow/internal/model"

// LetterGrade maps a percentage to A-F using closed lower bounds.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	}
	return "F"
}

func percent[T int | float64](part T, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func overallScore(questions []model.Question, results []model.QuestionResult) model.OverallScore {
	var s model.OverallScore
	for i, q := range questions {
		s.TotalPoints += q.Weight()
		s.PointsEarned += results[i].PointsAwarded
	}
	s.Percentage = percent(s.PointsEarned, s.TotalPoints)
	s.Grade = LetterGrade(s.Percentage)
	return s
}

// topicPerformance keeps topics in the order they first appear in the quiz.
func topicPerformance(questions []model.Question, results []model.QuestionResult) []model.TopicPerformance {
	out := []model.TopicPerformance{}
	pos := make(map[string]int)
	for i, q := range questions {
		topic := q.Topic
		if topic == "" {
			topic = "Unknown"
		}
		j, ok := pos[topic]
		if !ok {
			j = len(out)
			pos[topic] = j
			out = append(out, model.TopicPerformance{Topic: topic})
		}
		out[j].QuestionsAnswered++
		if results[i].IsCorrect {
			out[j].CorrectAnswers++
		}
	}
	for i := range out {
		out[i].Percentage = percent(out[i].CorrectAnswers, out[i].QuestionsAnswered)
	}
	return out
}

func difficultyPerformance(questions []model.Question, results []model.QuestionResult) map[model.Difficulty]model.DifficultyPerformance {
	out := make(map[model.Difficulty]model.DifficultyPerformance, len(model.Difficulties))
	for _, d := range model.Difficulties {
		out[d] = model.DifficultyPerformance{}
	}
	for i, q := range questions {
		p, ok := out[q.Difficulty]
		if !ok {
			continue
		}
		p.Total++
		if results[i].IsCorrect {
			p.Correct++
		}
		out[q.Difficulty] = p
	}
	return out
}
