// Package scoring computes quiz results. Everything here is pure.
package scoring

import (
	"exam-prep-service/internal/domain"
)

// PassThreshold is the percentage at or above which an attempt passes.
const PassThreshold = 70

const (
	LabelPassed = "Passed"
	LabelFailed = "Failed"
)

// RankingRule awards marks for a ranking response against the canonical order.
type RankingRule func(key, given []string) (marks, maxMarks int)

// ExactOrder gives one mark only when the whole order matches.
func ExactOrder(key, given []string) (int, int) {
	if domain.Ranked(key...).Equal(domain.Ranked(given...)) {
		return 1, 1
	}
	return 0, 1
}

// Mark is the scored outcome of one question.
type Mark struct {
	Correct  bool
	Marks    int
	MaxMarks int
}

// Result aggregates a scored attempt.
type Result struct {
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Label      string `json:"label"`
	Marks      []Mark `json:"-"`
}

// Scorer scores answers against question keys.
type Scorer struct {
	ranking RankingRule
}

// New returns a scorer; a nil rule falls back to ExactOrder.
func New(rule RankingRule) *Scorer {
	if rule == nil {
		rule = ExactOrder
	}
	return &Scorer{ranking: rule}
}

// Score dispatches on each question's type. answers is keyed by question
// index; missing or empty entries count toward Total but not Correct.
func (s *Scorer) Score(questions []domain.Question, answers map[int]domain.Response) Result {
	res := Result{Total: len(questions), Marks: make([]Mark, len(questions))}
	for i, q := range questions {
		given, ok := answers[i]
		mark := s.markOne(q, given, ok && !given.Empty())
		res.Marks[i] = mark
		if mark.Correct {
			res.Correct++
		}
	}
	res.Percentage = Percentage(res.Correct, res.Total)
	res.Label = Label(res.Percentage)
	return res
}

func (s *Scorer) markOne(q domain.Question, given domain.Response, answered bool) Mark {
	if q.Type() == domain.TypeRanking {
		if !answered || given.Type != domain.TypeRanking {
			_, maxMarks := s.ranking(q.Answer.Ranking, nil)
			return Mark{MaxMarks: maxMarks}
		}
		marks, maxMarks := s.ranking(q.Answer.Ranking, given.Ranking)
		return Mark{Correct: marks == maxMarks && maxMarks > 0, Marks: marks, MaxMarks: maxMarks}
	}
	if answered && given.Choice == q.Answer.Choice {
		return Mark{Correct: true, Marks: 1, MaxMarks: 1}
	}
	return Mark{MaxMarks: 1}
}

// Score uses the default scorer.
func Score(questions []domain.Question, answers map[int]domain.Response) Result {
	return New(nil).Score(questions, answers)
}

// Percentage is correct/total*100 rounded half up, and 0 for an empty paper.
func Percentage(correct, total int) int {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct >= total {
		return 100
	}
	// integer round-half-up of 100*correct/total
	return (200*correct + total) / (2 * total)
}

// Label derives the pass/fail label; it is never stored.
func Label(percentage int) string {
	if percentage >= PassThreshold {
		return LabelPassed
	}
	return LabelFailed
}

// Band buckets a percentage for the summary and progress views.
func Band(percentage int) string {
	switch {
	case percentage >= 80:
		return "excellent"
	case percentage >= 60:
		return "good"
	case percentage >= 40:
		return "fair"
	default:
		return "poor"
	}
}
