package scoring

import (
	"testing"

	"exam-prep-service/internal/domain"
)

func bestChoiceQuestions(keys ...string) []domain.Question {
	qs := make([]domain.Question, len(keys))
	for i, k := range keys {
		qs[i] = domain.Question{
			ID:     domain.NewID(),
			Style:  domain.StyleSBA,
			Answer: domain.BestChoice(k),
		}
	}
	return qs
}

func TestScoreFourOfFivePasses(t *testing.T) {
	qs := bestChoiceQuestions("A", "B", "C", "D", "E")
	answers := map[int]domain.Response{
		0: domain.BestChoice("A"),
		1: domain.BestChoice("B"),
		2: domain.BestChoice("C"),
		3: domain.BestChoice("D"),
		4: domain.BestChoice("A"),
	}

	res := Score(qs, answers)
	if res.Correct != 4 || res.Total != 5 {
		t.Fatalf("expected 4/5, got %d/%d", res.Correct, res.Total)
	}
	if res.Percentage != 80 {
		t.Fatalf("expected 80%%, got %d", res.Percentage)
	}
	if res.Label != LabelPassed {
		t.Fatalf("expected Passed, got %s", res.Label)
	}
}

func TestScoreNoAnswersFails(t *testing.T) {
	qs := bestChoiceQuestions("A", "B", "C", "D", "E")

	res := Score(qs, nil)
	if res.Correct != 0 || res.Total != 5 || res.Percentage != 0 {
		t.Fatalf("expected 0/5 at 0%%, got %+v", res)
	}
	if res.Label != LabelFailed {
		t.Fatalf("expected Failed, got %s", res.Label)
	}
	for i, m := range res.Marks {
		if m.Correct || m.Marks != 0 || m.MaxMarks != 1 {
			t.Fatalf("question %d: unexpected mark %+v", i, m)
		}
	}
}

func TestScoreEmptyPaper(t *testing.T) {
	res := Score(nil, nil)
	if res.Total != 0 || res.Percentage != 0 {
		t.Fatalf("expected zero result, got %+v", res)
	}
}

func TestPercentageBoundsAndRounding(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			p := Percentage(correct, total)
			if p < 0 || p > 100 {
				t.Fatalf("percentage(%d,%d)=%d out of range", correct, total, p)
			}
			if total == 0 {
				if p != 0 {
					t.Fatalf("percentage with zero total should be 0, got %d", p)
				}
				continue
			}
			// round half up, computed independently in float
			want := int(float64(100*correct)/float64(total) + 0.5)
			if p != want {
				t.Fatalf("percentage(%d,%d)=%d want %d", correct, total, p, want)
			}
		}
	}
}

func TestPercentageHalfRoundsUp(t *testing.T) {
	if got := Percentage(1, 8); got != 13 {
		t.Fatalf("12.5 should round to 13, got %d", got)
	}
	if got := Percentage(1, 3); got != 33 {
		t.Fatalf("33.3 should round to 33, got %d", got)
	}
}

func TestLabelThreshold(t *testing.T) {
	if Label(70) != LabelPassed {
		t.Fatalf("70 should pass")
	}
	if Label(69) != LabelFailed {
		t.Fatalf("69 should fail")
	}
}

func TestRankingExactOrder(t *testing.T) {
	choices := []string{"a", "b", "c", "d", "e"}
	q := domain.Question{
		ID:      domain.NewID(),
		Style:   domain.StyleRanking,
		Choices: choices,
		Answer:  domain.Ranked("c", "a", "b", "e", "d"),
	}

	exact := Score([]domain.Question{q}, map[int]domain.Response{0: domain.Ranked("c", "a", "b", "e", "d")})
	if exact.Correct != 1 || exact.Marks[0].Marks != 1 {
		t.Fatalf("expected exact order to score, got %+v", exact)
	}

	swapped := Score([]domain.Question{q}, map[int]domain.Response{0: domain.Ranked("a", "c", "b", "e", "d")})
	if swapped.Correct != 0 || swapped.Marks[0].MaxMarks != 1 {
		t.Fatalf("expected swapped order to score zero, got %+v", swapped)
	}
}

func TestCustomRankingRule(t *testing.T) {
	positional := func(key, given []string) (int, int) {
		marks := 0
		for i := range key {
			if i < len(given) && given[i] == key[i] {
				marks++
			}
		}
		return marks, len(key)
	}
	q := domain.Question{Style: domain.StyleRanking, Choices: []string{"a", "b", "c"}, Answer: domain.Ranked("a", "b", "c")}

	res := New(positional).Score([]domain.Question{q}, map[int]domain.Response{0: domain.Ranked("a", "c", "b")})
	if res.Marks[0].Marks != 1 || res.Marks[0].MaxMarks != 3 || res.Correct != 0 {
		t.Fatalf("unexpected custom mark %+v", res.Marks[0])
	}
}

func TestBand(t *testing.T) {
	cases := map[int]string{100: "excellent", 80: "excellent", 79: "good", 60: "good", 45: "fair", 10: "poor"}
	for pct, want := range cases {
		if got := Band(pct); got != want {
			t.Fatalf("band(%d)=%s want %s", pct, got, want)
		}
	}
}
