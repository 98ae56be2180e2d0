// Package domaintest builds valid papers for tests.
package domaintest

import (
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
)

// ClinicalPaper returns a valid clinical paper with n SBA questions whose key is always "B".
func ClinicalPaper(n int) domain.Paper {
	p := domain.Paper{
		ID:          domain.NewID(),
		Kind:        domain.PaperClinical,
		Title:       "Cardiology Mock",
		Description: "Single best answer practice",
		TimeLimit:   10,
		CreatedAt:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		p.Questions = append(p.Questions, domain.Question{
			ID:     domain.NewID(),
			Prompt: fmt.Sprintf("Clinical question %d", i+1),
			Style:  domain.StyleSBA,
			Options: []domain.Option{
				{Label: "A", Text: "Aspirin"},
				{Label: "B", Text: "Beta blocker"},
				{Label: "C", Text: "Calcium channel blocker"},
				{Label: "D", Text: "Digoxin"},
				{Label: "E", Text: "Enalapril"},
			},
			Answer:      domain.BestChoice("B"),
			Explanation: "Beta blockers are first line here.",
		})
	}
	return p
}

// SJTPaper returns a valid SJT paper: one ranking question followed by one best-choice question.
func SJTPaper() domain.Paper {
	choices := []string{"Inform the consultant", "Apologise", "Document", "Ignore", "Ask a colleague"}
	return domain.Paper{
		ID:          domain.NewID(),
		Kind:        domain.PaperSJT,
		Title:       "Professionalism",
		Description: "Situational judgement practice",
		Subject:     "Ethics",
		TimeLimit:   5,
		CreatedAt:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		Questions: []domain.Question{
			{
				ID:          domain.NewID(),
				Prompt:      "Rank the responses",
				Style:       domain.StyleRanking,
				Choices:     choices,
				Answer:      domain.Ranked(choices...),
				Explanation: "Patient safety first.",
			},
			{
				ID:      domain.NewID(),
				Prompt:  "Choose the most appropriate action",
				Style:   domain.StyleBestChoice,
				Choices: choices,
				Answer:  domain.BestChoice("Apologise"),
			},
		},
	}
}
