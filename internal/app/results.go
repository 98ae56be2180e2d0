package app

import (
	"context"
	"fmt"
	"time"

	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/scoring"
	"github.com/shopspring/decimal"
)

// Review statuses of a single question.
const (
	StatusCorrect    = "correct"
	StatusIncorrect  = "incorrect"
	StatusUnanswered = "unanswered"
)

// ReviewItem is one question of a review, joined with the user's response.
type ReviewItem struct {
	Number        int                 `json:"number"`
	QuestionID    domain.ID           `json:"questionId"`
	Prompt        string              `json:"question"`
	Style         string              `json:"style"`
	Type          domain.QuestionType `json:"type"`
	Options       []domain.Option     `json:"options,omitempty"`
	Choices       []string            `json:"choices,omitempty"`
	Response      domain.Response     `json:"response"`
	CorrectAnswer domain.Response     `json:"correctAnswer"`
	Explanation   string              `json:"explanation,omitempty"`
	Status        string              `json:"status"`
}

// Review is the read-only projection of a submitted attempt.
type Review struct {
	RecordID         domain.ID        `json:"recordId"`
	PaperID          domain.ID        `json:"paperId"`
	Kind             domain.PaperKind `json:"kind"`
	Title            string           `json:"title"`
	Items            []ReviewItem     `json:"items"`
	Score            int              `json:"score"`
	MaxScore         int              `json:"maxScore"`
	Percentage       int              `json:"percentage"`
	Label            string           `json:"label"`
	Band             string           `json:"band"`
	TimeTaken        int              `json:"timeTaken"`
	TimeTakenDisplay string           `json:"timeTakenDisplay"`
	CompletedAt      time.Time        `json:"completedAt"`
}

// ReviewCursor walks review items without guards; any index is reachable.
type ReviewCursor struct {
	items []ReviewItem
	index int
}

func NewReviewCursor(r Review) *ReviewCursor {
	return &ReviewCursor{items: r.Items}
}

func (c *ReviewCursor) Len() int   { return len(c.items) }
func (c *ReviewCursor) Index() int { return c.index }

// Current returns the item under the cursor.
func (c *ReviewCursor) Current() (ReviewItem, bool) {
	if c.index < 0 || c.index >= len(c.items) {
		return ReviewItem{}, false
	}
	return c.items[c.index], true
}

// Next moves forward; it reports false at the last item.
func (c *ReviewCursor) Next() bool {
	if c.index+1 >= len(c.items) {
		return false
	}
	c.index++
	return true
}

// Prev moves back; it reports false at the first item.
func (c *ReviewCursor) Prev() bool {
	if c.index == 0 {
		return false
	}
	c.index--
	return true
}

// Jump moves to index if it is in range.
func (c *ReviewCursor) Jump(index int) bool {
	if index < 0 || index >= len(c.items) {
		return false
	}
	c.index = index
	return true
}

// FormatTimeTaken renders seconds as "12m 05s".
func FormatTimeTaken(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %02ds", seconds/60, seconds%60)
}

// KindProgress aggregates a user's records of one paper kind.
type KindProgress struct {
	PapersAttempted    int    `json:"papersAttempted"`
	Attempts           int    `json:"attempts"`
	AverageScore       int    `json:"averageScore"`
	HighestScore       int    `json:"highestScore"`
	QuestionsAttempted int    `json:"questionsAttempted"`
	CorrectAnswers     int    `json:"correctAnswers"`
	Band               string `json:"band"`
}

// Progress is the per-kind summary shown on the progress page.
type Progress struct {
	UserID domain.ID                         `json:"userId"`
	Kinds  map[domain.PaperKind]KindProgress `json:"kinds"`
}

// ResultService renders reviews and progress from stored answer records.
type ResultService struct {
	answers AnswerStore
	papers  PaperRepository
}

func NewResultService(answers AnswerStore, papers PaperRepository) *ResultService {
	return &ResultService{answers: answers, papers: papers}
}

// Review renders a stored record. Only its owner or an admin may read it.
func (s *ResultService) Review(ctx context.Context, p auth.Principal, recordID domain.ID) (Review, error) {
	record, err := s.answers.GetAnswerRecord(ctx, recordID)
	if err != nil {
		return Review{}, err
	}
	if !p.CanAccess(record.UserID) {
		return Review{}, domain.ErrForbidden
	}
	paper, err := s.papers.GetPaper(ctx, record.PaperID)
	if err != nil {
		return Review{}, err
	}
	return BuildReview(paper, record), nil
}

// LatestReview renders the principal's most recent record for a paper.
func (s *ResultService) LatestReview(ctx context.Context, p auth.Principal, paperID domain.ID) (Review, error) {
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return Review{}, err
	}
	record, err := s.answers.LatestAnswerRecord(ctx, paper.Kind, p.UserID, paperID)
	if err != nil {
		return Review{}, err
	}
	return BuildReview(paper, record), nil
}

// BuildReview joins a record with its paper by question id, in paper order.
// Record entries for questions the paper no longer has are ignored. Each
// status is re-derived from the paper's key, never from the stored flag.
func BuildReview(paper domain.Paper, record domain.AnswerRecord) Review {
	scorer := scoring.New(nil)
	byQuestion := make(map[domain.ID]domain.QuestionResponse, len(record.Answers))
	for _, a := range record.Answers {
		byQuestion[a.QuestionID] = a
	}

	items := make([]ReviewItem, len(paper.Questions))
	for i, q := range paper.Questions {
		entry, ok := byQuestion[q.ID]
		resp := entry.Response
		if resp.Type == "" {
			resp.Type = q.Type()
		}
		status := StatusIncorrect
		switch {
		case !ok || resp.Empty() || resp.Choice == domain.NoSelection:
			status = StatusUnanswered
		case scorer.Score([]domain.Question{q}, map[int]domain.Response{0: resp}).Correct == 1:
			status = StatusCorrect
		}
		items[i] = ReviewItem{
			Number:        i + 1,
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			Style:         q.Style,
			Type:          q.Type(),
			Options:       q.Options,
			Choices:       q.Choices,
			Response:      resp,
			CorrectAnswer: q.Answer,
			Explanation:   q.Explanation,
			Status:        status,
		}
	}

	return Review{
		RecordID:         record.ID,
		PaperID:          paper.ID,
		Kind:             paper.Kind,
		Title:            paper.Title,
		Items:            items,
		Score:            record.Score,
		MaxScore:         record.MaxScore,
		Percentage:       record.PercentageScore,
		Label:            scoring.Label(record.PercentageScore),
		Band:             scoring.Band(record.PercentageScore),
		TimeTaken:        record.TimeTaken,
		TimeTakenDisplay: FormatTimeTaken(record.TimeTaken),
		CompletedAt:      record.CompletedAt,
	}
}

// History lists a user's records newest first.
func (s *ResultService) History(ctx context.Context, p auth.Principal, userID domain.ID) ([]domain.AnswerRecord, error) {
	if !p.CanAccess(userID) {
		return nil, domain.ErrForbidden
	}
	return s.answers.ListAnswerRecords(ctx, userID)
}

// Progress aggregates a user's records per paper kind.
func (s *ResultService) Progress(ctx context.Context, p auth.Principal, userID domain.ID) (Progress, error) {
	records, err := s.History(ctx, p, userID)
	if err != nil {
		return Progress{}, err
	}
	return SummarizeProgress(userID, records), nil
}

// SummarizeProgress folds records into per-kind totals. The average is the
// mean percentage rounded half up.
func SummarizeProgress(userID domain.ID, records []domain.AnswerRecord) Progress {
	type acc struct {
		KindProgress
		papers map[domain.ID]struct{}
		sum    decimal.Decimal
	}
	accs := map[domain.PaperKind]*acc{}
	for _, r := range records {
		a, ok := accs[r.Kind]
		if !ok {
			a = &acc{papers: map[domain.ID]struct{}{}}
			accs[r.Kind] = a
		}
		a.papers[r.PaperID] = struct{}{}
		a.Attempts++
		a.sum = a.sum.Add(decimal.NewFromInt(int64(r.PercentageScore)))
		if r.PercentageScore > a.HighestScore {
			a.HighestScore = r.PercentageScore
		}
		for _, ans := range r.Answers {
			if ans.Response.Empty() || ans.Response.Choice == domain.NoSelection {
				continue
			}
			a.QuestionsAttempted++
			if ans.IsCorrect {
				a.CorrectAnswers++
			}
		}
	}

	out := Progress{UserID: userID, Kinds: make(map[domain.PaperKind]KindProgress, len(accs))}
	for kind, a := range accs {
		kp := a.KindProgress
		kp.PapersAttempted = len(a.papers)
		kp.AverageScore = int(a.sum.Div(decimal.NewFromInt(int64(a.Attempts))).Round(0).IntPart())
		kp.Band = scoring.Band(kp.AverageScore)
		out.Kinds[kind] = kp
	}
	return out
}
