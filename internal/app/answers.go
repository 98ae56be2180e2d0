package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// ClinicalAnswer is one entry of a client-scored clinical submission.
// IsCorrect is accepted but ignored; correctness is derived from the key.
type ClinicalAnswer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	IsCorrect      bool   `json:"isCorrect"`
}

// ClinicalSubmission is the payload of POST /api/clinical-answers.
type ClinicalSubmission struct {
	User            string           `json:"user"`
	Paper           string           `json:"paper"`
	Answers         []ClinicalAnswer `json:"answers"`
	Score           int              `json:"score"`
	MaxScore        int              `json:"maxScore"`
	PercentageScore int              `json:"percentageScore"`
	TimeTaken       int              `json:"timeTaken"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

// UserRef is the public identity shown next to a record.
type UserRef struct {
	ID    domain.ID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ClinicalAnswers is a clinical record with its user and paper resolved.
// Either reference is nil when it no longer exists.
type ClinicalAnswers struct {
	domain.AnswerRecord
	User  *UserRef
	Paper *domain.PaperSummary
}

// AnswerService stores and reads clinical answer records submitted directly
// by clients.
type AnswerService struct {
	answers  AnswerStore
	papers   PaperRepository
	users    UserStore
	log      logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

func NewAnswerService(answers AnswerStore, papers PaperRepository, log logrus.FieldLogger, observer Observer) *AnswerService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &AnswerService{answers: answers, papers: papers, log: log, observer: observer, now: time.Now}
}

// WithUsers lets LatestClinicalAnswers resolve the record's user.
func (s *AnswerService) WithUsers(users UserStore) *AnswerService {
	s.users = users
	return s
}

// SaveClinicalAnswers validates a submission against its paper and stores a
// new record. "NA" marks an unanswered question.
func (s *AnswerService) SaveClinicalAnswers(ctx context.Context, p auth.Principal, in ClinicalSubmission) (domain.AnswerRecord, error) {
	verr := &domain.ValidationError{}
	userID, err := domain.ParseID("user", in.User)
	verr.Merge(err)
	paperID, err := domain.ParseID("paper", in.Paper)
	verr.Merge(err)
	if len(in.Answers) == 0 {
		verr.Add("answers", "must not be empty")
	}
	if in.MaxScore < 0 || in.Score < 0 || in.Score > in.MaxScore {
		verr.Add("score", "must be between 0 and maxScore")
	}
	if in.PercentageScore < 0 || in.PercentageScore > 100 {
		verr.Add("percentageScore", "must be between 0 and 100")
	}
	if in.TimeTaken < 0 {
		verr.Add("timeTaken", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return domain.AnswerRecord{}, err
	}
	if !p.CanAccess(userID) {
		return domain.AnswerRecord{}, domain.ErrForbidden
	}

	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if paper.Kind != domain.PaperClinical {
		return domain.AnswerRecord{}, domain.Invalid("paper", "is not a clinical paper")
	}

	entries, err := clinicalEntries(paper, in.Answers)
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	now := s.now().UTC()
	completed := now
	if in.CompletedAt != nil {
		completed = in.CompletedAt.UTC()
	}
	record := domain.AnswerRecord{
		ID:              domain.NewID(),
		Kind:            domain.PaperClinical,
		UserID:          userID,
		PaperID:         paperID,
		Answers:         entries,
		Score:           in.Score,
		MaxScore:        in.MaxScore,
		PercentageScore: in.PercentageScore,
		TimeTaken:       in.TimeTaken,
		CompletedAt:     completed,
		CreatedAt:       now,
	}
	err = s.answers.SaveAnswerRecord(ctx, record)
	s.observer.SubmissionObserved(string(domain.PaperClinical), err)
	if err != nil {
		s.log.WithError(err).WithField("paper", paperID.Hex()).Error("save clinical answers")
		return domain.AnswerRecord{}, fmt.Errorf("save clinical answers: %w", err)
	}
	return record, nil
}

func clinicalEntries(paper domain.Paper, answers []ClinicalAnswer) ([]domain.QuestionResponse, error) {
	index := paper.QuestionIndex()
	seen := make(map[domain.ID]bool, len(answers))
	verr := &domain.ValidationError{}
	entries := make([]domain.QuestionResponse, 0, len(answers))
	for i, a := range answers {
		field := fmt.Sprintf("answers[%d]", i)
		qid, err := domain.ParseID(field+".questionId", a.QuestionID)
		if err != nil {
			verr.Merge(err)
			continue
		}
		pos, ok := index[qid]
		if !ok {
			verr.Add(field+".questionId", "is not a question of this paper")
			continue
		}
		if seen[qid] {
			verr.Add(field+".questionId", "is answered more than once")
			continue
		}
		seen[qid] = true

		choice := a.SelectedOption
		if choice == domain.NoSelection {
			choice = ""
		}
		if choice != "" && !paper.Questions[pos].Accepts(choice) {
			verr.Add(field+".selectedOption", "is not an option of the question")
			continue
		}
		correct := choice != "" && choice == paper.Questions[pos].Answer.Choice
		entries = append(entries, domain.QuestionResponse{
			QuestionID: qid,
			Response:   domain.BestChoice(choice),
			IsCorrect:  correct,
			Marks:      boolMark(correct),
			MaxMarks:   1,
		})
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return entries, nil
}

func boolMark(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// LatestClinicalAnswers returns the newest clinical record for the pair,
// with the user's name and email and the paper's title and description.
func (s *AnswerService) LatestClinicalAnswers(ctx context.Context, p auth.Principal, userRaw, paperRaw string) (ClinicalAnswers, error) {
	verr := &domain.ValidationError{}
	userID, err := domain.ParseID("userId", userRaw)
	verr.Merge(err)
	paperID, err := domain.ParseID("paperId", paperRaw)
	verr.Merge(err)
	if err := verr.OrNil(); err != nil {
		return ClinicalAnswers{}, err
	}
	if p.UserID.IsZero() {
		return ClinicalAnswers{}, domain.ErrUnauthenticated
	}
	if !p.CanAccess(userID) {
		return ClinicalAnswers{}, domain.ErrForbidden
	}
	record, err := s.answers.LatestAnswerRecord(ctx, domain.PaperClinical, userID, paperID)
	if err != nil {
		return ClinicalAnswers{}, err
	}

	out := ClinicalAnswers{AnswerRecord: record}
	paper, err := s.papers.GetPaper(ctx, paperID)
	switch {
	case err == nil:
		summary := paper.Summary()
		out.Paper = &summary
	case !errors.Is(err, domain.ErrPaperNotFound):
		return ClinicalAnswers{}, err
	}
	if s.users != nil {
		user, err := s.users.GetUser(ctx, userID)
		switch {
		case err == nil:
			out.User = &UserRef{ID: user.ID, Name: user.Name, Email: user.Email}
		case !errors.Is(err, domain.ErrUserNotFound):
			return ClinicalAnswers{}, err
		}
	}
	return out, nil
}
