package app

import (
	"context"

	"exam-prep-service/internal/domain"
)

// SessionRepository abstracts where live quiz sessions are held (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	// Touch records that the session changed; stores may persist a snapshot.
	Touch(session *Session)
	Delete(id string)
	// List returns every held session, for sweeping.
	List() []*Session
}

// PaperRepository reads paper content, usually through a cache.
type PaperRepository interface {
	GetPaper(ctx context.Context, id domain.ID) (domain.Paper, error)
}

// PaperLoader fetches a paper from its backing store on a cache miss.
type PaperLoader interface {
	LoadPaper(ctx context.Context, id domain.ID) (domain.Paper, error)
}

// PaperStore is the writable paper catalog.
type PaperStore interface {
	CreatePaper(ctx context.Context, paper domain.Paper) error
	// ListPapers returns one page of matches and the total match count.
	ListPapers(ctx context.Context, query domain.PaperQuery) ([]domain.Paper, int, error)
}

// AnswerStore persists answer records. SaveAnswerRecord must reject a second
// SJT record for the same user and paper with domain.ErrDuplicateAttempt.
type AnswerStore interface {
	SaveAnswerRecord(ctx context.Context, record domain.AnswerRecord) error
	GetAnswerRecord(ctx context.Context, id domain.ID) (domain.AnswerRecord, error)
	LatestAnswerRecord(ctx context.Context, kind domain.PaperKind, userID, paperID domain.ID) (domain.AnswerRecord, error)
	// ListAnswerRecords returns a user's records newest first.
	ListAnswerRecords(ctx context.Context, userID domain.ID) ([]domain.AnswerRecord, error)
}

// CommentStore persists the comment board.
type CommentStore interface {
	CreateComment(ctx context.Context, comment domain.Comment) error
	// AppendReply adds reply to the comment atomically, or returns domain.ErrCommentNotFound.
	AppendReply(ctx context.Context, commentID domain.ID, reply domain.Reply) error
	// ListComments returns every comment newest first.
	ListComments(ctx context.Context) ([]domain.Comment, error)
}

// UserStore persists accounts. CreateUser returns domain.ErrEmailTaken on a duplicate email.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id domain.ID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateSubscription(ctx context.Context, id domain.ID, sub domain.Subscription) error
}

// PlanStore persists the subscription plan catalog.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	UpsertPlan(ctx context.Context, plan domain.Plan) error
}

// Observer receives service events; metrics.Metrics implements it.
type Observer interface {
	SubmissionObserved(kind string, err error)
	SessionsChanged(delta int)
}

type nopObserver struct{}

func (nopObserver) SubmissionObserved(string, error) {}
func (nopObserver) SessionsChanged(int)              {}
