package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/scoring"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultGrace is how long an expired session waits before submitting itself.
const DefaultGrace = 3 * time.Second

// Session retention defaults: a completed session stays readable for
// DefaultLinger, and an untouched one is dropped after DefaultIdleTimeout.
const (
	DefaultLinger      = 5 * time.Minute
	DefaultIdleTimeout = 2 * time.Hour
)

// ActionType names a client action on a session.
type ActionType string

const (
	ActionStart    ActionType = "start"
	ActionSelect   ActionType = "select"
	ActionNext     ActionType = "next"
	ActionPrevious ActionType = "previous"
	ActionJump     ActionType = "jump"
	ActionFlag     ActionType = "flag"
	ActionSubmit   ActionType = "submit"
	ActionCancel   ActionType = "cancel"
	ActionConfirm  ActionType = "confirm"
)

// Action is one client-driven session event.
type Action struct {
	Type      ActionType      `json:"type"`
	Index     int             `json:"index"`
	Response  domain.Response `json:"response"`
	WithTimer bool            `json:"withTimer"`
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions SessionRepository
	papers   PaperRepository
	answers  AnswerStore
	users    UserStore
	scorer   *scoring.Scorer
	log      logrus.FieldLogger
	observer Observer
	grace    time.Duration
	tick     time.Duration
	linger   time.Duration
	idle     time.Duration
	now      func() time.Time
}

// QuizOption customises a QuizService.
type QuizOption func(*QuizService)

func WithLogger(log logrus.FieldLogger) QuizOption {
	return func(s *QuizService) { s.log = log }
}

func WithObserver(o Observer) QuizOption {
	return func(s *QuizService) { s.observer = o }
}

func WithGrace(d time.Duration) QuizOption {
	return func(s *QuizService) { s.grace = d }
}

// WithTickInterval sets the countdown ticker period; zero disables the
// background ticker and leaves Tick to the caller.
func WithTickInterval(d time.Duration) QuizOption {
	return func(s *QuizService) { s.tick = d }
}

// WithRetention sets how long completed sessions linger and how long an
// untouched session survives before Sweep drops it.
func WithRetention(linger, idle time.Duration) QuizOption {
	return func(s *QuizService) {
		s.linger = linger
		s.idle = idle
	}
}

// WithClock is test-only for deterministic timers.
func WithClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

func WithScorer(scorer *scoring.Scorer) QuizOption {
	return func(s *QuizService) { s.scorer = scorer }
}

// WithSubscriptionGate requires an active subscription to open a session.
func WithSubscriptionGate(users UserStore) QuizOption {
	return func(s *QuizService) { s.users = users }
}

func NewQuizService(store SessionRepository, papers PaperRepository, answers AnswerStore, opts ...QuizOption) *QuizService {
	s := &QuizService{
		sessions: store,
		papers:   papers,
		answers:  answers,
		scorer:   scoring.New(nil),
		log:      logrus.StandardLogger(),
		observer: nopObserver{},
		grace:    DefaultGrace,
		tick:     time.Second,
		linger:   DefaultLinger,
		idle:     DefaultIdleTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session for paperID in the intro state.
func (s *QuizService) Open(ctx context.Context, p auth.Principal, paperID domain.ID) (Snapshot, error) {
	if p.UserID.IsZero() {
		return Snapshot{}, domain.ErrUnauthenticated
	}
	if err := s.checkSubscription(ctx, p); err != nil {
		return Snapshot{}, err
	}
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return Snapshot{}, err
	}

	session := newSessionWithClock(uuid.NewString(), p.UserID, paper, s.grace, s.scorer, s.now)
	s.sessions.Put(session)
	s.observer.SessionsChanged(1)
	s.log.WithFields(logrus.Fields{"session": session.ID(), "paper": paperID.Hex(), "user": p.UserID.Hex()}).Info("quiz session opened")
	return session.Snapshot(), nil
}

func (s *QuizService) checkSubscription(ctx context.Context, p auth.Principal) error {
	if s.users == nil || p.IsAdmin() {
		return nil
	}
	user, err := s.users.GetUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !user.Subscription.IsActive(s.now()) {
		return fmt.Errorf("%w: an active subscription is required", domain.ErrForbidden)
	}
	return nil
}

// Snapshot returns the session's current view.
func (s *QuizService) Snapshot(_ context.Context, p auth.Principal, sessionID string) (Snapshot, error) {
	session, err := s.owned(p, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// Apply runs one action against the session and returns the resulting view.
// On error the returned snapshot is the unchanged state.
func (s *QuizService) Apply(ctx context.Context, p auth.Principal, sessionID string, action Action) (Snapshot, error) {
	session, err := s.owned(p, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	session.markActive()

	switch action.Type {
	case ActionStart:
		err = session.start(action.WithTimer)
		if err == nil && session.timed() && s.tick > 0 {
			go s.runTimer(session)
		}
	case ActionSelect:
		err = session.selectResponse(action.Index, action.Response)
	case ActionNext:
		err = session.advance()
	case ActionPrevious:
		err = session.retreat()
	case ActionJump:
		err = session.jump(action.Index)
	case ActionFlag:
		err = session.toggleFlag(action.Index)
	case ActionSubmit:
		err = session.requestSubmit()
	case ActionCancel:
		err = session.cancelSubmit()
	case ActionConfirm:
		return s.submit(ctx, session)
	default:
		err = domain.Invalid("type", "unknown action")
	}
	if err != nil {
		return session.Snapshot(), err
	}
	s.sessions.Touch(session)
	return session.Snapshot(), nil
}

// Tick advances a session's countdown and fires the automatic submission once
// the grace window after expiry has passed.
func (s *QuizService) Tick(ctx context.Context, sessionID string) (Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	snap, due := session.tick()
	if !due {
		return snap, nil
	}
	s.log.WithField("session", sessionID).Info("time expired, submitting automatically")
	return s.submit(ctx, session)
}

func (s *QuizService) runTimer(session *Session) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(context.Background(), session.ID()); errors.Is(err, domain.ErrSessionNotFound) {
				return
			}
		}
	}
}

// Subscribe returns a channel that receives session updates.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, p auth.Principal, sessionID string) (<-chan Snapshot, func(), error) {
	session, err := s.owned(p, sessionID)
	if err != nil {
		return nil, nil, err
	}
	session.markActive()
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave abandons the session and drops it from the store.
func (s *QuizService) Leave(_ context.Context, p auth.Principal, sessionID string) error {
	session, err := s.owned(p, sessionID)
	if err != nil {
		return err
	}
	session.abandon()
	s.sessions.Delete(sessionID)
	s.release(session)
	return nil
}

// Sweep drops completed sessions older than the linger period and sessions
// without user interaction for the idle timeout. It returns how many went.
func (s *QuizService) Sweep() int {
	now := s.now()
	dropped := 0
	for _, session := range s.sessions.List() {
		if !session.expired(now, s.linger, s.idle) {
			continue
		}
		session.abandon()
		s.sessions.Delete(session.ID())
		s.release(session)
		dropped++
	}
	if dropped > 0 {
		s.log.WithField("sessions", dropped).Debug("swept quiz sessions")
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *QuizService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// release takes a session out of the active count once.
func (s *QuizService) release(session *Session) {
	if session.release() {
		s.observer.SessionsChanged(-1)
	}
}

func (s *QuizService) owned(p auth.Principal, sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !p.CanAccess(session.Owner()) {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

// submit scores the frozen answers and persists exactly one record. A
// persistence failure leaves the session retryable.
func (s *QuizService) submit(ctx context.Context, session *Session) (Snapshot, error) {
	sub, err := session.beginSubmit()
	if err != nil {
		return session.Snapshot(), err
	}

	result := s.scorer.Score(sub.paper.Questions, sub.answers)
	record := newAnswerRecord(sub, result)
	err = s.answers.SaveAnswerRecord(ctx, record)
	s.observer.SubmissionObserved(string(sub.paper.Kind), err)

	entry := s.log.WithFields(logrus.Fields{"session": session.ID(), "paper": sub.paper.ID.Hex(), "user": sub.owner.Hex()})
	if err != nil {
		entry.WithError(err).Error("persist answer record")
		snap := session.finishSubmit(nil, err)
		s.sessions.Touch(session)
		return snap, fmt.Errorf("submit session %s: %w", session.ID(), err)
	}

	snap := session.finishSubmit(&Summary{
		RecordID:    record.ID,
		Correct:     result.Correct,
		Total:       result.Total,
		Percentage:  result.Percentage,
		Label:       result.Label,
		Band:        scoring.Band(result.Percentage),
		TimeTaken:   sub.timeTaken,
		CompletedAt: sub.completedAt,
	}, nil)
	s.sessions.Touch(session)
	s.release(session)
	entry.WithField("percentage", result.Percentage).Info("quiz submitted")
	return snap, nil
}

// newAnswerRecord writes one entry per question in paper order; unanswered
// questions carry an empty response of the question's type.
func newAnswerRecord(sub submission, result scoring.Result) domain.AnswerRecord {
	entries := make([]domain.QuestionResponse, len(sub.paper.Questions))
	for i, q := range sub.paper.Questions {
		resp := sub.answers[i]
		if resp.Type == "" {
			resp.Type = q.Type()
		}
		mark := result.Marks[i]
		entries[i] = domain.QuestionResponse{
			QuestionID: q.ID,
			Response:   resp,
			IsCorrect:  mark.Correct,
			Marks:      mark.Marks,
			MaxMarks:   mark.MaxMarks,
		}
	}
	return domain.AnswerRecord{
		ID:              domain.NewID(),
		Kind:            sub.paper.Kind,
		UserID:          sub.owner,
		PaperID:         sub.paper.ID,
		Answers:         entries,
		Score:           result.Correct,
		MaxScore:        result.Total,
		PercentageScore: result.Percentage,
		TimeTaken:       sub.timeTaken,
		CompletedAt:     sub.completedAt,
		CreatedAt:       sub.completedAt,
	}
}
