package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/scoring"
)

// State is a quiz session's position in its lifecycle.
type State string

const (
	StateIntro         State = "intro"
	StateInProgress    State = "in_progress"
	StateTimeExpired   State = "time_expired"
	StateUserSubmitted State = "user_submitted"
	StateCompleted     State = "completed"
)

const (
	warningSeconds    = 300
	lastMinuteSeconds = 60
)

// FormatRemaining renders a countdown as m:ss, or "No Timer" when the timer is off.
func FormatRemaining(seconds int, timerEnabled bool) string {
	if !timerEnabled {
		return "No Timer"
	}
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Feedback reveals the key for the active question in per-question feedback mode.
type Feedback struct {
	Correct     bool            `json:"correct"`
	Answer      domain.Response `json:"answer"`
	Explanation string          `json:"explanation,omitempty"`
}

// Summary is attached to a completed session.
type Summary struct {
	RecordID    domain.ID `json:"recordId"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	Label       string    `json:"label"`
	Band        string    `json:"band"`
	TimeTaken   int       `json:"timeTaken"`
	CompletedAt time.Time `json:"completedAt"`
}

// Snapshot is the client-facing view of a session.
type Snapshot struct {
	SessionID        string                  `json:"sessionId"`
	PaperID          domain.ID               `json:"paperId"`
	Kind             domain.PaperKind        `json:"kind"`
	Title            string                  `json:"title"`
	State            State                   `json:"state"`
	TimerEnabled     bool                    `json:"timerEnabled"`
	Remaining        int                     `json:"remainingSeconds"`
	TimeDisplay      string                  `json:"timeDisplay"`
	TimeWarning      bool                    `json:"timeWarning"`
	LastMinute       bool                    `json:"lastMinute"`
	Current          int                     `json:"currentIndex"`
	Total            int                     `json:"totalQuestions"`
	Question         *domain.Question        `json:"question,omitempty"`
	Answers          map[int]domain.Response `json:"answers"`
	Flagged          []int                   `json:"flagged"`
	Completion       int                     `json:"completion"`
	NavigationLocked bool                    `json:"navigationLocked"`
	FeedbackMode     bool                    `json:"feedbackMode"`
	Feedback         *Feedback               `json:"feedback,omitempty"`
	Result           *Summary                `json:"result,omitempty"`
	LastError        string                  `json:"lastError,omitempty"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// submission is the frozen input of one scoring and persistence attempt.
type submission struct {
	paper       domain.Paper
	owner       domain.ID
	answers     map[int]domain.Response
	timeTaken   int
	completedAt time.Time
}

// Session is one user's in-memory attempt at one paper.
type Session struct {
	id        string
	owner     domain.ID
	paper     domain.Paper
	createdAt time.Time
	now       func() time.Time
	grace     time.Duration
	scorer    *scoring.Scorer

	mu           sync.RWMutex
	state        State
	timerEnabled bool
	feedback     bool
	startedAt    time.Time
	remaining    int
	current      int
	answers      map[int]domain.Response
	flagged      map[int]struct{}
	expiredAt    time.Time
	submitting   bool
	autoHeld     bool
	lastErr      string
	result       *Summary
	subscribers  map[chan Snapshot]struct{}
	lastActive   time.Time
	finishedAt   time.Time
	released     bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession builds an intro-state session outside QuizService, for store tests.
func NewSession(id string, owner domain.ID, paper domain.Paper) *Session {
	return newSessionWithClock(id, owner, paper, DefaultGrace, nil, time.Now)
}

func newSessionWithClock(id string, owner domain.ID, paper domain.Paper, grace time.Duration, scorer *scoring.Scorer, now func() time.Time) *Session {
	if scorer == nil {
		scorer = scoring.New(nil)
	}
	created := now()
	return &Session{
		id:          id,
		owner:       owner,
		paper:       paper,
		createdAt:   created,
		lastActive:  created,
		now:         now,
		grace:       grace,
		scorer:      scorer,
		state:       StateIntro,
		answers:     make(map[int]domain.Response),
		flagged:     make(map[int]struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Owner is the user the session belongs to.
func (s *Session) Owner() domain.ID { return s.owner }

func (s *Session) Paper() domain.Paper { return s.paper }

// Done is closed once the session completes or is abandoned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) timed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timerEnabled
}

func (s *Session) start(withTimer bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIntro {
		return s.transitionErrLocked()
	}
	s.state = StateInProgress
	s.startedAt = s.now()
	s.current = 0
	if withTimer {
		s.timerEnabled = true
		s.remaining = s.paper.TimeLimitSeconds()
	} else {
		s.remaining = 0
		s.feedback = s.paper.Kind == domain.PaperSJT
	}
	s.broadcastLocked()
	return nil
}

func (s *Session) selectResponse(index int, resp domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.paper.Questions) {
		return domain.ErrQuestionNotFound
	}
	if index != s.current {
		return domain.ErrNotActiveQuestion
	}

	q := s.paper.Questions[index]
	if resp.Type == "" {
		resp.Type = q.Type()
	}
	if resp.Type != q.Type() {
		return domain.Invalid("response.type", "does not match the question type")
	}
	if resp.Empty() {
		delete(s.answers, index)
		s.broadcastLocked()
		return nil
	}

	switch q.Type() {
	case domain.TypeRanking:
		if !q.IsPermutation(resp.Ranking) {
			return domain.Invalid("response.ranking", "must rank every choice exactly once")
		}
		resp = domain.Ranked(append([]string(nil), resp.Ranking...)...)
	default:
		if !q.Accepts(resp.Choice) {
			return domain.ErrOptionNotFound
		}
		resp = domain.BestChoice(resp.Choice)
		if prev, ok := s.answers[index]; ok && prev.Equal(resp) {
			delete(s.answers, index)
			s.broadcastLocked()
			return nil
		}
	}
	s.answers[index] = resp
	s.broadcastLocked()
	return nil
}

func (s *Session) advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if s.current == len(s.paper.Questions)-1 {
		s.state = StateUserSubmitted
	} else {
		s.current++
	}
	s.broadcastLocked()
	return nil
}

func (s *Session) retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if !s.lastAnsweredLocked() {
		return domain.ErrNavigationLocked
	}
	if s.current == 0 {
		return domain.ErrInvalidTransition
	}
	s.current--
	s.broadcastLocked()
	return nil
}

func (s *Session) jump(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if !s.lastAnsweredLocked() {
		return domain.ErrNavigationLocked
	}
	if index < 0 || index >= len(s.paper.Questions) {
		return domain.ErrQuestionNotFound
	}
	s.current = index
	s.broadcastLocked()
	return nil
}

func (s *Session) toggleFlag(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.paper.Questions) {
		return domain.ErrQuestionNotFound
	}
	if _, ok := s.flagged[index]; ok {
		delete(s.flagged, index)
	} else {
		s.flagged[index] = struct{}{}
	}
	s.broadcastLocked()
	return nil
}

func (s *Session) requestSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	s.state = StateUserSubmitted
	s.broadcastLocked()
	return nil
}

func (s *Session) cancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUserSubmitted {
		return s.transitionErrLocked()
	}
	if s.submitting {
		return domain.ErrSubmitInFlight
	}
	s.state = StateInProgress
	s.lastErr = ""
	s.broadcastLocked()
	return nil
}

// tick advances the countdown and reports whether the automatic submission is due.
func (s *Session) tick() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	switch s.state {
	case StateInProgress, StateUserSubmitted:
		if !s.timerEnabled || s.submitting {
			return s.snapshotLocked(), false
		}
		s.remaining = s.remainingLocked(now)
		if s.remaining == 0 {
			s.state = StateTimeExpired
			s.expiredAt = now
		}
		return s.broadcastLocked(), false
	case StateTimeExpired:
		due := !s.submitting && !s.autoHeld && now.Sub(s.expiredAt) >= s.grace
		return s.snapshotLocked(), due
	default:
		return s.snapshotLocked(), false
	}
}

func (s *Session) beginSubmit() (submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return submission{}, domain.ErrSessionCompleted
	}
	if s.submitting {
		return submission{}, domain.ErrSubmitInFlight
	}
	if s.state != StateUserSubmitted && s.state != StateTimeExpired {
		return submission{}, domain.ErrInvalidTransition
	}
	s.submitting = true

	answers := make(map[int]domain.Response, len(s.answers))
	for i, r := range s.answers {
		answers[i] = r
	}
	now := s.now()
	taken := int(now.Sub(s.startedAt) / time.Second)
	if limit := s.paper.TimeLimitSeconds(); s.timerEnabled && taken > limit {
		taken = limit
	}
	return submission{
		paper:       s.paper,
		owner:       s.owner,
		answers:     answers,
		timeTaken:   taken,
		completedAt: now,
	}, nil
}

// finishSubmit settles a submission. On failure the session keeps its answers
// and its pre-submit state so the user can confirm again.
func (s *Session) finishSubmit(summary *Summary, err error) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitting = false
	if err != nil {
		s.lastErr = err.Error()
		if s.state == StateTimeExpired {
			s.autoHeld = true
		}
		return s.broadcastLocked()
	}
	s.lastErr = ""
	s.state = StateCompleted
	s.result = summary
	s.finishedAt = s.now()
	snap := s.broadcastLocked()
	s.closeLocked()
	return snap
}

// abandon stops the timer and disconnects every subscriber.
func (s *Session) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.closeLocked()
}

// markActive records a user interaction for idle tracking.
func (s *Session) markActive() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// expired reports whether a sweep should drop the session: completed ones
// after linger, anything else after idle without user interaction.
func (s *Session) expired(now time.Time, linger, idle time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateCompleted {
		return now.Sub(s.finishedAt) >= linger
	}
	return now.Sub(s.lastActive) >= idle
}

// release reports true only on its first call, so the active session count
// drops once per session.
func (s *Session) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	return true
}

func (s *Session) closeLocked() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) requireInProgressLocked() error {
	if s.state == StateInProgress {
		return nil
	}
	return s.transitionErrLocked()
}

func (s *Session) transitionErrLocked() error {
	if s.state == StateCompleted {
		return domain.ErrSessionCompleted
	}
	return domain.ErrInvalidTransition
}

func (s *Session) lastAnsweredLocked() bool {
	last := len(s.paper.Questions) - 1
	if last < 0 {
		return false
	}
	r, ok := s.answers[last]
	return ok && !r.Empty()
}

func (s *Session) remainingLocked(now time.Time) int {
	elapsed := int(now.Sub(s.startedAt) / time.Second)
	remaining := s.paper.TimeLimitSeconds() - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Session) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: drop the stale frame so broadcast never blocks
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() Snapshot {
	total := len(s.paper.Questions)
	answers := make(map[int]domain.Response, len(s.answers))
	for i, r := range s.answers {
		answers[i] = r
	}
	flagged := make([]int, 0, len(s.flagged))
	for i := range s.flagged {
		flagged = append(flagged, i)
	}
	sort.Ints(flagged)

	snap := Snapshot{
		SessionID:        s.id,
		PaperID:          s.paper.ID,
		Kind:             s.paper.Kind,
		Title:            s.paper.Title,
		State:            s.state,
		TimerEnabled:     s.timerEnabled,
		Remaining:        s.remaining,
		TimeDisplay:      FormatRemaining(s.remaining, s.timerEnabled),
		TimeWarning:      s.timerEnabled && s.remaining <= warningSeconds,
		LastMinute:       s.timerEnabled && s.remaining <= lastMinuteSeconds,
		Current:          s.current,
		Total:            total,
		Answers:          answers,
		Flagged:          flagged,
		Completion:       scoring.Percentage(len(answers), total),
		NavigationLocked: !s.lastAnsweredLocked(),
		FeedbackMode:     s.feedback,
		Result:           s.result,
		LastError:        s.lastErr,
		UpdatedAt:        s.now(),
	}
	if s.state != StateIntro && s.current < total {
		q := s.paper.Questions[s.current].Public()
		snap.Question = &q
		if s.feedback {
			snap.Feedback = s.feedbackLocked(s.current)
		}
	}
	return snap
}

func (s *Session) feedbackLocked(index int) *Feedback {
	given, ok := s.answers[index]
	if !ok || given.Empty() {
		return nil
	}
	q := s.paper.Questions[index]
	res := s.scorer.Score([]domain.Question{q}, map[int]domain.Response{0: given})
	return &Feedback{
		Correct:     res.Marks[0].Correct,
		Answer:      q.Answer,
		Explanation: q.Explanation,
	}
}
