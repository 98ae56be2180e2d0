package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/domain/domaintest"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/logging"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	service *app.QuizService
	answers *memory.AnswerStore
	clock   *fakeClock
	user    auth.Principal
}

func newHarness(t *testing.T, store app.AnswerStore, papers ...domain.Paper) *harness {
	t.Helper()
	answers := memory.NewAnswerStore()
	if store == nil {
		store = answers
	}
	clock := newFakeClock()
	repo := memory.NewPaperRepository(memory.NewPaperStore(papers...), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), repo, store,
		app.WithTickInterval(0),
		app.WithClock(clock.Now),
		app.WithLogger(logging.Discard()),
	)
	return &harness{
		service: service,
		answers: answers,
		clock:   clock,
		user:    auth.Principal{UserID: domain.NewID(), Role: domain.RoleUser},
	}
}

func (h *harness) open(t *testing.T, paper domain.Paper, withTimer bool) string {
	t.Helper()
	snap, err := h.service.Open(context.Background(), h.user, paper.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if snap.State != app.StateIntro {
		t.Fatalf("expected intro, got %s", snap.State)
	}
	h.apply(t, snap.SessionID, app.Action{Type: app.ActionStart, WithTimer: withTimer})
	return snap.SessionID
}

func (h *harness) apply(t *testing.T, id string, action app.Action) app.Snapshot {
	t.Helper()
	snap, err := h.service.Apply(context.Background(), h.user, id, action)
	if err != nil {
		t.Fatalf("apply %s: %v", action.Type, err)
	}
	return snap
}

func choose(choice string) app.Action {
	return app.Action{Type: app.ActionSelect, Response: domain.BestChoice(choice)}
}

func TestScenarioAFourOfFivePasses(t *testing.T) {
	paper := domaintest.ClinicalPaper(5)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, true)

	picks := []string{"B", "B", "A", "B", "B"}
	for i, pick := range picks {
		a := choose(pick)
		a.Index = i
		h.apply(t, id, a)
		h.apply(t, id, app.Action{Type: app.ActionNext})
	}
	snap, _ := h.service.Snapshot(context.Background(), h.user, id)
	if snap.State != app.StateUserSubmitted {
		t.Fatalf("expected confirmation pending after last question, got %s", snap.State)
	}

	snap = h.apply(t, id, app.Action{Type: app.ActionConfirm})
	if snap.State != app.StateCompleted || snap.Result == nil {
		t.Fatalf("expected completed with result, got %+v", snap)
	}
	if snap.Result.Correct != 4 || snap.Result.Total != 5 || snap.Result.Percentage != 80 || snap.Result.Label != "Passed" {
		t.Fatalf("unexpected result %+v", snap.Result)
	}

	record, err := h.answers.GetAnswerRecord(context.Background(), snap.Result.RecordID)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	assertRecordShape(t, paper, record)
}

func TestScenarioBImmediateSubmitWritesEmptyEntries(t *testing.T) {
	paper := domaintest.ClinicalPaper(5)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)

	h.apply(t, id, app.Action{Type: app.ActionSubmit})
	snap := h.apply(t, id, app.Action{Type: app.ActionConfirm})
	if snap.Result.Correct != 0 || snap.Result.Percentage != 0 || snap.Result.Label != "Failed" {
		t.Fatalf("unexpected result %+v", snap.Result)
	}

	record, _ := h.answers.GetAnswerRecord(context.Background(), snap.Result.RecordID)
	if len(record.Answers) != len(paper.Questions) {
		t.Fatalf("expected %d entries, got %d", len(paper.Questions), len(record.Answers))
	}
	for _, a := range record.Answers {
		if !a.Response.Empty() || a.IsCorrect {
			t.Fatalf("expected empty incorrect entry, got %+v", a)
		}
	}
	assertRecordShape(t, paper, record)
}

func TestScenarioCSJTOnceClinicalMany(t *testing.T) {
	sjt := domaintest.SJTPaper()
	clinical := domaintest.ClinicalPaper(2)
	h := newHarness(t, nil, sjt, clinical)

	submit := func(paper domain.Paper) error {
		id := h.open(t, paper, false)
		h.apply(t, id, app.Action{Type: app.ActionSubmit})
		_, err := h.service.Apply(context.Background(), h.user, id, app.Action{Type: app.ActionConfirm})
		return err
	}

	if err := submit(sjt); err != nil {
		t.Fatalf("first sjt submit: %v", err)
	}
	if err := submit(sjt); !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate attempt on second sjt submit, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := submit(clinical); err != nil {
			t.Fatalf("clinical submit %d: %v", i, err)
		}
	}
	records, _ := h.answers.ListAnswerRecords(context.Background(), h.user.UserID)
	if len(records) != 3 {
		t.Fatalf("expected 1 sjt + 2 clinical records, got %d", len(records))
	}
}

func TestScenarioDExpiryAutoSubmitsAfterGrace(t *testing.T) {
	paper := domaintest.ClinicalPaper(3)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, true)
	ctx := context.Background()

	h.apply(t, id, choose("B"))

	h.clock.Advance(time.Duration(paper.TimeLimitSeconds()-61) * time.Second)
	snap, _ := h.service.Tick(ctx, id)
	if !snap.TimeWarning || snap.LastMinute || snap.TimeDisplay != "1:01" {
		t.Fatalf("expected warning only at 1:01, got %+v", snap)
	}

	h.clock.Advance(61 * time.Second)
	snap, _ = h.service.Tick(ctx, id)
	if snap.State != app.StateTimeExpired || snap.TimeDisplay != "0:00" {
		t.Fatalf("expected time_expired at 0:00, got %s %q", snap.State, snap.TimeDisplay)
	}

	h.clock.Advance(2 * time.Second)
	snap, _ = h.service.Tick(ctx, id)
	if snap.State != app.StateTimeExpired {
		t.Fatalf("expected grace window to hold submission, got %s", snap.State)
	}

	h.clock.Advance(time.Second)
	snap, err := h.service.Tick(ctx, id)
	if err != nil {
		t.Fatalf("auto submit: %v", err)
	}
	if snap.State != app.StateCompleted || snap.Result.Correct != 1 || snap.Result.Total != 3 {
		t.Fatalf("expected auto submission with recorded answers, got %+v", snap)
	}
	if snap.Result.TimeTaken != paper.TimeLimitSeconds() {
		t.Fatalf("expected time taken capped at the limit, got %d", snap.Result.TimeTaken)
	}
}

func TestBestChoiceToggleIsIdempotentPair(t *testing.T) {
	paper := domaintest.ClinicalPaper(2)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)

	snap := h.apply(t, id, choose("C"))
	if got := snap.Answers[0]; got.Choice != "C" {
		t.Fatalf("expected C selected, got %+v", got)
	}
	snap = h.apply(t, id, choose("C"))
	if _, ok := snap.Answers[0]; ok {
		t.Fatalf("expected second select to clear, got %+v", snap.Answers)
	}
	snap = h.apply(t, id, choose("D"))
	snap = h.apply(t, id, choose("E"))
	if snap.Answers[0].Choice != "E" {
		t.Fatalf("expected change of selection, got %+v", snap.Answers[0])
	}
}

func TestSelectOnlyActiveQuestionAndValidOptions(t *testing.T) {
	paper := domaintest.ClinicalPaper(2)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)
	ctx := context.Background()

	a := choose("B")
	a.Index = 1
	if _, err := h.service.Apply(ctx, h.user, id, a); !errors.Is(err, domain.ErrNotActiveQuestion) {
		t.Fatalf("expected not active question, got %v", err)
	}
	if _, err := h.service.Apply(ctx, h.user, id, choose("H")); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	wrongType := app.Action{Type: app.ActionSelect, Response: domain.Ranked("A", "B")}
	if _, err := h.service.Apply(ctx, h.user, id, wrongType); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for wrong response type, got %v", err)
	}
}

func TestBackwardNavigationLockedUntilLastAnswered(t *testing.T) {
	paper := domaintest.ClinicalPaper(3)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)
	ctx := context.Background()

	h.apply(t, id, app.Action{Type: app.ActionNext})
	if _, err := h.service.Apply(ctx, h.user, id, app.Action{Type: app.ActionPrevious}); !errors.Is(err, domain.ErrNavigationLocked) {
		t.Fatalf("expected navigation locked, got %v", err)
	}
	if _, err := h.service.Apply(ctx, h.user, id, app.Action{Type: app.ActionJump, Index: 0}); !errors.Is(err, domain.ErrNavigationLocked) {
		t.Fatalf("expected jump locked, got %v", err)
	}

	h.apply(t, id, app.Action{Type: app.ActionNext})
	a := choose("A")
	a.Index = 2
	snap := h.apply(t, id, a)
	if snap.NavigationLocked {
		t.Fatalf("expected navigation unlocked once last question answered")
	}
	snap = h.apply(t, id, app.Action{Type: app.ActionJump, Index: 0})
	if snap.Current != 0 {
		t.Fatalf("expected jump to 0, got %d", snap.Current)
	}
	if _, err := h.service.Apply(ctx, h.user, id, app.Action{Type: app.ActionJump, Index: 7}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected range check, got %v", err)
	}
	snap = h.apply(t, id, app.Action{Type: app.ActionNext})
	snap = h.apply(t, id, app.Action{Type: app.ActionPrevious})
	if snap.Current != 0 {
		t.Fatalf("expected retreat to 0, got %d", snap.Current)
	}
}

func TestFlagsAndCancelSubmit(t *testing.T) {
	paper := domaintest.ClinicalPaper(2)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)

	snap := h.apply(t, id, app.Action{Type: app.ActionFlag, Index: 1})
	if len(snap.Flagged) != 1 || snap.Flagged[0] != 1 {
		t.Fatalf("expected question 1 flagged, got %v", snap.Flagged)
	}
	snap = h.apply(t, id, app.Action{Type: app.ActionFlag, Index: 1})
	if len(snap.Flagged) != 0 {
		t.Fatalf("expected flag toggled off")
	}

	h.apply(t, id, app.Action{Type: app.ActionSubmit})
	snap = h.apply(t, id, app.Action{Type: app.ActionCancel})
	if snap.State != app.StateInProgress {
		t.Fatalf("expected cancel to return to in_progress, got %s", snap.State)
	}
}

type flakyAnswers struct {
	*memory.AnswerStore
	failures int
}

func (f *flakyAnswers) SaveAnswerRecord(ctx context.Context, r domain.AnswerRecord) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database unavailable")
	}
	return f.AnswerStore.SaveAnswerRecord(ctx, r)
}

func TestPersistenceFailureKeepsAnswersForRetry(t *testing.T) {
	paper := domaintest.ClinicalPaper(2)
	store := &flakyAnswers{AnswerStore: memory.NewAnswerStore(), failures: 1}
	h := newHarness(t, store, paper)
	id := h.open(t, paper, false)
	ctx := context.Background()

	h.apply(t, id, choose("B"))
	h.apply(t, id, app.Action{Type: app.ActionSubmit})

	snap, err := h.service.Apply(ctx, h.user, id, app.Action{Type: app.ActionConfirm})
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if snap.State != app.StateUserSubmitted || snap.LastError == "" || snap.Answers[0].Choice != "B" {
		t.Fatalf("expected retryable state with answers kept, got %+v", snap)
	}

	snap = h.apply(t, id, app.Action{Type: app.ActionConfirm})
	if snap.State != app.StateCompleted || snap.LastError != "" {
		t.Fatalf("expected retry to complete, got %+v", snap)
	}
	records, _ := store.ListAnswerRecords(ctx, h.user.UserID)
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
}

func TestFailedAutoSubmitIsNotRetriedAutomatically(t *testing.T) {
	paper := domaintest.ClinicalPaper(1)
	store := &flakyAnswers{AnswerStore: memory.NewAnswerStore(), failures: 1}
	h := newHarness(t, store, paper)
	id := h.open(t, paper, true)
	ctx := context.Background()

	h.clock.Advance(time.Duration(paper.TimeLimitSeconds()) * time.Second)
	_, _ = h.service.Tick(ctx, id)
	h.clock.Advance(app.DefaultGrace)
	if _, err := h.service.Tick(ctx, id); err == nil {
		t.Fatalf("expected auto submit to fail")
	}
	h.clock.Advance(10 * time.Second)
	snap, err := h.service.Tick(ctx, id)
	if err != nil || snap.State != app.StateTimeExpired {
		t.Fatalf("expected no automatic retry, got %s %v", snap.State, err)
	}

	snap = h.apply(t, id, app.Action{Type: app.ActionConfirm})
	if snap.State != app.StateCompleted {
		t.Fatalf("expected manual retry to complete, got %s", snap.State)
	}
}

func TestCompletedSessionRejectsMutation(t *testing.T) {
	paper := domaintest.ClinicalPaper(1)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)
	h.apply(t, id, app.Action{Type: app.ActionSubmit})
	h.apply(t, id, app.Action{Type: app.ActionConfirm})

	if _, err := h.service.Apply(context.Background(), h.user, id, choose("A")); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error, got %v", err)
	}
}

func TestUntimedSJTShowsFeedback(t *testing.T) {
	paper := domaintest.SJTPaper()
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)

	snap, _ := h.service.Snapshot(context.Background(), h.user, id)
	if snap.TimerEnabled || snap.TimeDisplay != "No Timer" || !snap.FeedbackMode {
		t.Fatalf("expected untimed feedback mode, got %+v", snap)
	}
	if snap.Question == nil || !snap.Question.Answer.Empty() {
		t.Fatalf("expected the active question without its key")
	}

	order := append([]string(nil), paper.Questions[0].Choices...)
	snap = h.apply(t, id, app.Action{Type: app.ActionSelect, Response: domain.Ranked(order...)})
	if snap.Feedback == nil || !snap.Feedback.Correct || snap.Feedback.Explanation == "" {
		t.Fatalf("expected correct feedback, got %+v", snap.Feedback)
	}

	bad := app.Action{Type: app.ActionSelect, Response: domain.Ranked(order[:2]...)}
	if _, err := h.service.Apply(context.Background(), h.user, id, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected partial ranking to be rejected, got %v", err)
	}
}

func TestSessionsAreOwned(t *testing.T) {
	paper := domaintest.ClinicalPaper(1)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)
	stranger := auth.Principal{UserID: domain.NewID()}
	admin := auth.Principal{UserID: domain.NewID(), Role: domain.RoleAdmin}
	ctx := context.Background()

	if _, err := h.service.Snapshot(ctx, stranger, id); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.service.Snapshot(ctx, admin, id); err != nil {
		t.Fatalf("admin should read any session: %v", err)
	}
	if err := h.service.Leave(ctx, h.user, id); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := h.service.Snapshot(ctx, h.user, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	paper := domaintest.ClinicalPaper(2)
	h := newHarness(t, nil, paper)
	id := h.open(t, paper, false)

	ch, cancel, err := h.service.Subscribe(context.Background(), h.user, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-ch // initial snapshot

	h.apply(t, id, choose("B"))
	update := <-ch
	if update.Answers[0].Choice != "B" || update.Completion != 50 {
		t.Fatalf("expected pushed selection, got %+v", update)
	}
}

func TestSubscriptionGate(t *testing.T) {
	paper := domaintest.ClinicalPaper(1)
	users := memory.NewUserStore()
	user := domain.User{ID: domain.NewID(), Email: "gate@example.com"}
	_ = users.CreateUser(context.Background(), user)
	service := app.NewQuizService(memory.NewSessionStore(),
		memory.NewPaperRepository(memory.NewPaperStore(paper), time.Minute),
		memory.NewAnswerStore(),
		app.WithTickInterval(0),
		app.WithLogger(logging.Discard()),
		app.WithSubscriptionGate(users),
	)
	p := auth.Principal{UserID: user.ID}

	if _, err := service.Open(context.Background(), p, paper.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden without subscription, got %v", err)
	}
	sub, _ := domain.NewSubscription(domain.PlanSilver, time.Now())
	_ = users.UpdateSubscription(context.Background(), user.ID, sub)
	if _, err := service.Open(context.Background(), p, paper.ID); err != nil {
		t.Fatalf("expected open with active subscription: %v", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		seconds int
		enabled bool
		want    string
	}{
		{0, false, "No Timer"},
		{0, true, "0:00"},
		{65, true, "1:05"},
		{600, true, "10:00"},
		{-3, true, "0:00"},
	}
	for _, c := range cases {
		if got := app.FormatRemaining(c.seconds, c.enabled); got != c.want {
			t.Fatalf("FormatRemaining(%d,%v)=%q want %q", c.seconds, c.enabled, got, c.want)
		}
	}
}

// assertRecordShape checks a record never holds more entries than the paper
// has questions and only references the paper's questions.
func assertRecordShape(t *testing.T, paper domain.Paper, record domain.AnswerRecord) {
	t.Helper()
	if len(record.Answers) > len(paper.Questions) {
		t.Fatalf("record has %d entries for %d questions", len(record.Answers), len(paper.Questions))
	}
	index := paper.QuestionIndex()
	for _, a := range record.Answers {
		if _, ok := index[a.QuestionID]; !ok {
			t.Fatalf("record references foreign question %s", a.QuestionID.Hex())
		}
	}
	if record.UserID.IsZero() || record.PaperID != paper.ID {
		t.Fatalf("record not linked to user and paper")
	}
}

type sessionGauge struct {
	mu     sync.Mutex
	active int
}

func (g *sessionGauge) SubmissionObserved(string, error) {}

func (g *sessionGauge) SessionsChanged(delta int) {
	g.mu.Lock()
	g.active += delta
	g.mu.Unlock()
}

func (g *sessionGauge) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func TestSweepReleasesFinishedAndIdleSessions(t *testing.T) {
	paper := domaintest.ClinicalPaper(1)
	store := memory.NewSessionStore()
	gauge := &sessionGauge{}
	clock := newFakeClock()
	service := app.NewQuizService(store,
		memory.NewPaperRepository(memory.NewPaperStore(paper), time.Minute),
		memory.NewAnswerStore(),
		app.WithTickInterval(0),
		app.WithClock(clock.Now),
		app.WithLogger(logging.Discard()),
		app.WithObserver(gauge),
		app.WithRetention(time.Minute, time.Hour),
	)
	h := &harness{service: service, clock: clock, user: auth.Principal{UserID: domain.NewID(), Role: domain.RoleUser}}
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		id := h.open(t, paper, false)
		h.apply(t, id, choose("B"))
		h.apply(t, id, app.Action{Type: app.ActionNext})
		h.apply(t, id, app.Action{Type: app.ActionConfirm})
		ids = append(ids, id)
	}
	if gauge.value() != 0 {
		t.Fatalf("completed sessions still counted as active: %d", gauge.value())
	}
	if n := service.Sweep(); n != 0 || store.Len() != 20 {
		t.Fatalf("completed sessions dropped before linger: swept %d, held %d", n, store.Len())
	}
	if snap, err := service.Snapshot(ctx, h.user, ids[0]); err != nil || snap.Result == nil {
		t.Fatalf("result should stay readable during linger: %v", err)
	}
	if err := service.Leave(ctx, h.user, ids[0]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if gauge.value() != 0 {
		t.Fatalf("leaving a completed session must not decrement again: %d", gauge.value())
	}

	clock.Advance(time.Minute)
	if n := service.Sweep(); n != 19 || store.Len() != 0 {
		t.Fatalf("expected lingering sessions dropped: swept %d, held %d", n, store.Len())
	}

	snap, err := service.Open(ctx, h.user, paper.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	clock.Advance(59 * time.Minute)
	h.apply(t, snap.SessionID, app.Action{Type: app.ActionStart})
	clock.Advance(59 * time.Minute)
	if n := service.Sweep(); n != 0 || gauge.value() != 1 {
		t.Fatalf("recently used session swept: %d, gauge %d", n, gauge.value())
	}
	clock.Advance(time.Minute)
	if n := service.Sweep(); n != 1 || store.Len() != 0 || gauge.value() != 0 {
		t.Fatalf("idle session kept: swept %d, held %d, gauge %d", n, store.Len(), gauge.value())
	}
	if _, err := service.Snapshot(ctx, h.user, snap.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected swept session gone, got %v", err)
	}
}
