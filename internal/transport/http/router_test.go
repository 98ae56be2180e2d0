package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/domain/domaintest"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/logging"
	"exam-prep-service/internal/metrics"
	transport "exam-prep-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "session-token"

type harness struct {
	router   *gin.Engine
	tokens   *auth.Issuer
	papers   *memory.PaperStore
	users    *memory.UserStore
	accounts *app.AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.Discard()
	m := metrics.New()

	papers := memory.NewPaperStore()
	cache := memory.NewPaperRepository(papers, time.Minute)
	answers := memory.NewAnswerStore()
	users := memory.NewUserStore()
	tokens := auth.NewIssuer("test-secret", time.Hour)
	accounts := app.NewAccountService(users, memory.NewPlanStore(), tokens, log)

	svc := transport.Services{
		Quiz:      app.NewQuizService(memory.NewSessionStore(), cache, answers, app.WithLogger(log), app.WithObserver(m), app.WithTickInterval(0)),
		Catalog:   app.NewCatalogService(papers, cache, log),
		Results:   app.NewResultService(answers, cache),
		Community: app.NewCommunityService(memory.NewCommentStore(), log),
		Accounts:  accounts,
		Answers:   app.NewAnswerService(answers, cache, log, m).WithUsers(users),
	}
	router := transport.NewRouter(svc, transport.RouterConfig{
		Tokens:     tokens,
		CookieName: cookieName,
		Metrics:    m,
		Log:        log,
	})
	return &harness{router: router, tokens: tokens, papers: papers, users: users, accounts: accounts}
}

// user registers an account and returns it with a bearer token.
func (h *harness) user(t *testing.T, email string, role string) (domain.User, string) {
	t.Helper()
	u, err := h.accounts.Register(context.Background(), "Someone", email, "secret1")
	require.NoError(t, err)
	u.Role = role
	token, err := h.tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRegisterLoginAndCookieSession(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Ann", "email": "Ann@Example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret1")

	rec = h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "", "email": "nope", "password": "1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	verr := decode[struct {
		Fields []domain.FieldError `json:"fields"`
	}](t, rec)
	require.Len(t, verr.Fields, 3)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 6 characters", fields["password"])

	rec = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong12"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(session)
	me := httptest.NewRecorder()
	h.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "ann@example.com", decode[domain.User](t, me).Email)

	rec = h.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPageGateAndAPIAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/quizzes/clinical?page=2", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fquizzes%2Fclinical%3Fpage%3D2", rec.Header().Get("Location"))

	rec = h.do(t, http.MethodGet, "/community", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/pricing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, token := h.user(t, "gate@example.com", domain.RoleUser)
	rec = h.do(t, http.MethodGet, "/progress", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "signed-in users pass the gate")

	rec = h.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionEndpoint(t *testing.T) {
	h := newHarness(t)
	_, token := h.user(t, "sub@example.com", domain.RoleUser)

	rec := h.do(t, http.MethodPost, "/api/subscription", "", map[string]string{"subscriptionType": "Gold"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/subscription", token, map[string]string{"subscriptionType": "Bronze"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/subscription", token, map[string]string{"subscriptionType": "Gold"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Subscription domain.Subscription `json:"subscription"`
	}](t, rec)
	assert.Equal(t, domain.SubscriptionActive, body.Subscription.Status)
	assert.Equal(t, 60*24*time.Hour, body.Subscription.EndDate.Sub(*body.Subscription.StartDate))

	ghost, err := h.tokens.Issue(domain.User{ID: domain.NewID(), Email: "ghost@example.com", Role: domain.RoleUser})
	require.NoError(t, err)
	rec = h.do(t, http.MethodPost, "/api/subscription", ghost, map[string]string{"subscriptionType": "Gold"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaperCatalogEndpoints(t *testing.T) {
	h := newHarness(t)
	_, userToken := h.user(t, "u@example.com", domain.RoleUser)
	_, adminToken := h.user(t, "admin@example.com", domain.RoleAdmin)

	paper := domaintest.SJTPaper()
	paper.ID = domain.ID{}
	rec := h.do(t, http.MethodPost, "/api/papers", userToken, paper)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/papers", adminToken, paper)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.PaperSummary](t, rec)

	rec = h.do(t, http.MethodGet, "/api/papers?kind=sjt&search=judgement&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[app.PaperPage](t, rec)
	assert.Equal(t, 1, page.Total)

	rec = h.do(t, http.MethodGet, "/api/papers?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/papers/"+created.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Patient safety first.")

	rec = h.do(t, http.MethodGet, "/api/papers/xyz", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/papers/"+domain.NewID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClinicalAnswersEndpoints(t *testing.T) {
	h := newHarness(t)
	paper := domaintest.ClinicalPaper(2)
	require.NoError(t, h.papers.CreatePaper(context.Background(), paper))
	user, token := h.user(t, "c@example.com", domain.RoleUser)
	_, otherToken := h.user(t, "other@example.com", domain.RoleUser)

	submission := map[string]any{
		"user":  user.ID.Hex(),
		"paper": paper.ID.Hex(),
		"answers": []map[string]any{
			{"questionId": paper.Questions[0].ID.Hex(), "selectedOption": "B", "isCorrect": true},
			{"questionId": paper.Questions[1].ID.Hex(), "selectedOption": "NA", "isCorrect": false},
		},
		"score": 1, "maxScore": 2, "percentageScore": 50, "timeTaken": 95,
	}
	rec := h.do(t, http.MethodPost, "/api/clinical-answers", token, submission)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	bad := map[string]any{"user": "123", "paper": paper.ID.Hex(), "answers": []any{}}
	rec = h.do(t, http.MethodPost, "/api/clinical-answers", token, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/clinical-answers", otherToken, submission)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	latestURL := "/api/getclinicaluseranswers?userId=" + user.ID.Hex() + "&paperId=" + paper.ID.Hex()
	rec = h.do(t, http.MethodGet, latestURL, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest struct {
		Answers []struct {
			SelectedOption string `json:"selectedOption"`
		} `json:"answers"`
		PercentageScore int `json:"percentageScore"`
		UserDetails     struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"userDetails"`
		PaperDetails struct {
			Title       string `json:"title"`
			Description string `json:"paperDescription"`
		} `json:"paperDetails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, user.Email, latest.UserDetails.Email)
	assert.Equal(t, user.Name, latest.UserDetails.Name)
	assert.Equal(t, paper.Title, latest.PaperDetails.Title)
	assert.Equal(t, paper.Description, latest.PaperDetails.Description)
	require.Len(t, latest.Answers, 2)
	assert.Equal(t, "B", latest.Answers[0].SelectedOption)
	assert.Equal(t, "NA", latest.Answers[1].SelectedOption)
	assert.Equal(t, 50, latest.PercentageScore)

	rec = h.do(t, http.MethodGet, "/api/getclinicaluseranswers?userId=bad&paperId="+paper.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/getclinicaluseranswers?paperId="+paper.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/getclinicaluseranswers?userId="+user.ID.Hex()+"&paperId="+domain.NewID().Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodGet, latestURL, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLifecycleOverREST(t *testing.T) {
	h := newHarness(t)
	paper := domaintest.ClinicalPaper(1)
	require.NoError(t, h.papers.CreatePaper(context.Background(), paper))
	_, token := h.user(t, "s@example.com", domain.RoleUser)
	_, intruder := h.user(t, "i@example.com", domain.RoleUser)

	rec := h.do(t, http.MethodPost, "/api/sessions", token, map[string]string{"paperId": paper.ID.Hex()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decode[app.Snapshot](t, rec)
	assert.Equal(t, app.StateIntro, snap.State)
	actions := "/api/sessions/" + snap.SessionID + "/actions"

	rec = h.do(t, http.MethodGet, "/api/sessions/"+snap.SessionID, intruder, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, actions, token, app.Action{Type: app.ActionSubmit})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"intro"`)

	steps := []app.Action{
		{Type: app.ActionStart},
		{Type: app.ActionSelect, Index: 0, Response: domain.BestChoice("B")},
		{Type: app.ActionSubmit},
		{Type: app.ActionConfirm},
	}
	for _, a := range steps {
		rec = h.do(t, http.MethodPost, actions, token, a)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", a.Type, rec.Body.String())
	}
	snap = decode[app.Snapshot](t, rec)
	require.Equal(t, app.StateCompleted, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 100, snap.Result.Percentage)
	assert.Equal(t, "No Timer", snap.TimeDisplay)

	rec = h.do(t, http.MethodGet, "/api/results/"+snap.Result.RecordID.Hex()+"/review?index=0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	review := decode[struct {
		Items   []app.ReviewItem `json:"items"`
		Current *app.ReviewItem  `json:"current"`
	}](t, rec)
	require.Len(t, review.Items, 1)
	require.NotNil(t, review.Current)
	assert.Equal(t, app.StatusCorrect, review.Current.Status)

	rec = h.do(t, http.MethodGet, "/api/results/"+snap.Result.RecordID.Hex()+"/review?index=3", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/papers/"+paper.ID.Hex()+"/review", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/results", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.AnswerRecord](t, rec), 1)

	rec = h.do(t, http.MethodDelete, "/api/sessions/"+snap.SessionID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/sessions/"+snap.SessionID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentBoardEndpoints(t *testing.T) {
	h := newHarness(t)
	_, token := h.user(t, "board@example.com", domain.RoleUser)

	rec := h.do(t, http.MethodPost, "/api/comments", "", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/comments", token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/comments", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	missing := decode[struct {
		Fields []domain.FieldError `json:"fields"`
	}](t, rec)
	assert.Equal(t, []domain.FieldError{{Field: "text", Message: "is required"}}, missing.Fields)

	rec = h.do(t, http.MethodPost, "/api/comments", token, map[string]string{"text": "How is SJT scored?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[domain.Comment](t, rec)
	rec = h.do(t, http.MethodPost, "/api/comments", token, map[string]string{"text": "Any tips?"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/comments/"+first.ID.Hex()+"/replies", token, map[string]string{"text": "All or nothing."})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/comments/"+domain.NewID().Hex()+"/replies", token, map[string]string{"text": "lost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/comments?filter=answered&sort=most_replies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[struct {
		Comments []domain.Comment `json:"comments"`
		Stats    app.BoardStats   `json:"stats"`
	}](t, rec)
	require.Len(t, board.Comments, 1)
	assert.Equal(t, first.ID, board.Comments[0].ID)
	assert.Equal(t, app.BoardStats{Comments: 2, Replies: 1}, board.Stats)

	rec = h.do(t, http.MethodGet, "/api/comments?filter=popular", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "filter"))
}
