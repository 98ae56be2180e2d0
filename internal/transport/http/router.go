package http

import (
	"net/http"
	"path/filepath"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ProtectedPages are the page prefixes that need a signed-in user.
var ProtectedPages = []string{"/quizzes", "/community", "/progress", "/subscription"}

// Services bundles the use cases the router exposes.
type Services struct {
	Quiz      *app.QuizService
	Catalog   *app.CatalogService
	Results   *app.ResultService
	Community *app.CommunityService
	Accounts  *app.AccountService
	Answers   *app.AnswerService
}

// RouterConfig carries transport settings.
type RouterConfig struct {
	Tokens       *auth.Issuer
	CookieName   string
	SecureCookie bool
	Origins      []string
	StaticDir    string
	Metrics      *metrics.Metrics
	Log          logrus.FieldLogger
}

// Handler implements the REST and websocket endpoints.
type Handler struct {
	svc      Services
	cfg      RouterConfig
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewHandler(svc Services, cfg RouterConfig) *Handler {
	return &Handler{
		svc: svc,
		cfg: cfg,
		log: cfg.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter wires middleware and routes.
func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()
	h := NewHandler(svc, cfg)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(cors.New(corsConfig(cfg.Origins)))
	r.Use(Authenticate(cfg.Tokens, cfg.CookieName))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
		api.GET("/subscription-plans", h.ListPlans)
		api.GET("/papers", h.ListPapers)
		api.GET("/papers/:id", h.GetPaper)
		api.GET("/comments", h.ListComments)
		api.GET("/getclinicaluseranswers", h.LatestClinicalAnswers)

		authed := api.Group("")
		authed.Use(RequireAuth())
		{
			authed.GET("/me", h.Me)
			authed.POST("/subscription", h.Subscribe)
			authed.POST("/clinical-answers", h.SaveClinicalAnswers)

			authed.POST("/papers", RequireAdmin(), h.CreatePaper)
			authed.GET("/papers/:id/review", h.LatestReview)

			authed.POST("/sessions", h.OpenSession)
			authed.GET("/sessions/:id", h.GetSession)
			authed.POST("/sessions/:id/actions", h.ApplyAction)
			authed.DELETE("/sessions/:id", h.LeaveSession)

			authed.GET("/results", h.History)
			authed.GET("/results/:id/review", h.Review)
			authed.GET("/progress/:userId", h.Progress)

			authed.POST("/comments", h.PostComment)
			authed.POST("/comments/:id/replies", h.PostReply)
		}
	}

	r.GET("/ws/sessions/:id", RequireAuth(), h.SessionSocket)

	r.NoRoute(PageGate(ProtectedPages...), h.Page)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Page serves the single-page frontend for any other GET, or 404 when no
// static directory is configured.
func (h *Handler) Page(c *gin.Context) {
	if h.cfg.StaticDir == "" || c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	c.File(filepath.Join(h.cfg.StaticDir, "index.html"))
}
