package http

import (
	"net/http"
	"strconv"

	"exam-prep-service/internal/domain"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPapers(c *gin.Context) {
	q := domain.PaperQuery{
		Kind:    domain.PaperKind(c.Query("kind")),
		Search:  c.Query("search"),
		Subject: c.Query("subject"),
		Sort:    c.Query("sort"),
		Asc:     c.Query("order") == "asc",
	}
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		writeError(c, h.log, err)
		return
	}
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.log, err)
		return
	}
	page, err := h.svc.Catalog.ListPapers(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}

func (h *Handler) GetPaper(c *gin.Context) {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	paper, err := h.svc.Catalog.GetPaper(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (h *Handler) CreatePaper(c *gin.Context) {
	var paper domain.Paper
	if !h.bindJSON(c, &paper) {
		return
	}
	created, err := h.svc.Catalog.CreatePaper(c.Request.Context(), principal(c), paper)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, created.Summary())
}
