package http

import (
	"net/http"
	"strconv"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type reviewResponse struct {
	app.Review
	Index   int             `json:"index"`
	Current *app.ReviewItem `json:"current,omitempty"`
}

// reviewAt positions a cursor at the ?index= query (0 when absent).
func reviewAt(c *gin.Context, review app.Review) (reviewResponse, error) {
	cursor := app.NewReviewCursor(review)
	if raw := c.Query("index"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || !cursor.Jump(i) {
			return reviewResponse{}, domain.Invalid("index", "is out of range")
		}
	}
	resp := reviewResponse{Review: review, Index: cursor.Index()}
	if item, ok := cursor.Current(); ok {
		resp.Current = &item
	}
	return resp, nil
}

func (h *Handler) Review(c *gin.Context) {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	review, err := h.svc.Results.Review(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.writeReview(c, review)
}

func (h *Handler) LatestReview(c *gin.Context) {
	id, err := domain.ParseID("id", c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	review, err := h.svc.Results.LatestReview(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.writeReview(c, review)
}

func (h *Handler) writeReview(c *gin.Context, review app.Review) {
	resp, err := reviewAt(c, review)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) History(c *gin.Context) {
	p := principal(c)
	records, err := h.svc.Results.History(c.Request.Context(), p, p.UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Progress(c *gin.Context) {
	userID, err := domain.ParseID("userId", c.Param("userId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	progress, err := h.svc.Results.Progress(c.Request.Context(), principal(c), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
