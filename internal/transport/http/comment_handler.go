package http

import (
	"net/http"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type boardResponse struct {
	Comments []domain.Comment `json:"comments"`
	Stats    app.BoardStats   `json:"stats"`
}

func (h *Handler) ListComments(c *gin.Context) {
	all, err := h.svc.Community.ListComments(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	arranged, err := app.Arrange(all, c.Query("filter"), c.Query("sort"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, boardResponse{Comments: arranged, Stats: app.Stats(all)})
}

func (h *Handler) PostComment(c *gin.Context) {
	var req commentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	comment, err := h.svc.Community.PostComment(c.Request.Context(), principal(c).UserID, req.Text)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) PostReply(c *gin.Context) {
	commentID, err := domain.ParseID("commentId", c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var req commentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	reply, err := h.svc.Community.PostReply(c.Request.Context(), commentID, principal(c).UserID, req.Text)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}
