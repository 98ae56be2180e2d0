package http

import (
	"net/http"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type openSessionRequest struct {
	PaperID string `json:"paperId" binding:"required"`
}

func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	paperID, err := domain.ParseID("paperId", req.PaperID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	snap, err := h.svc.Quiz.Open(c.Request.Context(), principal(c), paperID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetSession(c *gin.Context) {
	snap, err := h.svc.Quiz.Snapshot(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ApplyAction runs one state machine action. Rejected actions answer with
// the error and the unchanged snapshot.
func (h *Handler) ApplyAction(c *gin.Context) {
	var action app.Action
	if !h.bindJSON(c, &action) {
		return
	}
	snap, err := h.svc.Quiz.Apply(c.Request.Context(), principal(c), c.Param("id"), action)
	if err != nil {
		status := statusFor(err)
		if snap.SessionID == "" || status == http.StatusInternalServerError {
			writeError(c, h.log, err)
			return
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) LeaveSession(c *gin.Context) {
	if err := h.svc.Quiz.Leave(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
