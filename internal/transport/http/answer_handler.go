package http

import (
	"net/http"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type clinicalAnswerView struct {
	QuestionID     domain.ID `json:"questionId"`
	SelectedOption string    `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
}

type clinicalRecordView struct {
	ID              domain.ID            `json:"id"`
	User            domain.ID            `json:"user"`
	Paper           domain.ID            `json:"paper"`
	Answers         []clinicalAnswerView `json:"answers"`
	Score           int                  `json:"score"`
	MaxScore        int                  `json:"maxScore"`
	PercentageScore int                  `json:"percentageScore"`
	TimeTaken       int                  `json:"timeTaken"`
	CompletedAt     time.Time            `json:"completedAt"`
	CreatedAt       time.Time            `json:"createdAt"`
	UserDetails     *app.UserRef         `json:"userDetails,omitempty"`
	PaperDetails    *paperRef            `json:"paperDetails,omitempty"`
}

type paperRef struct {
	ID          domain.ID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"paperDescription"`
}

// clinicalView renders a record in the clinical answers wire shape, where an
// unanswered question reads "NA".
func clinicalView(r domain.AnswerRecord) clinicalRecordView {
	answers := make([]clinicalAnswerView, len(r.Answers))
	for i, a := range r.Answers {
		choice := a.Response.Choice
		if choice == "" {
			choice = domain.NoSelection
		}
		answers[i] = clinicalAnswerView{QuestionID: a.QuestionID, SelectedOption: choice, IsCorrect: a.IsCorrect}
	}
	return clinicalRecordView{
		ID:              r.ID,
		User:            r.UserID,
		Paper:           r.PaperID,
		Answers:         answers,
		Score:           r.Score,
		MaxScore:        r.MaxScore,
		PercentageScore: r.PercentageScore,
		TimeTaken:       r.TimeTaken,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

func (h *Handler) SaveClinicalAnswers(c *gin.Context) {
	var in app.ClinicalSubmission
	if !h.bindJSON(c, &in) {
		return
	}
	record, err := h.svc.Answers.SaveClinicalAnswers(c.Request.Context(), principal(c), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, clinicalView(record))
}

func (h *Handler) LatestClinicalAnswers(c *gin.Context) {
	latest, err := h.svc.Answers.LatestClinicalAnswers(c.Request.Context(), principal(c), c.Query("userId"), c.Query("paperId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	view := clinicalView(latest.AnswerRecord)
	view.UserDetails = latest.User
	if latest.Paper != nil {
		view.PaperDetails = &paperRef{ID: latest.Paper.ID, Title: latest.Paper.Title, Description: latest.Paper.Description}
	}
	c.JSON(http.StatusOK, view)
}
