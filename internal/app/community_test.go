package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/logging"
)

func TestScenarioEReplyToMissingComment(t *testing.T) {
	store := memory.NewCommentStore()
	svc := app.NewCommunityService(store, logging.Discard())
	ctx := context.Background()

	_, err := svc.PostReply(ctx, domain.NewID(), domain.NewID(), "anyone?")
	if !errors.Is(err, domain.ErrCommentNotFound) {
		t.Fatalf("expected comment not found, got %v", err)
	}
	comments, _ := svc.ListComments(ctx)
	if len(comments) != 0 {
		t.Fatalf("expected no orphan, got %d comments", len(comments))
	}
}

func TestPostCommentValidation(t *testing.T) {
	svc := app.NewCommunityService(memory.NewCommentStore(), logging.Discard())
	_, err := svc.PostComment(context.Background(), domain.ID{}, "  ")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
}

type failingComments struct{ *memory.CommentStore }

func (failingComments) CreateComment(context.Context, domain.Comment) error {
	return errors.New("write failed")
}

func TestPostCommentSurfacesStoreErrors(t *testing.T) {
	svc := app.NewCommunityService(failingComments{memory.NewCommentStore()}, logging.Discard())
	if _, err := svc.PostComment(context.Background(), domain.NewID(), "hello"); err == nil {
		t.Fatalf("expected store error to be returned")
	}
}

func TestArrangeFiltersAndSorts(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reply := domain.Reply{Text: "r"}
	comments := []domain.Comment{
		{ID: domain.NewID(), Text: "old busy", CreatedAt: base, Replies: []domain.Reply{reply, reply}},
		{ID: domain.NewID(), Text: "new quiet", CreatedAt: base.Add(2 * time.Hour)},
		{ID: domain.NewID(), Text: "mid", CreatedAt: base.Add(time.Hour), Replies: []domain.Reply{reply}},
	}

	got, err := app.Arrange(comments, app.FilterAnswered, app.SortOldest)
	if err != nil || len(got) != 2 || got[0].Text != "old busy" {
		t.Fatalf("answered/oldest: %v %+v", err, got)
	}
	got, _ = app.Arrange(comments, app.FilterUnanswered, "")
	if len(got) != 1 || got[0].Text != "new quiet" {
		t.Fatalf("unanswered: %+v", got)
	}
	got, _ = app.Arrange(comments, "", app.SortMostReplies)
	if got[0].Text != "old busy" || got[1].Text != "mid" {
		t.Fatalf("most replies: %+v", got)
	}
	got, _ = app.Arrange(comments, app.FilterAll, app.SortNewest)
	if got[0].Text != "new quiet" {
		t.Fatalf("newest: %+v", got)
	}
	if _, err := app.Arrange(comments, "popular", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown filter, got %v", err)
	}
	if st := app.Stats(comments); st.Comments != 3 || st.Replies != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
