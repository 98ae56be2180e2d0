package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// Comment board filters and sort orders.
const (
	FilterAll        = "all"
	FilterAnswered   = "answered"
	FilterUnanswered = "unanswered"

	SortNewest      = "newest"
	SortOldest      = "oldest"
	SortMostReplies = "most_replies"
)

// BoardStats counts comments and replies.
type BoardStats struct {
	Comments int `json:"comments"`
	Replies  int `json:"replies"`
}

type commentInput struct {
	UserID domain.ID `json:"userId" validate:"required"`
	Text   string    `json:"text" validate:"required,max=2000"`
}

type replyInput struct {
	CommentID domain.ID `json:"commentId" validate:"required"`
	UserID    domain.ID `json:"userId" validate:"required"`
	Text      string    `json:"text" validate:"required,max=2000"`
}

// CommunityService runs the comment board.
type CommunityService struct {
	comments CommentStore
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCommunityService(comments CommentStore, log logrus.FieldLogger) *CommunityService {
	return &CommunityService{comments: comments, log: log, now: time.Now}
}

// PostComment creates a comment with no replies. Store failures are logged
// and returned.
func (s *CommunityService) PostComment(ctx context.Context, userID domain.ID, text string) (domain.Comment, error) {
	in := commentInput{UserID: userID, Text: strings.TrimSpace(text)}
	if err := domain.ValidateInput(in); err != nil {
		return domain.Comment{}, err
	}

	comment := domain.Comment{
		ID:        domain.NewID(),
		UserID:    userID,
		Text:      in.Text,
		Replies:   []domain.Reply{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.log.WithError(err).WithField("user", userID.Hex()).Error("post comment")
		return domain.Comment{}, err
	}
	return comment, nil
}

// PostReply appends a reply to an existing comment.
func (s *CommunityService) PostReply(ctx context.Context, commentID, userID domain.ID, text string) (domain.Reply, error) {
	in := replyInput{CommentID: commentID, UserID: userID, Text: strings.TrimSpace(text)}
	if err := domain.ValidateInput(in); err != nil {
		return domain.Reply{}, err
	}

	reply := domain.Reply{UserID: userID, Text: in.Text, CreatedAt: s.now().UTC()}
	if err := s.comments.AppendReply(ctx, commentID, reply); err != nil {
		s.log.WithError(err).WithField("comment", commentID.Hex()).Error("post reply")
		return domain.Reply{}, err
	}
	return reply, nil
}

// ListComments returns every comment newest first.
func (s *CommunityService) ListComments(ctx context.Context) ([]domain.Comment, error) {
	return s.comments.ListComments(ctx)
}

// Arrange filters and sorts the full comment set for display. Unknown
// filter or sort values are validation errors; empty ones use the defaults.
func Arrange(comments []domain.Comment, filter, order string) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(comments))
	switch filter {
	case "", FilterAll:
		out = append(out, comments...)
	case FilterAnswered, FilterUnanswered:
		want := filter == FilterAnswered
		for _, c := range comments {
			if (len(c.Replies) > 0) == want {
				out = append(out, c)
			}
		}
	default:
		return nil, domain.Invalid("filter", "must be all, answered or unanswered")
	}

	switch order {
	case "", SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortMostReplies:
		sort.SliceStable(out, func(i, j int) bool { return len(out[i].Replies) > len(out[j].Replies) })
	default:
		return nil, domain.Invalid("sort", "must be newest, oldest or most_replies")
	}
	return out, nil
}

// Stats totals comments and replies.
func Stats(comments []domain.Comment) BoardStats {
	st := BoardStats{Comments: len(comments)}
	for _, c := range comments {
		st.Replies += len(c.Replies)
	}
	return st
}
