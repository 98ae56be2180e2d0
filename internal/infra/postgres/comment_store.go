package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/uptrace/bun"
)

type commentRow struct {
	bun.BaseModel `bun:"table:comments"`

	ID        string         `bun:"id,pk"`
	UserID    string         `bun:"user_id,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull"`
	Data      domain.Comment `bun:"data,type:jsonb,notnull"`
}

// CommentStore keeps comments as JSONB documents with embedded replies.
type CommentStore struct {
	db *bun.DB
}

func NewCommentStore(db *bun.DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) CreateComment(ctx context.Context, comment domain.Comment) error {
	if comment.Replies == nil {
		comment.Replies = []domain.Reply{}
	}
	row := commentRow{
		ID:        comment.ID.Hex(),
		UserID:    comment.UserID.Hex(),
		CreatedAt: comment.CreatedAt,
		Data:      comment,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// AppendReply concatenates the reply onto the stored array in one statement.
func (s *CommentStore) AppendReply(ctx context.Context, commentID domain.ID, reply domain.Reply) error {
	raw, err := json.Marshal([]domain.Reply{reply})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*commentRow)(nil)).
		Set("data = jsonb_set(data, '{replies}', coalesce(data->'replies', '[]'::jsonb) || ?::jsonb)", string(raw)).
		Where("id = ?", commentID.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	if n == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (s *CommentStore) ListComments(ctx context.Context) ([]domain.Comment, error) {
	var rows []commentRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]domain.Comment, len(rows))
	for i, r := range rows {
		out[i] = r.Data
		if out[i].Replies == nil {
			out[i].Replies = []domain.Reply{}
		}
	}
	return out, nil
}
