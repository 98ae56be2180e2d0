package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/uptrace/bun"
)

const sjtAttemptIndex = "answer_records_sjt_once_idx"

type answerRow struct {
	bun.BaseModel `bun:"table:answer_records"`

	ID        string              `bun:"id,pk"`
	Kind      string              `bun:"kind,notnull"`
	UserID    string              `bun:"user_id,notnull"`
	PaperID   string              `bun:"paper_id,notnull"`
	CreatedAt time.Time           `bun:"created_at,notnull"`
	Data      domain.AnswerRecord `bun:"data,type:jsonb,notnull"`
}

// AnswerStore persists answer records. One SJT record per user and paper is
// enforced by a partial unique index.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

func (s *AnswerStore) SaveAnswerRecord(ctx context.Context, record domain.AnswerRecord) error {
	row := answerRow{
		ID:        record.ID.Hex(),
		Kind:      string(record.Kind),
		UserID:    record.UserID.Hex(),
		PaperID:   record.PaperID.Hex(),
		CreatedAt: record.CreatedAt,
		Data:      record,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if uniqueViolation(err, sjtAttemptIndex) {
		return domain.ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert answer record: %w", err)
	}
	return nil
}

func (s *AnswerStore) GetAnswerRecord(ctx context.Context, id domain.ID) (domain.AnswerRecord, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id.Hex()).Scan(ctx)
	return recordOrNotFound(row, err)
}

func (s *AnswerStore) LatestAnswerRecord(ctx context.Context, kind domain.PaperKind, userID, paperID domain.ID) (domain.AnswerRecord, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).
		Where("kind = ?", string(kind)).
		Where("user_id = ?", userID.Hex()).
		Where("paper_id = ?", paperID.Hex()).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	return recordOrNotFound(row, err)
}

func (s *AnswerStore) ListAnswerRecords(ctx context.Context, userID domain.ID) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID.Hex()).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answer records: %w", err)
	}
	out := make([]domain.AnswerRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Data
	}
	return out, nil
}

func recordOrNotFound(row answerRow, err error) (domain.AnswerRecord, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("select answer record: %w", err)
	}
	return row.Data, nil
}
