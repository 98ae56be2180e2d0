package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"exam-prep-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PaperLoader loads paper JSONB from Postgres on a cache miss.
type PaperLoader struct {
	pool *pgxpool.Pool
}

func NewPaperLoader(pool *pgxpool.Pool) *PaperLoader {
	return &PaperLoader{pool: pool}
}

func (l *PaperLoader) LoadPaper(ctx context.Context, id domain.ID) (domain.Paper, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM papers WHERE id=$1`, id.Hex()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Paper{}, domain.ErrPaperNotFound
	}
	if err != nil {
		return domain.Paper{}, fmt.Errorf("load paper: %w", err)
	}
	var paper domain.Paper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return domain.Paper{}, fmt.Errorf("unmarshal paper: %w", err)
	}
	return paper, nil
}
