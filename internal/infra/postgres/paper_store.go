package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/uptrace/bun"
)

type paperRow struct {
	bun.BaseModel `bun:"table:papers"`

	ID          string       `bun:"id,pk"`
	Kind        string       `bun:"kind,notnull"`
	Title       string       `bun:"title,notnull"`
	Description string       `bun:"description,notnull"`
	Subject     string       `bun:"subject,notnull"`
	TimeLimit   int          `bun:"time_limit,notnull"`
	CreatedAt   time.Time    `bun:"created_at,notnull"`
	Data        domain.Paper `bun:"data,type:jsonb,notnull"`
}

var paperSortColumns = map[string]string{
	"createdAt": "created_at",
	"title":     "lower(title)",
	"timeLimit": "time_limit",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PaperStore keeps the paper catalog as JSONB documents with the listing
// fields promoted to columns.
type PaperStore struct {
	db *bun.DB
}

func NewPaperStore(db *bun.DB) *PaperStore {
	return &PaperStore{db: db}
}

func (s *PaperStore) CreatePaper(ctx context.Context, paper domain.Paper) error {
	row := paperRow{
		ID:          paper.ID.Hex(),
		Kind:        string(paper.Kind),
		Title:       paper.Title,
		Description: paper.Description,
		Subject:     paper.Subject,
		TimeLimit:   paper.TimeLimit,
		CreatedAt:   paper.CreatedAt,
		Data:        paper,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}

func (s *PaperStore) ListPapers(ctx context.Context, q domain.PaperQuery) ([]domain.Paper, int, error) {
	var rows []paperRow
	sel := s.db.NewSelect().Model(&rows)
	if q.Kind != "" {
		sel = sel.Where("kind = ?", string(q.Kind))
	}
	if q.Subject != "" {
		sel = sel.Where("lower(subject) = lower(?)", q.Subject)
	}
	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(q.Search) + "%"
		sel = sel.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
			return g.Where("title ILIKE ?", pattern).WhereOr("description ILIKE ?", pattern)
		})
	}

	column, ok := paperSortColumns[q.Sort]
	if !ok {
		column = paperSortColumns["createdAt"]
	}
	dir := "DESC"
	if q.Asc {
		dir = "ASC"
	}
	sel = sel.OrderExpr(column + " " + dir).OrderExpr("id " + dir)
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		sel = sel.Limit(q.Limit).Offset((page - 1) * q.Limit)
	}

	total, err := sel.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}
	papers := make([]domain.Paper, len(rows))
	for i, r := range rows {
		papers[i] = r.Data
	}
	return papers, total, nil
}
