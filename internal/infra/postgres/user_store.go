package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-prep-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           string      `bun:"id,pk"`
	Email        string      `bun:"email,notnull"`
	PasswordHash string      `bun:"password_hash,notnull"`
	CreatedAt    time.Time   `bun:"created_at,notnull"`
	Data         domain.User `bun:"data,type:jsonb,notnull"`
}

func (r userRow) user() domain.User {
	u := r.Data
	u.PasswordHash = r.PasswordHash
	return u
}

// UserStore persists accounts; email uniqueness is a table constraint.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user domain.User) error {
	row := userRow{
		ID:           user.ID.Hex(),
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		Data:         user,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if uniqueViolation(err, "users_email_key") {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, id domain.ID) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id.Hex()).Scan(ctx)
	return userOrNotFound(row, err)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("email = ?", email).Scan(ctx)
	return userOrNotFound(row, err)
}

func (s *UserStore) UpdateSubscription(ctx context.Context, id domain.ID, sub domain.Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("data = jsonb_set(data, '{subscription}', ?::jsonb)", string(raw)).
		Where("id = ?", id.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func userOrNotFound(row userRow, err error) (domain.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.user(), nil
}

type planRow struct {
	bun.BaseModel `bun:"table:plans"`

	ID     string          `bun:"id,pk"`
	Type   string          `bun:"type,notnull"`
	Amount decimal.Decimal `bun:"amount,type:numeric,notnull"`
	Data   domain.Plan     `bun:"data,type:jsonb,notnull"`
}

// PlanStore persists the plan catalog, one row per tier with a unique amount.
type PlanStore struct {
	db *bun.DB
}

func NewPlanStore(db *bun.DB) *PlanStore {
	return &PlanStore{db: db}
}

func (s *PlanStore) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	var rows []planRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("amount ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	out := make([]domain.Plan, len(rows))
	for i, r := range rows {
		out[i] = r.Data
		out[i].ID, _ = domain.ParseID("id", r.ID)
		out[i].Amount = r.Amount
	}
	return out, nil
}

// UpsertPlan replaces the tier's plan, keeping its original id.
func (s *PlanStore) UpsertPlan(ctx context.Context, plan domain.Plan) error {
	row := planRow{
		ID:     plan.ID.Hex(),
		Type:   string(plan.Type),
		Amount: plan.Amount,
		Data:   plan,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (type) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Set("data = jsonb_set(EXCLUDED.data, '{id}', to_jsonb(plans.id))").
		Exec(ctx)
	if uniqueViolation(err, "plans_amount_key") {
		return domain.Invalid("amount", "is already used by another plan")
	}
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}
