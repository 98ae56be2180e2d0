package memory

import (
	"context"
	"sort"
	"sync"

	"exam-prep-service/internal/domain"
)

// UserStore keeps accounts in memory, unique by email.
type UserStore struct {
	mu      sync.RWMutex
	users   map[domain.ID]domain.User
	byEmail map[string]domain.ID
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[domain.ID]domain.User),
		byEmail: make(map[string]domain.ID),
	}
}

func (s *UserStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[user.Email]; taken {
		return domain.ErrEmailTaken
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetUser(_ context.Context, id domain.ID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byEmail[email]; ok {
		return s.users[id], nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *UserStore) UpdateSubscription(_ context.Context, id domain.ID, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Subscription = sub
	s.users[id] = user
	return nil
}

// PlanStore keeps the subscription plan catalog in memory, one plan per tier.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[domain.PlanType]domain.Plan
}

func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[domain.PlanType]domain.Plan)}
}

func (s *PlanStore) ListPlans(_ context.Context) ([]domain.Plan, error) {
	s.mu.RLock()
	out := make([]domain.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.LessThan(out[j].Amount) })
	return out, nil
}

func (s *PlanStore) UpsertPlan(_ context.Context, plan domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, p := range s.plans {
		if t != plan.Type && p.Amount.Equal(plan.Amount) {
			return domain.Invalid("amount", "is already used by another plan")
		}
	}
	if existing, ok := s.plans[plan.Type]; ok {
		plan.ID = existing.ID
	}
	s.plans[plan.Type] = plan
	return nil
}
