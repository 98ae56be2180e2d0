package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// Test account created by the seed command.
const (
	TestUserEmail    = "test@example.com"
	TestUserPassword = "test123"
	TestUserName     = "Test User"
)

// AccountService registers users, signs them in and manages subscriptions.
type AccountService struct {
	users  UserStore
	plans  PlanStore
	tokens *auth.Issuer
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewAccountService(users UserStore, plans PlanStore, tokens *auth.Issuer, log logrus.FieldLogger) *AccountService {
	return &AccountService{users: users, plans: plans, tokens: tokens, log: log, now: time.Now}
}

// Register creates a user with the default role and no subscription.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	in := domain.Registration{Name: strings.TrimSpace(name), Email: normalizeEmail(email), Password: password}
	if err := domain.ValidateInput(in); err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:           domain.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Subscription: domain.Subscription{Status: domain.SubscriptionNotSubscribed},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	s.log.WithField("user", user.ID.Hex()).Info("user registered")
	return user, nil
}

// Login checks credentials and returns the user with a signed session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, "", err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Me returns the principal's account.
func (s *AccountService) Me(ctx context.Context, p auth.Principal) (domain.User, error) {
	if p.UserID.IsZero() {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return s.users.GetUser(ctx, p.UserID)
}

// Subscribe starts a subscription of the given tier for the principal.
func (s *AccountService) Subscribe(ctx context.Context, p auth.Principal, plan domain.PlanType) (domain.Subscription, error) {
	if p.UserID.IsZero() {
		return domain.Subscription{}, domain.ErrUnauthenticated
	}
	sub, err := domain.NewSubscription(plan, s.now().UTC())
	if err != nil {
		return domain.Subscription{}, err
	}
	if err := s.users.UpdateSubscription(ctx, p.UserID, sub); err != nil {
		return domain.Subscription{}, err
	}
	s.log.WithFields(logrus.Fields{"user": p.UserID.Hex(), "plan": plan}).Info("subscription updated")
	return sub, nil
}

// Plans returns the subscription plan catalog.
func (s *AccountService) Plans(ctx context.Context) ([]domain.Plan, error) {
	return s.plans.ListPlans(ctx)
}

// SavePlan adds or replaces a catalog entry by tier.
func (s *AccountService) SavePlan(ctx context.Context, plan domain.Plan) error {
	if _, ok := plan.Type.DurationDays(); !ok {
		return domain.Invalid("subscriptionType", "must be one of Silver, Gold, Platinum")
	}
	if plan.Amount.IsNegative() {
		return domain.Invalid("amount", "must not be negative")
	}
	if plan.ID.IsZero() {
		plan.ID = domain.NewID()
	}
	return s.plans.UpsertPlan(ctx, plan)
}

// EnsureTestUser creates the test account with a year of Platinum, or
// refreshes the subscription if the account already exists.
func (s *AccountService) EnsureTestUser(ctx context.Context) (domain.User, error) {
	now := s.now().UTC()
	end := now.AddDate(1, 0, 0)
	sub := domain.Subscription{Type: domain.PlanPlatinum, StartDate: &now, EndDate: &end, Status: domain.SubscriptionActive}

	existing, err := s.users.GetUserByEmail(ctx, TestUserEmail)
	switch {
	case err == nil:
		if err := s.users.UpdateSubscription(ctx, existing.ID, sub); err != nil {
			return domain.User{}, err
		}
		existing.Subscription = sub
		return existing, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.User{}, err
	}

	user, err := s.Register(ctx, TestUserName, TestUserEmail, TestUserPassword)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, sub); err != nil {
		return domain.User{}, err
	}
	user.Subscription = sub
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
