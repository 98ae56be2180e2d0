package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// PlanType is a subscription tier.
type PlanType string

const (
	PlanSilver   PlanType = "Silver"
	PlanGold     PlanType = "Gold"
	PlanPlatinum PlanType = "Platinum"
)

// planDurations maps each tier to how long a purchase lasts.
var planDurations = map[PlanType]int{
	PlanSilver:   30,
	PlanGold:     60,
	PlanPlatinum: 90,
}

// DurationDays returns the tier's length in days and whether the tier exists.
func (p PlanType) DurationDays() (int, bool) {
	d, ok := planDurations[p]
	return d, ok
}

// Subscription statuses.
const (
	SubscriptionActive        = "active"
	SubscriptionNotSubscribed = "not_subscribed"
)

// Subscription is embedded in the user document.
type Subscription struct {
	Type      PlanType   `json:"type" bson:"type"`
	StartDate *time.Time `json:"startDate" bson:"startDate"`
	EndDate   *time.Time `json:"endDate" bson:"endDate"`
	Status    string     `json:"status" bson:"status"`
}

// IsActive reports whether the subscription is active and not past its end date.
func (s Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionActive || s.EndDate == nil {
		return false
	}
	return now.Before(*s.EndDate)
}

// NewSubscription starts a subscription of the given tier at now.
func NewSubscription(plan PlanType, now time.Time) (Subscription, error) {
	days, ok := plan.DurationDays()
	if !ok {
		return Subscription{}, Invalid("subscriptionType", "must be one of Silver, Gold, Platinum")
	}
	start := now
	end := now.AddDate(0, 0, days)
	return Subscription{Type: plan, StartDate: &start, EndDate: &end, Status: SubscriptionActive}, nil
}

// User is a registered account.
type User struct {
	ID           ID           `json:"id" bson:"_id"`
	Name         string       `json:"name" bson:"name"`
	Email        string       `json:"email" bson:"email"`
	PasswordHash string       `json:"-" bson:"password"`
	Role         string       `json:"role" bson:"role"`
	Subscription Subscription `json:"subscription" bson:"subscription"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
}

// Plan is an entry of the subscription plan catalog.
type Plan struct {
	ID          ID              `json:"id" bson:"_id"`
	Type        PlanType        `json:"subscriptionType" bson:"subscriptionType" yaml:"subscriptionType"`
	Validity    string          `json:"validity" bson:"validity" yaml:"validity"`
	Amount      decimal.Decimal `json:"amount" bson:"-" yaml:"amount"`
	Description string          `json:"description" bson:"description" yaml:"description"`
}

// Registration is the input to account creation.
type Registration struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
