package mongo

import (
	"context"
	"errors"
	"fmt"

	"exam-prep-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore persists accounts; the unique email index rejects duplicates.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

func (s *UserStore) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, id domain.ID) (domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) UpdateSubscription(ctx context.Context, id domain.ID, sub domain.Subscription) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"subscription": sub}})
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var user domain.User
	err := s.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// planDoc stores the amount as a decimal string; domain.Plan leaves it
// out of its bson encoding.
type planDoc struct {
	domain.Plan `bson:",inline"`
	Amount      string `bson:"amount"`
}

// PlanStore persists the plan catalog, one document per tier.
type PlanStore struct {
	coll *mongo.Collection
}

func NewPlanStore(db *mongo.Database) *PlanStore {
	return &PlanStore{coll: db.Collection(plansCollection)}
}

func (s *PlanStore) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find plans: %w", err)
	}
	var docs []planDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	out := make([]domain.Plan, 0, len(docs))
	for _, d := range docs {
		plan := d.Plan
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("plan %s amount: %w", plan.Type, err)
		}
		plan.Amount = amount
		out = append(out, plan)
	}
	sortPlans(out)
	return out, nil
}

// UpsertPlan replaces the tier's plan, keeping the id of an existing one.
func (s *PlanStore) UpsertPlan(ctx context.Context, plan domain.Plan) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"subscriptionType": plan.Type},
		bson.M{
			"$set": bson.M{
				"validity":    plan.Validity,
				"description": plan.Description,
				"amount":      plan.Amount.String(),
			},
			"$setOnInsert": bson.M{"_id": plan.ID},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return domain.Invalid("amount", "is already used by another plan")
	}
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}
