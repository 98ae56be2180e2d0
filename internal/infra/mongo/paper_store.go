package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"exam-prep-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var paperSortFields = map[string]string{
	"createdAt": "createdAt",
	"title":     "title",
	"timeLimit": "timeLimit",
}

// PaperStore keeps papers with their embedded questions. It is both the
// catalog and the loader behind a cached PaperRepository.
type PaperStore struct {
	coll *mongo.Collection
}

func NewPaperStore(db *mongo.Database) *PaperStore {
	return &PaperStore{coll: db.Collection(papersCollection)}
}

func (s *PaperStore) CreatePaper(ctx context.Context, paper domain.Paper) error {
	if _, err := s.coll.InsertOne(ctx, paper); err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}

func (s *PaperStore) LoadPaper(ctx context.Context, id domain.ID) (domain.Paper, error) {
	var paper domain.Paper
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&paper)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Paper{}, domain.ErrPaperNotFound
	}
	if err != nil {
		return domain.Paper{}, fmt.Errorf("load paper: %w", err)
	}
	return paper, nil
}

func (s *PaperStore) ListPapers(ctx context.Context, q domain.PaperQuery) ([]domain.Paper, int, error) {
	filter := bson.M{}
	if q.Kind != "" {
		filter["kind"] = q.Kind
	}
	if q.Subject != "" {
		filter["subject"] = primitiveRegex("^" + regexp.QuoteMeta(q.Subject) + "$")
	}
	if q.Search != "" {
		needle := primitiveRegex(regexp.QuoteMeta(q.Search))
		filter["$or"] = bson.A{
			bson.M{"title": needle},
			bson.M{"paperDescription": needle},
		}
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}

	field, ok := paperSortFields[q.Sort]
	if !ok {
		field = "createdAt"
	}
	dir := -1
	if q.Asc {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		opts.SetLimit(int64(q.Limit)).SetSkip(int64((page - 1) * q.Limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find papers: %w", err)
	}
	papers := make([]domain.Paper, 0)
	if err := cur.All(ctx, &papers); err != nil {
		return nil, 0, fmt.Errorf("decode papers: %w", err)
	}
	return papers, int(total), nil
}
