package mongo

import (
	"context"
	"errors"
	"fmt"

	"exam-prep-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AnswerStore persists answer records; the sjt_once partial index rejects a
// second SJT record for the same user and paper.
type AnswerStore struct {
	coll *mongo.Collection
}

func NewAnswerStore(db *mongo.Database) *AnswerStore {
	return &AnswerStore{coll: db.Collection(answersCollection)}
}

func (s *AnswerStore) SaveAnswerRecord(ctx context.Context, record domain.AnswerRecord) error {
	_, err := s.coll.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) && record.Kind == domain.PaperSJT {
		return domain.ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert answer record: %w", err)
	}
	return nil
}

func (s *AnswerStore) GetAnswerRecord(ctx context.Context, id domain.ID) (domain.AnswerRecord, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil)
}

func (s *AnswerStore) LatestAnswerRecord(ctx context.Context, kind domain.PaperKind, userID, paperID domain.ID) (domain.AnswerRecord, error) {
	filter := bson.M{"kind": kind, "user": userID, "paper": paperID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.findOne(ctx, filter, opts)
}

func (s *AnswerStore) ListAnswerRecords(ctx context.Context, userID domain.ID) ([]domain.AnswerRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find answer records: %w", err)
	}
	out := make([]domain.AnswerRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode answer records: %w", err)
	}
	return out, nil
}

func (s *AnswerStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (domain.AnswerRecord, error) {
	var record domain.AnswerRecord
	var err error
	if opts != nil {
		err = s.coll.FindOne(ctx, filter, opts).Decode(&record)
	} else {
		err = s.coll.FindOne(ctx, filter).Decode(&record)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}
	if err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("find answer record: %w", err)
	}
	return record, nil
}
