package mongo

import (
	"context"
	"fmt"

	"exam-prep-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentStore keeps comments with embedded replies.
type CommentStore struct {
	coll *mongo.Collection
}

func NewCommentStore(db *mongo.Database) *CommentStore {
	return &CommentStore{coll: db.Collection(commentsCollection)}
}

func (s *CommentStore) CreateComment(ctx context.Context, comment domain.Comment) error {
	if comment.Replies == nil {
		comment.Replies = []domain.Reply{}
	}
	if _, err := s.coll.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// AppendReply pushes onto the embedded array, so concurrent replies never
// overwrite each other.
func (s *CommentStore) AppendReply(ctx context.Context, commentID domain.ID, reply domain.Reply) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": commentID},
		bson.M{"$push": bson.M{"replies": reply}},
	)
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func (s *CommentStore) ListComments(ctx context.Context) ([]domain.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	out := make([]domain.Comment, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	for i := range out {
		if out[i].Replies == nil {
			out[i].Replies = []domain.Reply{}
		}
	}
	return out, nil
}
