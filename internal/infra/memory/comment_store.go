package memory

import (
	"context"
	"sort"
	"sync"

	"exam-prep-service/internal/domain"
)

// CommentStore keeps the comment board in memory.
type CommentStore struct {
	mu       sync.RWMutex
	comments map[domain.ID]domain.Comment
}

func NewCommentStore() *CommentStore {
	return &CommentStore{comments: make(map[domain.ID]domain.Comment)}
}

func (s *CommentStore) CreateComment(_ context.Context, comment domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return nil
}

func (s *CommentStore) AppendReply(_ context.Context, commentID domain.ID, reply domain.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[commentID]
	if !ok {
		return domain.ErrCommentNotFound
	}
	replies := make([]domain.Reply, len(comment.Replies), len(comment.Replies)+1)
	copy(replies, comment.Replies)
	comment.Replies = append(replies, reply)
	s.comments[commentID] = comment
	return nil
}

func (s *CommentStore) ListComments(_ context.Context) ([]domain.Comment, error) {
	s.mu.RLock()
	out := make([]domain.Comment, 0, len(s.comments))
	for _, c := range s.comments {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
