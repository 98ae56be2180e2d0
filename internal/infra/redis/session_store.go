package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"exam-prep-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map so the in-process broadcast and
//     timer keep working.
//   - Redis holds the latest snapshot of every session under a TTL, so other
//     instances and operators can see session state.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	s.Touch(session)
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Touch writes the session's snapshot; best effort.
func (s *SessionStore) Touch(session *app.Session) {
	data, err := json.Marshal(session.Snapshot())
	if err != nil {
		return
	}
	_ = s.client.Set(context.Background(), s.key(session.ID()), data, s.ttl).Err()
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(id)).Err()
}

// List returns the held sessions in no particular order.
func (s *SessionStore) List() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// LoadSnapshot reads the last snapshot written for a session.
func (s *SessionStore) LoadSnapshot(ctx context.Context, id string) (app.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("load session snapshot: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	return snap, nil
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
