package memory

import (
	"context"
	"sort"
	"sync"

	"exam-prep-service/internal/domain"
)

type attemptKey struct {
	user  domain.ID
	paper domain.ID
}

// AnswerStore keeps answer records in memory and enforces one SJT record
// per user and paper.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[domain.ID]domain.AnswerRecord
	sjt     map[attemptKey]domain.ID
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		records: make(map[domain.ID]domain.AnswerRecord),
		sjt:     make(map[attemptKey]domain.ID),
	}
}

func (s *AnswerStore) SaveAnswerRecord(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Kind == domain.PaperSJT {
		key := attemptKey{user: record.UserID, paper: record.PaperID}
		if _, taken := s.sjt[key]; taken {
			return domain.ErrDuplicateAttempt
		}
		s.sjt[key] = record.ID
	}
	s.records[record.ID] = record
	return nil
}

func (s *AnswerStore) GetAnswerRecord(_ context.Context, id domain.ID) (domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[id]; ok {
		return record, nil
	}
	return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
}

func (s *AnswerStore) LatestAnswerRecord(_ context.Context, kind domain.PaperKind, userID, paperID domain.ID) (domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest domain.AnswerRecord
		found  bool
	)
	for _, r := range s.records {
		if r.Kind != kind || r.UserID != userID || r.PaperID != paperID {
			continue
		}
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest, found = r, true
		}
	}
	if !found {
		return domain.AnswerRecord{}, domain.ErrAnswerRecordNotFound
	}
	return latest, nil
}

func (s *AnswerStore) ListAnswerRecords(_ context.Context, userID domain.ID) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	out := make([]domain.AnswerRecord, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
