package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"exam-prep-service/internal/domain"
)

// PaperStore is an in-memory paper catalog. It also serves as the loader
// behind a PaperRepository.
type PaperStore struct {
	mu     sync.RWMutex
	papers map[domain.ID]domain.Paper
}

func NewPaperStore(papers ...domain.Paper) *PaperStore {
	s := &PaperStore{papers: make(map[domain.ID]domain.Paper, len(papers))}
	for _, p := range papers {
		s.papers[p.ID] = p
	}
	return s
}

func (s *PaperStore) CreatePaper(_ context.Context, paper domain.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers[paper.ID] = paper
	return nil
}

func (s *PaperStore) LoadPaper(_ context.Context, id domain.ID) (domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if paper, ok := s.papers[id]; ok {
		return paper, nil
	}
	return domain.Paper{}, domain.ErrPaperNotFound
}

func (s *PaperStore) ListPapers(_ context.Context, q domain.PaperQuery) ([]domain.Paper, int, error) {
	s.mu.RLock()
	matches := make([]domain.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		if MatchPaper(p, q) {
			matches = append(matches, p)
		}
	}
	s.mu.RUnlock()

	SortPapers(matches, q.Sort, q.Asc)
	total := len(matches)
	return Paginate(matches, q.Page, q.Limit), total, nil
}

// MatchPaper applies the kind, subject and case-insensitive search filters.
func MatchPaper(p domain.Paper, q domain.PaperQuery) bool {
	if q.Kind != "" && p.Kind != q.Kind {
		return false
	}
	if q.Subject != "" && !strings.EqualFold(p.Subject, q.Subject) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

// SortPapers orders papers by field; ties fall back to id for stability.
func SortPapers(papers []domain.Paper, field string, asc bool) {
	less := func(a, b domain.Paper) int {
		switch field {
		case "title":
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case "timeLimit":
			return a.TimeLimit - b.TimeLimit
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(papers, func(i, j int) bool {
		c := less(papers[i], papers[j])
		if c == 0 {
			return papers[i].ID.Hex() < papers[j].ID.Hex()
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

// Paginate returns the 1-based page; a zero limit returns everything.
func Paginate(papers []domain.Paper, page, limit int) []domain.Paper {
	if limit <= 0 {
		return papers
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(papers) {
		return []domain.Paper{}
	}
	end := start + limit
	if end > len(papers) {
		end = len(papers)
	}
	return papers[start:end]
}
