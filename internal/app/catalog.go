package app

import (
	"context"
	"strings"
	"time"

	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// PaperPage is one page of the catalog listing.
type PaperPage struct {
	Papers []domain.PaperSummary `json:"papers"`
	Total  int                   `json:"total"`
	Page   int                   `json:"page"`
	Limit  int                   `json:"limit"`
}

// CatalogService lists, reads and creates papers.
type CatalogService struct {
	store  PaperStore
	papers PaperRepository
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewCatalogService(store PaperStore, papers PaperRepository, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{store: store, papers: papers, log: log, now: time.Now}
}

// ListPapers normalises the query and returns a page of summaries.
func (s *CatalogService) ListPapers(ctx context.Context, q domain.PaperQuery) (PaperPage, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return PaperPage{}, domain.Invalid("kind", "must be clinical or sjt")
	}
	switch q.Sort {
	case "":
		q.Sort = "createdAt"
	case "createdAt", "title", "timeLimit":
	default:
		return PaperPage{}, domain.Invalid("sort", "must be createdAt, title or timeLimit")
	}
	q.Search = strings.TrimSpace(q.Search)
	if q.Limit < 0 || q.Page < 0 {
		return PaperPage{}, domain.Invalid("page", "must not be negative")
	}
	if q.Limit > 0 && q.Page == 0 {
		q.Page = 1
	}

	papers, total, err := s.store.ListPapers(ctx, q)
	if err != nil {
		return PaperPage{}, err
	}
	page := PaperPage{Papers: make([]domain.PaperSummary, 0, len(papers)), Total: total, Page: q.Page, Limit: q.Limit}
	for _, p := range papers {
		page.Papers = append(page.Papers, p.Summary())
	}
	return page, nil
}

// GetPaper returns the public view: no keys, no explanations.
func (s *CatalogService) GetPaper(ctx context.Context, id domain.ID) (domain.Paper, error) {
	paper, err := s.papers.GetPaper(ctx, id)
	if err != nil {
		return domain.Paper{}, err
	}
	return paper.Public(), nil
}

// CreatePaper validates and stores a paper. Admin only.
func (s *CatalogService) CreatePaper(ctx context.Context, p auth.Principal, paper domain.Paper) (domain.Paper, error) {
	if !p.IsAdmin() {
		return domain.Paper{}, domain.ErrForbidden
	}
	return s.Import(ctx, paper)
}

// Import validates and stores a paper without an authorization check; used by seeding.
func (s *CatalogService) Import(ctx context.Context, paper domain.Paper) (domain.Paper, error) {
	if err := domain.ValidatePaper(paper); err != nil {
		return domain.Paper{}, err
	}
	paper.AssignIDs()
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = s.now().UTC()
	}
	if err := s.store.CreatePaper(ctx, paper); err != nil {
		return domain.Paper{}, err
	}
	s.log.WithFields(logrus.Fields{"paper": paper.ID.Hex(), "kind": paper.Kind}).Info("paper created")
	return paper, nil
}
