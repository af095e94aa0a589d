package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/catalog/internal/client"
	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/membership"
	"storefront/catalog/internal/metrics"
	"storefront/catalog/internal/repository"
	"storefront/catalog/internal/scanner"
	"storefront/catalog/internal/state"

	log "github.com/sirupsen/logrus"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSuperseded is returned by Select when a newer selection for the same
	// view started before this one finished. Its result must be dropped.
	ErrSuperseded      = errors.New("selection superseded")
	ErrReportsDisabled = errors.New("scan reports are not configured")
)

// Selection is the outcome of one category-selection cycle.
type Selection struct {
	Category   domain.Category
	Result     *domain.ReconciledResult
	Generation uint64
}

type Service struct {
	client      client.StorefrontClient
	resolver    *membership.Resolver
	scanner     *scanner.Scanner
	generations state.GenerationTracker
	reports     repository.ScanReportRepository // nil when no database is configured
	metrics     *metrics.Metrics
}

func NewService(
	client client.StorefrontClient,
	resolver *membership.Resolver,
	scanner *scanner.Scanner,
	generations state.GenerationTracker,
	reports repository.ScanReportRepository,
	m *metrics.Metrics,
) *Service {
	if m == nil {
		m = metrics.Noop()
	}
	if generations == nil {
		generations = state.NewMemoryGenerationTracker()
	}
	return &Service{
		client:      client,
		resolver:    resolver,
		scanner:     scanner,
		generations: generations,
		reports:     reports,
		metrics:     m,
	}
}

// GetProductsForCategory returns the products of the category with the given
// slug in catalog order. A category whose membership cannot be read yields an
// empty slice; a catalog that cannot be read yields an error.
func (s *Service) GetProductsForCategory(ctx context.Context, slug string) ([]domain.ProductSummary, error) {
	selection, err := s.Reconcile(ctx, slug)
	if err != nil {
		return nil, err
	}

	return selection.Result.Products, nil
}

// Reconcile runs one cycle for slug with no stale-response tracking.
func (s *Service) Reconcile(ctx context.Context, slug string) (*Selection, error) {
	category, err := s.lookupCategory(ctx, slug)
	if err != nil {
		return nil, err
	}

	result, err := s.reconcile(ctx, *category, s.client.GetProductsPage)
	if err != nil {
		return nil, err
	}

	return &Selection{
		Category: *category,
		Result:   result,
	}, nil
}

// Select runs a full cycle for slug on behalf of view. Every call starts a new
// generation for the view; if another call for the same view starts before
// this one returns, this one reports ErrSuperseded instead of its result or
// error, and stops fetching catalog pages at the next page boundary.
func (s *Service) Select(ctx context.Context, view, slug string) (*Selection, error) {
	generation, err := s.generations.Next(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("failed to start selection: %w", err)
	}

	selection, err := s.selectGeneration(ctx, view, slug, generation)

	current, checkErr := s.generations.IsCurrent(ctx, view, generation)
	if checkErr != nil {
		return nil, fmt.Errorf("failed to check selection generation: %w", checkErr)
	}
	if !current || errors.Is(err, ErrSuperseded) {
		s.metrics.Superseded.Inc()
		log.Debugf("Selection %d of view %s for %q superseded", generation, view, slug)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	return selection, nil
}

func (s *Service) selectGeneration(ctx context.Context, view, slug string, generation uint64) (*Selection, error) {
	category, err := s.lookupCategory(ctx, slug)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, pageNumber, pageSize int) (*domain.CatalogPage, error) {
		current, err := s.generations.IsCurrent(ctx, view, generation)
		if err != nil {
			return nil, err
		}
		if !current {
			return nil, ErrSuperseded
		}
		return s.client.GetProductsPage(ctx, pageNumber, pageSize)
	}

	result, err := s.reconcile(ctx, *category, fetch)
	if err != nil {
		return nil, err
	}

	return &Selection{
		Category:   *category,
		Result:     result,
		Generation: generation,
	}, nil
}

// LatestReport returns the most recent audit report for the category.
func (s *Service) LatestReport(ctx context.Context, slug string) (*domain.ScanReport, error) {
	if s.reports == nil {
		return nil, ErrReportsDisabled
	}

	category, err := s.lookupCategory(ctx, slug)
	if err != nil {
		return nil, err
	}

	return s.reports.LatestForCategory(ctx, category.ID)
}

func (s *Service) lookupCategory(ctx context.Context, slug string) (*domain.Category, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: empty slug", ErrCategoryNotFound)
	}

	category, err := s.client.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, slug)
		}
		return nil, err
	}

	return category, nil
}

// reconcile resolves membership and scans the catalog for one category.
func (s *Service) reconcile(ctx context.Context, category domain.Category, fetch scanner.PageFetcher) (*domain.ReconciledResult, error) {
	startedAt := time.Now()
	members := s.resolver.Resolve(ctx, category.ID)

	result, err := s.scanner.Scan(ctx, members, fetch)
	if err != nil {
		if !errors.Is(err, ErrSuperseded) {
			s.metrics.Scans.WithLabelValues(string(domain.ScanStatusFailed)).Inc()
			log.Errorf("❌ Catalog scan for %s failed after %d pages: %v", category.Slug, result.PagesFetched, err)
		}
		return result, err
	}

	status := domain.ScanStatusComplete
	if !result.Complete() {
		status = domain.ScanStatusIncomplete
	}
	s.metrics.Scans.WithLabelValues(string(status)).Inc()

	log.Infof("✅ Category %s: %d/%d members matched in %d pages (%s)",
		category.Slug, len(result.Products), result.MembershipSize, result.PagesFetched, time.Since(startedAt).Round(time.Millisecond))

	return result, nil
}
