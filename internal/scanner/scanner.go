// Package scanner walks the paginated product catalog and collects the
// products that belong to a membership set.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"storefront/catalog/internal/domain"

	log "github.com/sirupsen/logrus"
)

// ErrCatalogUnavailable marks a scan aborted because a catalog page could not
// be read. Callers must not present the partial result as complete.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// PageFetcher returns one page of the catalog. Page numbers start at 1.
type PageFetcher func(ctx context.Context, pageNumber, pageSize int) (*domain.CatalogPage, error)

type Scanner struct {
	pageSize int
}

func New(pageSize int) *Scanner {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &Scanner{pageSize: pageSize}
}

func (s *Scanner) PageSize() int {
	return s.pageSize
}

// Scan fetches catalog pages in ascending order, one at a time, keeping every
// item whose normalized ID is in membership. It stops after the last page
// (as reported or derived from that page's metadata) or as soon as the number
// of matches reaches the size of the set, whichever comes first.
//
// Duplicates served by the backend are kept. An empty set returns an empty
// result without fetching anything.
func (s *Scanner) Scan(ctx context.Context, membership domain.MembershipSet, fetch PageFetcher) (*domain.ReconciledResult, error) {
	result := &domain.ReconciledResult{
		Products:       make([]domain.ProductSummary, 0),
		MembershipSize: membership.Len(),
	}

	if membership.IsEmpty() {
		return result, nil
	}

	for pageNumber := 1; ; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: scan stopped before page %d: %w", ErrCatalogUnavailable, pageNumber, err)
		}

		page, err := fetch(ctx, pageNumber, s.pageSize)
		if err != nil {
			return result, fmt.Errorf("%w: page %d: %w", ErrCatalogUnavailable, pageNumber, err)
		}
		if page == nil {
			page = &domain.CatalogPage{}
		}
		result.PagesFetched++

		for _, item := range page.Items {
			if item.ID.IsZero() {
				continue
			}
			if membership.Has(item.ID) {
				result.Products = append(result.Products, item)
			}
		}

		result.TotalPages = page.ResolveTotalPages(s.pageSize)

		log.Debugf("Scanned catalog page %d/%d: %d items, %d/%d matched",
			pageNumber, result.TotalPages, len(page.Items), len(result.Products), result.MembershipSize)

		if pageNumber+1 > result.TotalPages || len(result.Products) >= result.MembershipSize {
			break
		}
	}

	return result, nil
}
