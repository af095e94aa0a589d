// Package membership resolves which product IDs belong to a category.
package membership

import (
	"context"
	"errors"
	"time"

	"storefront/catalog/internal/client"
	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Source reads the raw membership list of a category.
type Source interface {
	GetCategoryProductIDs(ctx context.Context, categoryID domain.Identifier) ([]domain.Identifier, error)
}

// Resolver turns a category into its membership set. Lookup failures are
// absorbed: a category that cannot be resolved shows no products instead of
// breaking the page.
type Resolver struct {
	source  Source
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewResolver(source Source, timeout time.Duration, m *metrics.Metrics) *Resolver {
	if m == nil {
		m = metrics.Noop()
	}
	return &Resolver{
		source:  source,
		timeout: timeout,
		metrics: m,
	}
}

// Resolve always returns a usable set. A 404, a transport or HTTP failure, an
// undecodable body or a timeout all produce an empty set.
func (r *Resolver) Resolve(ctx context.Context, categoryID domain.Identifier) domain.MembershipSet {
	if categoryID.IsZero() {
		log.Warn("Membership requested for an empty category id")
		return domain.NewMembershipSet()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ids, err := r.source.GetCategoryProductIDs(ctx, categoryID)
	if err != nil {
		reason := failureReason(err)
		r.metrics.MembershipFailures.WithLabelValues(reason).Inc()
		if reason == "not_found" {
			log.Debugf("Category %s has no membership list", categoryID)
		} else {
			log.Warnf("⚠️ Membership lookup for category %s failed (%s), showing no products: %v", categoryID, reason, err)
		}
		return domain.NewMembershipSet()
	}

	set := domain.NewMembershipSet(ids...)
	log.Debugf("Category %s has %d members (%d ids returned)", categoryID, set.Len(), len(ids))
	return set
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, client.ErrMalformedResponse):
		return "malformed"
	default:
		return "unavailable"
	}
}
