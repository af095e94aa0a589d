package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront/catalog/internal/config"
	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/metrics"
	"storefront/catalog/internal/upstream"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type StorefrontClient interface {
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	GetCategoryProductIDs(ctx context.Context, categoryID domain.Identifier) ([]domain.Identifier, error)
	GetProductsPage(ctx context.Context, pageNumber, pageSize int) (*domain.CatalogPage, error)
	ListCategories(ctx context.Context, pageNumber, pageSize int) (*domain.CategoryPage, error)
}

type storefrontClient struct {
	rl         ratelimit.Limiter
	config     config.StorefrontConfig
	httpClient *resty.Client
	decoder    *catalogDecoder
	hosts      upstream.HostSupplier
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *metrics.Metrics
}

func NewStorefrontClient(cfg config.StorefrontConfig, breakerCfg config.BreakerConfig, hosts upstream.HostSupplier, m *metrics.Metrics) StorefrontClient {
	if m == nil {
		m = metrics.Noop()
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "storefront-catalog/1.0")

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	const breakerName = "storefront-api"
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    time.Duration(breakerCfg.Interval) * time.Second,
		Timeout:     time.Duration(breakerCfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerCfg.FailureRatio
		},
		// A missing resource or a caller giving up says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.Warnf("🚫 Circuit breaker %s opened, storefront requests disabled for %ds", name, breakerCfg.Timeout)
			} else {
				log.Infof("Circuit breaker %s: %s -> %s", name, from, to)
			}
			m.SetBreakerState(name, to)
		},
	}
	m.SetBreakerState(breakerName, gobreaker.StateClosed)

	return &storefrontClient{
		rl:         rl,
		config:     cfg,
		httpClient: client,
		decoder:    newCatalogDecoder(),
		hosts:      hosts,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		metrics:    m,
	}
}

func (c *storefrontClient) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	body, err := c.fetchJSON(ctx, "/categories/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category %q: %w", slug, err)
	}

	category, err := c.decoder.DecodeCategory(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode category %q: %w", slug, err)
	}

	return category, nil
}

func (c *storefrontClient) GetCategoryProductIDs(ctx context.Context, categoryID domain.Identifier) ([]domain.Identifier, error) {
	path := fmt.Sprintf("/categories/%s/products", url.PathEscape(categoryID.String()))

	body, err := c.fetchJSON(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products of category %s: %w", categoryID, err)
	}

	ids, err := c.decoder.DecodeIdentifiers(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode products of category %s: %w", categoryID, err)
	}

	return ids, nil
}

func (c *storefrontClient) GetProductsPage(ctx context.Context, pageNumber, pageSize int) (*domain.CatalogPage, error) {
	body, err := c.fetchJSON(ctx, "/products", pageQuery(pageNumber, pageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog page %d: %w", pageNumber, err)
	}
	c.metrics.PagesFetched.Inc()

	page, err := c.decoder.DecodeCatalogPage(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog page %d: %w", pageNumber, err)
	}

	log.Debugf("Fetched catalog page %d with %d items", pageNumber, len(page.Items))
	return page, nil
}

func (c *storefrontClient) ListCategories(ctx context.Context, pageNumber, pageSize int) (*domain.CategoryPage, error) {
	body, err := c.fetchJSON(ctx, "/categories", pageQuery(pageNumber, pageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category page %d: %w", pageNumber, err)
	}

	page, err := c.decoder.DecodeCategoryPage(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode category page %d: %w", pageNumber, err)
	}

	return page, nil
}

func pageQuery(pageNumber, pageSize int) map[string]string {
	return map[string]string{
		"page": strconv.Itoa(pageNumber),
		"size": strconv.Itoa(pageSize),
	}
}

func (c *storefrontClient) fetchJSON(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, path, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Debugf("🚫 Request to %s blocked by circuit breaker", path)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}

func (c *storefrontClient) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	c.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeoutDuration())
	defer cancel()

	host := c.hosts.Current()
	endpoint := host + c.config.APIPrefix + path

	resp, err := c.httpClient.R().
		SetContext(reqCtx).
		SetQueryParams(query).
		Get(endpoint)

	if err != nil {
		// Check if this is a context cancellation from the parent context
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		c.hosts.Failover(host)
		return nil, fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.IsError():
		if resp.StatusCode() >= http.StatusInternalServerError {
			c.hosts.Failover(host)
		}
		return nil, fmt.Errorf("%w: %s from %s", ErrHTTPStatus, resp.Status(), endpoint)
	}

	return []byte(resp.String()), nil
}
