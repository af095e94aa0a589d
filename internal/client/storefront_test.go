package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront/catalog/internal/config"
	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHosts struct {
	hosts     []string
	current   int
	failovers int32
}

func (s *staticHosts) Current() string { return s.hosts[s.current] }

func (s *staticHosts) Failover(failed string) string {
	atomic.AddInt32(&s.failovers, 1)
	if s.hosts[s.current] == failed {
		s.current = (s.current + 1) % len(s.hosts)
	}
	return s.hosts[s.current]
}

func testStorefrontConfig() config.StorefrontConfig {
	return config.StorefrontConfig{
		APIPrefix:      "/api",
		Timeout:        5,
		RequestTimeout: 5,
		MaxRetries:     0,
		PageSize:       100,
	}
}

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests:  1,
		Interval:     60,
		Timeout:      60,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*storefrontClient, *staticHosts, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	hosts := &staticHosts{hosts: []string{srv.URL}}
	m := metrics.Noop()
	c := NewStorefrontClient(testStorefrontConfig(), testBreakerConfig(), hosts, m).(*storefrontClient)
	return c, hosts, m
}

func TestGetProductsPage_QueryAndDecode(t *testing.T) {
	c, _, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("size"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":7,"name":"<b>Blue</b> &amp; white mug","shortDesc":"<p>Hand made</p>\n<p>in Tbilisi</p>","price":25,"currency":"GEL"}],"total_pages":3}`))
	})

	page, err := c.GetProductsPage(context.Background(), 2, 100)
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.Identifier("7"), page.Items[0].ID)
	assert.Equal(t, "Blue & white mug", page.Items[0].Name)
	assert.Equal(t, "Hand made in Tbilisi", page.Items[0].ShortDesc)
	require.NotNil(t, page.TotalPages)
	assert.Equal(t, 3, *page.TotalPages)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched))
}

func TestGetProductsPage_BareArray(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	})

	page, err := c.GetProductsPage(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestGetProductsPage_Malformed(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"down for maintenance"`))
	})

	_, err := c.GetProductsPage(context.Background(), 1, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, domain.ErrMalformedPage)
}

func TestGetProductsPage_ServerErrorFailsOver(t *testing.T) {
	c, hosts, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetProductsPage(context.Background(), 1, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hosts.failovers))
}

func TestGetCategoryBySlug(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/categories/mugs":
			_, _ = w.Write([]byte(`{"id":"C-1","name":"Mugs","slug":"mugs","description":"<i>Ceramic</i>"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	category, err := c.GetCategoryBySlug(context.Background(), "mugs")
	require.NoError(t, err)
	assert.Equal(t, domain.Identifier("C-1"), category.ID)
	assert.Equal(t, "Ceramic", category.Description)

	_, err = c.GetCategoryBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCategoryBySlug_MissingID(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Mugs"}`))
	})

	_, err := c.GetCategoryBySlug(context.Background(), "mugs")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetCategoryProductIDs(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/categories/C-1/products":
			_, _ = w.Write([]byte(`["ABC-1", 10, "abc-1"]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ids, err := c.GetCategoryProductIDs(context.Background(), "C-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{"ABC-1", "10", "abc-1"}, ids)

	_, err = c.GetCategoryProductIDs(context.Background(), "C-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCategories(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/categories", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(`{"items":[{"id":"c1","slug":"mugs"},{"id":"c2","slug":"plates"}],"totalCount":2}`))
	})

	page, err := c.ListCategories(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "plates", page.Items[1].Slug)
}

func TestCircuitBreaker_OpensOnRepeatedFailures(t *testing.T) {
	var calls int32
	c, _, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		_, err := c.GetProductsPage(context.Background(), 1, 100)
		require.ErrorIs(t, err, ErrHTTPStatus)
	}

	_, err := c.GetProductsPage(context.Background(), 1, 100)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("storefront-api")))
}

func TestCircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		_, err := c.GetCategoryProductIDs(context.Background(), "C-1")
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestGet_RequestTimeout(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetProductsPage(ctx, 1, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
