package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"storefront/catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeCatalog serves pre-built pages and records which page numbers were asked for.
type fakeCatalog struct {
	pages     map[int]*domain.CatalogPage
	failOn    map[int]error
	requested []int
	sizes     []int
}

func (c *fakeCatalog) fetch(_ context.Context, pageNumber, pageSize int) (*domain.CatalogPage, error) {
	c.requested = append(c.requested, pageNumber)
	c.sizes = append(c.sizes, pageSize)
	if err, ok := c.failOn[pageNumber]; ok {
		return nil, err
	}
	if page, ok := c.pages[pageNumber]; ok {
		return page, nil
	}
	return &domain.CatalogPage{}, nil
}

func products(ids ...string) []domain.ProductSummary {
	out := make([]domain.ProductSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ProductSummary{ID: domain.Identifier(id), Name: "product " + id})
	}
	return out
}

func numbered(from, n int) []domain.ProductSummary {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("p-%d", from+i))
	}
	return products(ids...)
}

func ids(ps []domain.ProductSummary) []domain.Identifier {
	out := make([]domain.Identifier, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func intPtr(n int) *int { return &n }

func TestScan_EmptyMembershipShortCircuits(t *testing.T) {
	catalog := &fakeCatalog{}

	result, err := New(100).Scan(context.Background(), domain.NewMembershipSet(), catalog.fetch)
	require.NoError(t, err)

	assert.Empty(t, catalog.requested)
	assert.NotNil(t, result.Products)
	assert.Empty(t, result.Products)
	assert.Equal(t, 0, result.PagesFetched)
	assert.True(t, result.Complete())
}

func TestScan_CaseInsensitiveMatch(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: products("ABC-1", "xyz-2")},
	}}

	result, err := New(100).Scan(context.Background(), domain.NewMembershipSet("abc-1"), catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []domain.Identifier{"ABC-1"}, ids(result.Products))
}

func TestScan_EarlyTerminationByCount(t *testing.T) {
	page1 := numbered(0, 100)
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: page1, TotalPages: intPtr(3)},
		2: {Items: numbered(100, 100), TotalPages: intPtr(3)},
		3: {Items: numbered(200, 1), TotalPages: intPtr(3)},
	}}
	membership := domain.NewMembershipSet("p-5", "p-42")

	result, err := New(100).Scan(context.Background(), membership, catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, catalog.requested)
	assert.Equal(t, []domain.Identifier{"p-5", "p-42"}, ids(result.Products))
	assert.True(t, result.Complete())
}

func TestScan_TerminationByPageExhaustion(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: products("1", "2"), TotalPages: intPtr(2)},
		2: {Items: products("3", "4"), TotalPages: intPtr(2)},
		3: {Items: products("missing"), TotalPages: intPtr(2)},
	}}
	membership := domain.NewMembershipSet("2", "missing")

	result, err := New(2).Scan(context.Background(), membership, catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, catalog.requested)
	assert.Equal(t, []domain.Identifier{"2"}, ids(result.Products))
	assert.False(t, result.Complete())
	assert.Equal(t, 2, result.TotalPages)
}

func TestScan_ShapeTolerance(t *testing.T) {
	items := `[{"id":11,"name":"eleven"},{"id":"10","name":"ten"},{"id":20,"name":"twenty"}]`
	bodies := map[string]string{
		"bare array": items,
		"items":      `{"items":` + items + `}`,
		"data":       `{"data":` + items + `}`,
	}
	membership := domain.NewMembershipSet("10", "20")

	var results [][]domain.ProductSummary
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			fetch := func(_ context.Context, pageNumber, _ int) (*domain.CatalogPage, error) {
				require.Equal(t, 1, pageNumber)
				var page domain.CatalogPage
				if err := json.Unmarshal([]byte(body), &page); err != nil {
					return nil, err
				}
				return &page, nil
			}

			result, err := New(100).Scan(context.Background(), membership, fetch)
			require.NoError(t, err)
			assert.Equal(t, []domain.Identifier{"10", "20"}, ids(result.Products))
			results = append(results, result.Products)
		})
	}

	require.Len(t, results, 3)
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[1], results[2])
}

func TestScan_CatalogFailurePropagates(t *testing.T) {
	boom := errors.New("connection reset by peer")
	catalog := &fakeCatalog{
		pages: map[int]*domain.CatalogPage{
			1: {Items: products("a", "b"), TotalPages: intPtr(3)},
		},
		failOn: map[int]error{2: boom},
	}

	result, err := New(2).Scan(context.Background(), domain.NewMembershipSet("a", "z"), catalog.fetch)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page 2")
	assert.Equal(t, []int{1, 2}, catalog.requested)
	assert.False(t, result.Complete())
}

func TestScan_EndToEndScenario(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: products("11", "10"), TotalPages: intPtr(2)},
		2: {Items: products("20", "99"), TotalPages: intPtr(2)},
	}}

	result, err := New(2).Scan(context.Background(), domain.NewMembershipSet("10", "20"), catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []domain.Identifier{"10", "20"}, ids(result.Products))
	assert.Equal(t, []int{1, 2}, catalog.requested)
	assert.Equal(t, []int{2, 2}, catalog.sizes)
}

func TestScan_KeepsBackendDuplicates(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: products("A", "a", "b"), TotalPages: intPtr(1)},
	}}

	result, err := New(100).Scan(context.Background(), domain.NewMembershipSet("a", "b", "c"), catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []domain.Identifier{"A", "a", "b"}, ids(result.Products))
	assert.Equal(t, 3, result.MembershipSize)
}

func TestScan_MissingMetadataStopsAfterFirstPage(t *testing.T) {
	// Without totals the first page is taken as the whole catalog.
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: numbered(0, 100)},
		2: {Items: products("deep")},
	}}

	result, err := New(100).Scan(context.Background(), domain.NewMembershipSet("deep"), catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, catalog.requested)
	assert.Empty(t, result.Products)
}

func TestScan_TotalCountDrivesPageCount(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: numbered(0, 2), TotalCount: intPtr(5)},
		2: {Items: numbered(2, 2), TotalCount: intPtr(5)},
		3: {Items: numbered(4, 1), TotalCount: intPtr(5)},
	}}

	result, err := New(2).Scan(context.Background(), domain.NewMembershipSet("p-4", "p-404"), catalog.fetch)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, catalog.requested)
	assert.Equal(t, []domain.Identifier{"p-4"}, ids(result.Products))
}

func TestScan_SkipsItemsWithoutID(t *testing.T) {
	catalog := &fakeCatalog{pages: map[int]*domain.CatalogPage{
		1: {Items: []domain.ProductSummary{{Name: "ghost"}, {ID: "1"}}, TotalPages: intPtr(1)},
	}}

	result, err := New(100).Scan(context.Background(), domain.NewMembershipSet("1"), catalog.fetch)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{"1"}, ids(result.Products))
}

func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	catalog := &fakeCatalog{}

	_, err := New(100).Scan(ctx, domain.NewMembershipSet("1"), catalog.fetch)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, catalog.requested)
}

func TestNew_DefaultPageSize(t *testing.T) {
	assert.Equal(t, domain.DefaultPageSize, New(0).PageSize())
	assert.Equal(t, 25, New(25).PageSize())
}
