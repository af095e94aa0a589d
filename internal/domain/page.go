package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultPageSize is the batch size used when walking the product catalog.
const DefaultPageSize = 100

var ErrMalformedPage = errors.New("malformed page payload")

// Page is one page of a paginated listing. The backend is inconsistent about
// the envelope: a bare array, {"items": [...]} or {"data": [...]}, with
// pagination metadata present or not. TotalPages and TotalCount are nil when
// the response did not carry them.
type Page[T any] struct {
	Items      []T  `json:"items"`
	TotalPages *int `json:"totalPages,omitempty"`
	TotalCount *int `json:"totalCount,omitempty"`
}

// CatalogPage is a page of the product listing.
type CatalogPage = Page[ProductSummary]

// CategoryPage is a page of the category listing.
type CategoryPage = Page[Category]

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPage)
	}

	switch data[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPage, err)
		}
		*p = Page[T]{Items: items}
		return nil
	case '{':
	default:
		return fmt.Errorf("%w: unexpected payload %.32q", ErrMalformedPage, data)
	}

	var envelope struct {
		Items           json.RawMessage `json:"items"`
		Data            json.RawMessage `json:"data"`
		TotalPages      json.RawMessage `json:"totalPages"`
		TotalPagesSnake json.RawMessage `json:"total_pages"`
		TotalCount      json.RawMessage `json:"totalCount"`
		TotalCountSnake json.RawMessage `json:"total_count"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	page := Page[T]{}

	// items wins over data whenever it is present, even when empty.
	list := envelope.Items
	if isNull(list) {
		list = envelope.Data
	}
	if !isNull(list) {
		if err := json.Unmarshal(list, &page.Items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPage, err)
		}
	}

	// Metadata that is missing or not a number is treated as absent.
	if n, ok := positiveInt(envelope.TotalPages); ok {
		page.TotalPages = &n
	} else if n, ok := positiveInt(envelope.TotalPagesSnake); ok {
		page.TotalPages = &n
	}
	if n, ok := nonNegativeInt(envelope.TotalCount); ok {
		page.TotalCount = &n
	} else if n, ok := nonNegativeInt(envelope.TotalCountSnake); ok {
		page.TotalCount = &n
	}

	*p = page
	return nil
}

// ResolveTotalPages returns the page count used for loop termination.
// An explicit total page count wins. Otherwise it is derived from the total
// item count, which defaults to the number of items on this page. A zero
// count is read as one full page. The result is never below 1.
//
// Without metadata this assumes the current page is the whole catalog and
// can end a scan early against a backend that omits totals.
func (p *Page[T]) ResolveTotalPages(pageSize int) int {
	if p.TotalPages != nil && *p.TotalPages > 0 {
		return *p.TotalPages
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	count := len(p.Items)
	if p.TotalCount != nil {
		count = *p.TotalCount
	}
	if count == 0 {
		count = pageSize
	}

	return max(1, int(math.Ceil(float64(count)/float64(pageSize))))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func positiveInt(raw json.RawMessage) (int, bool) {
	n, ok := nonNegativeInt(raw)
	return n, ok && n > 0
}

func nonNegativeInt(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f < 0 || math.IsNaN(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Ceil(f)), true
}
