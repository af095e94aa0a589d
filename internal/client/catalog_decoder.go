package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"storefront/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// catalogDecoder turns storefront API bodies into domain values. Names and
// descriptions are entered through the admin console's rich-text inputs and
// may carry markup or entities; they are reduced to plain text here.
type catalogDecoder struct{}

func newCatalogDecoder() *catalogDecoder {
	return &catalogDecoder{}
}

func (d *catalogDecoder) DecodeCatalogPage(body []byte) (*domain.CatalogPage, error) {
	var page domain.CatalogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: catalog page: %w", ErrMalformedResponse, err)
	}

	for i := range page.Items {
		page.Items[i].Name = plainText(page.Items[i].Name)
		page.Items[i].ShortDesc = plainText(page.Items[i].ShortDesc)
	}

	log.Debugf("Decoded catalog page with %d items", len(page.Items))
	return &page, nil
}

func (d *catalogDecoder) DecodeCategoryPage(body []byte) (*domain.CategoryPage, error) {
	var page domain.CategoryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: category page: %w", ErrMalformedResponse, err)
	}

	for i := range page.Items {
		cleanCategory(&page.Items[i])
	}

	return &page, nil
}

func (d *catalogDecoder) DecodeCategory(body []byte) (*domain.Category, error) {
	var category domain.Category
	if err := json.Unmarshal(body, &category); err != nil {
		return nil, fmt.Errorf("%w: category: %w", ErrMalformedResponse, err)
	}
	if category.ID.IsZero() {
		return nil, fmt.Errorf("%w: category without id", ErrMalformedResponse)
	}

	cleanCategory(&category)
	return &category, nil
}

func (d *catalogDecoder) DecodeIdentifiers(body []byte) ([]domain.Identifier, error) {
	ids, err := domain.ParseIdentifiers(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return ids, nil
}

func cleanCategory(c *domain.Category) {
	c.Name = plainText(c.Name)
	c.Description = plainText(c.Description)
}

// plainText strips tags, decodes entities and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		log.Debugf("Keeping raw text, failed to parse markup: %v", err)
		return strings.TrimSpace(s)
	}

	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
