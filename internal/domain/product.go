package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProductSummary is a catalog entry as listed by the products endpoint.
type ProductSummary struct {
	ID        Identifier      `json:"id"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	ShortDesc string          `json:"shortDesc,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

// UnmarshalJSON accepts the storefront listing's mainImageUrl as ImageURL.
func (p *ProductSummary) UnmarshalJSON(data []byte) error {
	type plain ProductSummary
	var aux struct {
		plain
		MainImageURL string `json:"mainImageUrl"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = ProductSummary(aux.plain)
	if p.ImageURL == "" {
		p.ImageURL = aux.MainImageURL
	}
	return nil
}

// Category is a storefront category as returned by the slug lookup.
type Category struct {
	ID          Identifier `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}
