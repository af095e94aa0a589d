package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReconciledResult is the subset of the catalog whose identifiers belong to a
// membership set, in catalog traversal order.
type ReconciledResult struct {
	Products       []ProductSummary `json:"products"`
	MembershipSize int              `json:"membership_size"`
	PagesFetched   int              `json:"pages_fetched"`
	TotalPages     int              `json:"total_pages"` // As resolved from the last page fetched
}

// Complete reports whether every member was found. A false value with no
// error means the catalog ended (or claimed to end) before all members
// showed up.
func (r *ReconciledResult) Complete() bool {
	return len(r.Products) >= r.MembershipSize
}

// ScanStatus is the outcome of an audited category scan.
type ScanStatus string

const (
	ScanStatusComplete   ScanStatus = "complete"   // every member found
	ScanStatusIncomplete ScanStatus = "incomplete" // catalog exhausted first
	ScanStatusFailed     ScanStatus = "failed"     // catalog could not be read
)

// ScanReport records one audit run for a category.
type ScanReport struct {
	ID             uuid.UUID  `json:"id"`
	CategoryID     Identifier `json:"category_id"`
	CategorySlug   string     `json:"category_slug"`
	Status         ScanStatus `json:"status"`
	MembershipSize int        `json:"membership_size"`
	Matched        int        `json:"matched"`
	PagesFetched   int        `json:"pages_fetched"`
	TotalPages     int        `json:"total_pages"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

// NewScanReport builds a report from a scan outcome. result may be nil when
// the scan failed before the first page.
func NewScanReport(category Category, result *ReconciledResult, scanErr error, startedAt time.Time) *ScanReport {
	report := &ScanReport{
		ID:           uuid.New(),
		CategoryID:   category.ID,
		CategorySlug: category.Slug,
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}

	if result != nil {
		report.MembershipSize = result.MembershipSize
		report.Matched = len(result.Products)
		report.PagesFetched = result.PagesFetched
		report.TotalPages = result.TotalPages
	}

	switch {
	case scanErr != nil:
		report.Status = ScanStatusFailed
		report.Error = scanErr.Error()
	case result != nil && result.Complete():
		report.Status = ScanStatusComplete
	default:
		report.Status = ScanStatusIncomplete
	}

	return report
}
