package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrReportNotFound = errors.New("scan report not found")

// DBTX is the part of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ScanReportRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveScanReport(ctx context.Context, report *domain.ScanReport) error
	LatestForCategory(ctx context.Context, categoryID domain.Identifier) (*domain.ScanReport, error)
}

type scanReportRepository struct {
	db DBTX
}

func NewScanReportRepository(db DBTX) ScanReportRepository {
	return &scanReportRepository{
		db: db,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS category_scan_reports (
	id              TEXT PRIMARY KEY,
	category_id     TEXT NOT NULL,
	category_slug   TEXT NOT NULL,
	status          TEXT NOT NULL,
	membership_size INTEGER NOT NULL,
	matched         INTEGER NOT NULL,
	pages_fetched   INTEGER NOT NULL,
	total_pages     INTEGER NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS category_scan_reports_category_idx
	ON category_scan_reports (category_id, finished_at DESC)`

func (r *scanReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create category_scan_reports: %w", err)
	}
	return nil
}

func (r *scanReportRepository) SaveScanReport(ctx context.Context, report *domain.ScanReport) error {
	query := `
	INSERT INTO category_scan_reports
		(id, category_id, category_slug, status, membership_size, matched,
		 pages_fetched, total_pages, error, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id)
	DO UPDATE SET status = $4, membership_size = $5, matched = $6,
		pages_fetched = $7, total_pages = $8, error = $9, finished_at = $11`
	_, err := r.db.Exec(ctx, query,
		report.ID.String(),
		report.CategoryID.String(),
		report.CategorySlug,
		string(report.Status),
		report.MembershipSize,
		report.Matched,
		report.PagesFetched,
		report.TotalPages,
		report.Error,
		report.StartedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report for category %s: %w", report.CategorySlug, err)
	}

	return nil
}

func (r *scanReportRepository) LatestForCategory(ctx context.Context, categoryID domain.Identifier) (*domain.ScanReport, error) {
	query := `
	SELECT id, category_id, category_slug, status, membership_size, matched,
		pages_fetched, total_pages, error, started_at, finished_at
	FROM category_scan_reports
	WHERE category_id = $1
	ORDER BY finished_at DESC
	LIMIT 1`

	var (
		id, catID, slug, status, scanErr string
		startedAt, finishedAt            time.Time
		report                           domain.ScanReport
	)
	err := r.db.QueryRow(ctx, query, categoryID.String()).Scan(
		&id, &catID, &slug, &status,
		&report.MembershipSize, &report.Matched, &report.PagesFetched, &report.TotalPages,
		&scanErr, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: category %s", ErrReportNotFound, categoryID)
		}
		return nil, fmt.Errorf("failed to load scan report for category %s: %w", categoryID, err)
	}

	report.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid scan report id %q: %w", id, err)
	}
	report.CategoryID = domain.Identifier(catID)
	report.CategorySlug = slug
	report.Status = domain.ScanStatus(status)
	report.Error = scanErr
	report.StartedAt = startedAt
	report.FinishedAt = finishedAt

	return &report, nil
}
