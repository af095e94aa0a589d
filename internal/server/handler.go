package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storefront/catalog/internal/client"
	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/repository"
	"storefront/catalog/internal/scanner"
	"storefront/catalog/internal/service"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// ViewHeader names the client view a request belongs to. Requests carrying
// it take part in stale-response suppression for that view.
const ViewHeader = "X-View-ID"

type CatalogService interface {
	Reconcile(ctx context.Context, slug string) (*service.Selection, error)
	Select(ctx context.Context, view, slug string) (*service.Selection, error)
	LatestReport(ctx context.Context, slug string) (*domain.ScanReport, error)
}

type CategoryHandler struct {
	catalog CatalogService
}

func NewCategoryHandler(catalog CatalogService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

type productsResponse struct {
	Category   domain.Category         `json:"category"`
	Items      []domain.ProductSummary `json:"items"`
	Complete   bool                    `json:"complete"`
	Generation uint64                  `json:"generation,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetProducts handles GET /api/categories/{slug}/products
func (h *CategoryHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var (
		selection *service.Selection
		err       error
	)
	if view := r.Header.Get(ViewHeader); view != "" {
		selection, err = h.catalog.Select(r.Context(), view, slug)
	} else {
		selection, err = h.catalog.Reconcile(r.Context(), slug)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, productsResponse{
		Category:   selection.Category,
		Items:      selection.Result.Products,
		Complete:   selection.Result.Complete(),
		Generation: selection.Generation,
	})
}

// GetReport handles GET /api/categories/{slug}/report
func (h *CategoryHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.catalog.LatestReport(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrCategoryNotFound):
		status, message = http.StatusNotFound, "category not found"
	case errors.Is(err, repository.ErrReportNotFound):
		status, message = http.StatusNotFound, "no scan report for category"
	case errors.Is(err, service.ErrSuperseded):
		status, message = http.StatusConflict, "superseded by a newer selection"
	case errors.Is(err, service.ErrReportsDisabled):
		status, message = http.StatusNotImplemented, "scan reports are not configured"
	case errors.Is(err, scanner.ErrCatalogUnavailable):
		status, message = http.StatusBadGateway, "catalog unavailable"
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, client.ErrHTTPStatus):
		status, message = http.StatusBadGateway, "storefront unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "timed out"
	}

	if status >= http.StatusInternalServerError {
		log.Errorf("❌ %s %s: %v", r.Method, r.URL.Path, err)
	}

	writeJSON(w, status, errorResponse{Error: message})
}
