package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/platform/auth"
	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/services"
)

// AnalyticsHandlers exposes the order analytics endpoints for the admin
// dashboard.
type AnalyticsHandlers struct {
	authn     *auth.Authenticator
	analytics services.AnalyticsService
	// exportEnabled gates the CSV export endpoint behind a feature flag.
	exportEnabled bool
}

// NewAnalyticsHandlers constructs the analytics handler set.
func NewAnalyticsHandlers(authn *auth.Authenticator, analytics services.AnalyticsService, exportEnabled bool) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		authn:         authn,
		analytics:     analytics,
		exportEnabled: exportEnabled,
	}
}

// Routes wires the analytics endpoints onto the provided router.
func (h *AnalyticsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/analytics", func(sub chi.Router) {
		if h.authn != nil {
			sub.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
		}
		sub.Get("/orders", h.summarize)
		sub.Post("/orders:export", h.export)
	})
}

func (h *AnalyticsHandlers) summarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query, err := parseAnalyticsQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	summary, err := h.analytics.Summarize(ctx, query)
	if err != nil {
		writeAnalyticsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildSummaryPayload(summary))
}

func (h *AnalyticsHandlers) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.exportEnabled {
		httpx.WriteError(ctx, w, httpx.NewError("export_disabled", "analytics export is disabled", http.StatusForbidden))
		return
	}

	query, err := parseAnalyticsQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	export, err := h.analytics.Export(ctx, query)
	if err != nil {
		writeAnalyticsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, analyticsExportPayload{
		ObjectPath:  export.ObjectPath,
		DownloadURL: export.DownloadURL,
		ExpiresAt:   formatTime(export.ExpiresAt),
		RowCount:    export.RowCount,
	})
}

func parseAnalyticsQuery(r *http.Request) (services.AnalyticsQuery, error) {
	raw := r.URL.Query()
	var query services.AnalyticsQuery

	if value := strings.TrimSpace(raw.Get("from")); value != "" {
		ts, err := parseTimeParam(value)
		if err != nil {
			return services.AnalyticsQuery{}, errors.New("from must be a valid RFC3339 timestamp or date")
		}
		query.From = &ts
	}
	if value := strings.TrimSpace(raw.Get("to")); value != "" {
		ts, err := parseTimeParam(value)
		if err != nil {
			return services.AnalyticsQuery{}, errors.New("to must be a valid RFC3339 timestamp or date")
		}
		query.To = &ts
	}
	if value := strings.TrimSpace(raw.Get("top")); value != "" {
		top, err := strconv.Atoi(value)
		if err != nil || top < 0 {
			return services.AnalyticsQuery{}, errors.New("top must be a non-negative integer")
		}
		query.TopN = top
	}
	return query, nil
}

type analyticsSummaryPayload struct {
	From         string                   `json:"from"`
	To           string                   `json:"to"`
	OrderCount   int                      `json:"order_count"`
	Revenue      float64                  `json:"revenue"`
	ByStatus     []statusBucketPayload    `json:"by_status"`
	TopProducts  []productStatPayload     `json:"top_products"`
	TopCustomers []customerStatPayload    `json:"top_customers"`
	ByDay        []dailyStatPayload       `json:"by_day"`
}

type statusBucketPayload struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type productStatPayload struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

type customerStatPayload struct {
	CustomerID string  `json:"customer_id"`
	Name       string  `json:"name,omitempty"`
	Email      string  `json:"email,omitempty"`
	Orders     int     `json:"orders"`
	Spend      float64 `json:"spend"`
}

type dailyStatPayload struct {
	Day     string  `json:"day"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type analyticsExportPayload struct {
	ObjectPath  string `json:"object_path"`
	DownloadURL string `json:"download_url"`
	ExpiresAt   string `json:"expires_at"`
	RowCount    int    `json:"row_count"`
}

func buildSummaryPayload(summary services.AnalyticsSummary) analyticsSummaryPayload {
	payload := analyticsSummaryPayload{
		From:         formatTime(summary.From),
		To:           formatTime(summary.To),
		OrderCount:   summary.OrderCount,
		Revenue:      summary.Revenue,
		ByStatus:     make([]statusBucketPayload, 0, len(summary.ByStatus)),
		TopProducts:  make([]productStatPayload, 0, len(summary.TopProducts)),
		TopCustomers: make([]customerStatPayload, 0, len(summary.TopCustomers)),
		ByDay:        make([]dailyStatPayload, 0, len(summary.ByDay)),
	}
	for _, bucket := range summary.ByStatus {
		payload.ByStatus = append(payload.ByStatus, statusBucketPayload{
			Status: string(bucket.Status),
			Count:  bucket.Count,
			Amount: bucket.Amount,
		})
	}
	for _, stat := range summary.TopProducts {
		payload.TopProducts = append(payload.TopProducts, productStatPayload{
			ProductID: stat.ProductID,
			Name:      stat.Name,
			Quantity:  stat.Quantity,
			Revenue:   stat.Revenue,
		})
	}
	for _, stat := range summary.TopCustomers {
		payload.TopCustomers = append(payload.TopCustomers, customerStatPayload{
			CustomerID: stat.CustomerID,
			Name:       stat.Name,
			Email:      stat.Email,
			Orders:     stat.Orders,
			Spend:      stat.Spend,
		})
	}
	for _, stat := range summary.ByDay {
		payload.ByDay = append(payload.ByDay, dailyStatPayload{
			Day:     stat.Day,
			Orders:  stat.Orders,
			Revenue: stat.Revenue,
		})
	}
	return payload
}

func writeAnalyticsError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAnalyticsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderStore):
		httpx.WriteError(ctx, w, httpx.NewError("order_store_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("analytics_error", "failed to build analytics", http.StatusInternalServerError))
	}
}
