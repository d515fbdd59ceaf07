package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/platform/auth"
	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/services"
)

// AuditLogHandlers exposes the read side of the audit trail.
type AuditLogHandlers struct {
	authn *auth.Authenticator
	audit services.AuditLogService
}

// NewAuditLogHandlers constructs the audit log handler set.
func NewAuditLogHandlers(authn *auth.Authenticator, audit services.AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{authn: authn, audit: audit}
}

// Routes wires the audit log endpoints onto the provided router.
func (h *AuditLogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/audit-logs", func(sub chi.Router) {
		if h.authn != nil {
			sub.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
		}
		sub.Get("/", h.list)
	})
}

func (h *AuditLogHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query()

	query := services.AuditLogQuery{
		TargetKind: strings.TrimSpace(raw.Get("target_kind")),
		TargetID:   strings.TrimSpace(raw.Get("target_id")),
		Actor:      strings.TrimSpace(raw.Get("actor")),
		Action:     strings.TrimSpace(raw.Get("action")),
	}
	if value := strings.TrimSpace(raw.Get("from")); value != "" {
		ts, err := parseTimeParam(value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be a valid RFC3339 timestamp or date", http.StatusBadRequest))
			return
		}
		query.From = &ts
	}
	if value := strings.TrimSpace(raw.Get("to")); value != "" {
		ts, err := parseTimeParam(value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be a valid RFC3339 timestamp or date", http.StatusBadRequest))
			return
		}
		query.To = &ts
	}
	pageSize, err := parsePageSize(raw.Get("page_size"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(raw.Get("page_token")),
	}

	page, err := h.audit.List(ctx, query)
	if err != nil {
		writeAuditError(ctx, w, err)
		return
	}

	items := make([]auditEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildAuditEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, auditListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

type auditEntryPayload struct {
	ID         string            `json:"id"`
	Actor      string            `json:"actor"`
	ActorEmail string            `json:"actor_email,omitempty"`
	Action     string            `json:"action"`
	TargetKind string            `json:"target_kind,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

func buildAuditEntryPayload(entry domain.AuditLogEntry) auditEntryPayload {
	return auditEntryPayload{
		ID:         entry.ID,
		Actor:      entry.Actor,
		ActorEmail: entry.ActorEmail,
		Action:     entry.Action,
		TargetKind: entry.TargetKind,
		TargetID:   entry.TargetID,
		Summary:    entry.Summary,
		Metadata:   entry.Metadata,
		CreatedAt:  formatTime(entry.CreatedAt),
	}
}

type auditListResponse struct {
	Items         []auditEntryPayload `json:"items"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

func writeAuditError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAuditInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("audit_error", "failed to list audit logs", http.StatusInternalServerError))
	}
}
