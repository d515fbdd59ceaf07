package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/services"
)

func registerAuditLogs(audit services.AuditLogService) func(chi.Router) {
	h := NewAuditLogHandlers(nil, audit)
	return h.Routes
}

func TestAuditLogListForwardsQuery(t *testing.T) {
	var gotQuery services.AuditLogQuery
	audit := &auditServiceStub{
		list: func(ctx context.Context, query services.AuditLogQuery) (domain.CursorPage[services.AuditLogEntry], error) {
			gotQuery = query
			return domain.CursorPage[services.AuditLogEntry]{
				Items: []services.AuditLogEntry{
					{
						ID:         "aud_01",
						Actor:      "staff-1",
						Action:     "order.transition",
						TargetKind: "order",
						TargetID:   "ord_01SAMPLE",
						Summary:    "transitioned order SC-2025-000042 to Approved",
						CreatedAt:  handlerTestNow,
					},
				},
				NextPageToken: "tok-2",
			}, nil
		},
	}

	target := "/audit-logs?target_kind=order&target_id=ord_01SAMPLE&actor=staff-1&action=order.transition&from=2025-03-01&page_size=25"
	rec := doRequest(t, registerAuditLogs(audit), staffIdentity(), http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if gotQuery.TargetKind != "order" || gotQuery.TargetID != "ord_01SAMPLE" {
		t.Errorf("target filter = %+v", gotQuery)
	}
	if gotQuery.Actor != "staff-1" || gotQuery.Action != "order.transition" {
		t.Errorf("actor filter = %+v", gotQuery)
	}
	if gotQuery.From == nil || gotQuery.From.Format("2006-01-02") != "2025-03-01" {
		t.Errorf("from = %v", gotQuery.From)
	}
	if gotQuery.Pagination.PageSize != 25 {
		t.Errorf("page size = %d", gotQuery.Pagination.PageSize)
	}

	var resp struct {
		Items []struct {
			ID        string `json:"id"`
			Action    string `json:"action"`
			CreatedAt string `json:"created_at"`
		} `json:"items"`
		NextPageToken string `json:"next_page_token"`
	}
	decodeResponse(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != "aud_01" || resp.Items[0].CreatedAt != "2025-03-10T12:00:00Z" {
		t.Errorf("items = %+v", resp.Items)
	}
	if resp.NextPageToken != "tok-2" {
		t.Errorf("next page token = %q", resp.NextPageToken)
	}
}

func TestAuditLogListRejectsBadTimestamp(t *testing.T) {
	rec := doRequest(t, registerAuditLogs(&auditServiceStub{}), staffIdentity(), http.MethodGet, "/audit-logs?to=notatime", nil)
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestAuditLogListMapsInvalidInput(t *testing.T) {
	audit := &auditServiceStub{
		list: func(ctx context.Context, query services.AuditLogQuery) (domain.CursorPage[services.AuditLogEntry], error) {
			return domain.CursorPage[services.AuditLogEntry]{}, services.ErrAuditInvalidInput
		},
	}
	rec := doRequest(t, registerAuditLogs(audit), staffIdentity(), http.MethodGet, "/audit-logs", nil)
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}
