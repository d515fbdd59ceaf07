package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

func newAuditLogServiceForTest(t *testing.T, repo repositories.AuditLogRepository) AuditLogService {
	t.Helper()
	svc, err := NewAuditLogService(AuditLogServiceDeps{
		Repository:  repo,
		Clock:       func() time.Time { return testNow },
		IDGenerator: func() string { return "01AUDITULID" },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc
}

func TestAuditRecordSanitizesAndAppends(t *testing.T) {
	var appended *domain.AuditLogEntry
	repo := &auditLogRepoStub{
		appendFn: func(_ context.Context, entry domain.AuditLogEntry) error {
			appended = &entry
			return nil
		},
	}
	svc := newAuditLogServiceForTest(t, repo)

	err := svc.Record(context.Background(), RecordAuditEntryCommand{
		Actor:      "  admin-1  ",
		ActorEmail: "admin@example.com",
		Action:     "order.transition",
		TargetKind: "order",
		TargetID:   "ord_01",
		Summary:    "approved\x00 order",
		Metadata:   map[string]string{"from": "Placed", "to": "Approved"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appended == nil {
		t.Fatalf("expected an appended entry")
	}
	if appended.ID != "01AUDITULID" {
		t.Errorf("unexpected id %s", appended.ID)
	}
	if appended.Actor != "admin-1" {
		t.Errorf("expected trimmed actor, got %q", appended.Actor)
	}
	if strings.Contains(appended.Summary, "\x00") {
		t.Errorf("expected control characters stripped, got %q", appended.Summary)
	}
	if !appended.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected timestamp %v", appended.CreatedAt)
	}
	if appended.Metadata["from"] != "Placed" {
		t.Errorf("expected metadata to survive, got %v", appended.Metadata)
	}
}

func TestAuditRecordRequiresActorAndAction(t *testing.T) {
	svc := newAuditLogServiceForTest(t, &auditLogRepoStub{})

	if err := svc.Record(context.Background(), RecordAuditEntryCommand{Action: "order.transition"}); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("expected ErrAuditInvalidInput for missing actor, got %v", err)
	}
	if err := svc.Record(context.Background(), RecordAuditEntryCommand{Actor: "admin-1"}); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("expected ErrAuditInvalidInput for missing action, got %v", err)
	}
}

func TestAuditListPassesFilter(t *testing.T) {
	var seen repositories.AuditLogFilter
	repo := &auditLogRepoStub{
		list: func(_ context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
			seen = filter
			return domain.CursorPage[domain.AuditLogEntry]{}, nil
		},
	}
	svc := newAuditLogServiceForTest(t, repo)

	from := testNow.Add(-24 * time.Hour)
	if _, err := svc.List(context.Background(), AuditLogQuery{
		TargetKind: " order ",
		TargetID:   "ord_01",
		Actor:      "admin-1",
		From:       &from,
		Pagination: Pagination{PageSize: 20},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.TargetKind != "order" || seen.TargetID != "ord_01" || seen.Actor != "admin-1" {
		t.Errorf("unexpected filter %+v", seen)
	}
	if seen.DateRange.From == nil || !seen.DateRange.From.Equal(from) {
		t.Errorf("expected the window start to be forwarded")
	}
	if seen.Pagination.PageSize != 20 {
		t.Errorf("expected pagination to be forwarded, got %+v", seen.Pagination)
	}
}

func TestAuditListRejectsInvertedWindow(t *testing.T) {
	svc := newAuditLogServiceForTest(t, &auditLogRepoStub{})

	from := testNow
	to := testNow.Add(-time.Hour)
	if _, err := svc.List(context.Background(), AuditLogQuery{From: &from, To: &to}); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("expected ErrAuditInvalidInput, got %v", err)
	}
}
