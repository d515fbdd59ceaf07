package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

// ErrAuditInvalidInput signals a malformed audit record or query.
var ErrAuditInvalidInput = errors.New("audit: invalid input")

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type auditLogService struct {
	repo  repositories.AuditLogRepository
	clock func() time.Time
	newID func() string
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("audit log service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &auditLogService{
		repo:  deps.Repository,
		clock: func() time.Time { return clock().UTC() },
		newID: idGen,
	}, nil
}

// Record persists one audit entry after sanitising free-form fields.
func (s *auditLogService) Record(ctx context.Context, cmd RecordAuditEntryCommand) error {
	actor := sanitizeText(cmd.Actor, 160)
	action := sanitizeText(cmd.Action, 120)
	if actor == "" {
		return fmt.Errorf("%w: actor is required", ErrAuditInvalidInput)
	}
	if action == "" {
		return fmt.Errorf("%w: action is required", ErrAuditInvalidInput)
	}

	entry := domain.AuditLogEntry{
		ID:         s.newID(),
		Actor:      actor,
		ActorEmail: sanitizeText(cmd.ActorEmail, 160),
		Action:     action,
		TargetKind: sanitizeText(cmd.TargetKind, 80),
		TargetID:   sanitizeText(cmd.TargetID, 160),
		Summary:    sanitizeText(cmd.Summary, 512),
		Metadata:   sanitizeMetadata(cmd.Metadata),
		CreatedAt:  s.clock(),
	}
	return s.repo.Append(ctx, entry)
}

// List delegates to the repository to retrieve paginated audit logs.
func (s *auditLogService) List(ctx context.Context, query AuditLogQuery) (domain.CursorPage[AuditLogEntry], error) {
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return domain.CursorPage[AuditLogEntry]{}, fmt.Errorf("%w: window start is after its end", ErrAuditInvalidInput)
	}
	return s.repo.List(ctx, repositories.AuditLogFilter{
		TargetKind: strings.TrimSpace(query.TargetKind),
		TargetID:   strings.TrimSpace(query.TargetID),
		Actor:      strings.TrimSpace(query.Actor),
		Action:     strings.TrimSpace(query.Action),
		DateRange:  domain.RangeQuery[time.Time]{From: query.From, To: query.To},
		Pagination: query.Pagination,
	})
}

func sanitizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for key, value := range metadata {
		trimmedKey := sanitizeText(key, 80)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = sanitizeText(value, 512)
	}
	return result
}

// sanitizeText trims whitespace, strips control characters, and truncates
// to the limit.
func sanitizeText(input string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	var builder strings.Builder
	for _, r := range input {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		builder.WriteRune(r)
		if builder.Len() >= limit {
			break
		}
	}
	return builder.String()
}
