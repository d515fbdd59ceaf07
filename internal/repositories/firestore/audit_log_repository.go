package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/swiftcart/api/internal/domain"
	pfirestore "github.com/swiftcart/api/internal/platform/firestore"
	"github.com/swiftcart/api/internal/repositories"
)

const auditLogsCollection = "auditLogs"

type auditLogDocument struct {
	Actor      string            `firestore:"actor"`
	ActorEmail string            `firestore:"actorEmail,omitempty"`
	Action     string            `firestore:"action"`
	TargetKind string            `firestore:"targetKind"`
	TargetID   string            `firestore:"targetId"`
	Summary    string            `firestore:"summary,omitempty"`
	Metadata   map[string]string `firestore:"metadata,omitempty"`
	CreatedAt  time.Time         `firestore:"createdAt"`
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository struct {
	base *pfirestore.BaseRepository[auditLogDocument]
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[auditLogDocument](provider, auditLogsCollection, nil, nil)
	return &AuditLogRepository{base: base}, nil
}

// Append writes one immutable entry. Entries are never updated afterwards.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.base == nil {
		return errors.New("audit log repository not initialised")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("audit log repository: entry id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	doc := auditLogDocument{
		Actor:      entry.Actor,
		ActorEmail: entry.ActorEmail,
		Action:     entry.Action,
		TargetKind: entry.TargetKind,
		TargetID:   entry.TargetID,
		Summary:    entry.Summary,
		Metadata:   cloneStringMap(entry.Metadata),
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("auditLogs.append", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, errors.New("audit log repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, docID, err := decodeTimeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, fmt.Errorf("audit log repository: invalid page token: %w", err)
		}
		startAfter = []any{createdAt, docID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if kind := strings.TrimSpace(filter.TargetKind); kind != "" {
			q = q.Where("targetKind", "==", kind)
		}
		if target := strings.TrimSpace(filter.TargetID); target != "" {
			q = q.Where("targetId", "==", target)
		}
		if actor := strings.TrimSpace(filter.Actor); actor != "" {
			q = q.Where("actor", "==", actor)
		}
		if action := strings.TrimSpace(filter.Action); action != "" {
			q = q.Where("action", "==", action)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		// ULID document IDs sort chronologically, so the ID tiebreak keeps
		// same-timestamp entries stable.
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextToken = encodeTimeCursorToken(last.Data.CreatedAt, last.ID)
	}

	items := make([]domain.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.AuditLogEntry{
			ID:         doc.ID,
			Actor:      doc.Data.Actor,
			ActorEmail: doc.Data.ActorEmail,
			Action:     doc.Data.Action,
			TargetKind: doc.Data.TargetKind,
			TargetID:   doc.Data.TargetID,
			Summary:    doc.Data.Summary,
			Metadata:   cloneStringMap(doc.Data.Metadata),
			CreatedAt:  doc.Data.CreatedAt,
		})
	}
	return domain.CursorPage[domain.AuditLogEntry]{Items: items, NextPageToken: nextToken}, nil
}
