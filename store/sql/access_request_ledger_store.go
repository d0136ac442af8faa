package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access-proxy/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultLedgerListLimit bounds ListByIdentity when the caller passes no limit.
const DefaultLedgerListLimit = 50

// AccessRequestLedgerStore persists one row per orchestrated access request
// submission, successful or not.
type AccessRequestLedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*accessRequestRecord]
	now  func() time.Time
}

func NewAccessRequestLedgerStore(db *bun.DB) (*AccessRequestLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*accessRequestRecord](db, accessRequestHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid access request ledger repository wiring: %w", err)
		}
	}
	return &AccessRequestLedgerStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *AccessRequestLedgerStore) Record(
	ctx context.Context,
	entry core.AccessRequestRecord,
) (core.AccessRequestRecord, error) {
	if s == nil || s.repo == nil {
		return core.AccessRequestRecord{}, fmt.Errorf("sqlstore: access request ledger store is not configured")
	}
	record, err := s.newRecord(entry)
	if err != nil {
		return core.AccessRequestRecord{}, err
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.AccessRequestRecord{}, err
	}
	return created.toDomain(), nil
}

// ListByIdentity returns the newest submissions first.
func (s *AccessRequestLedgerStore) ListByIdentity(
	ctx context.Context,
	identityID string,
	limit int,
) ([]core.AccessRequestRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: access request ledger store is not configured")
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, fmt.Errorf("sqlstore: identity id is required")
	}
	if limit <= 0 {
		limit = DefaultLedgerListLimit
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("identity_id", "=", identityID),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.AccessRequestRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *AccessRequestLedgerStore) newRecord(entry core.AccessRequestRecord) (*accessRequestRecord, error) {
	identityID := strings.TrimSpace(entry.IdentityID)
	if identityID == "" {
		return nil, fmt.Errorf("sqlstore: ledger identity id is required")
	}
	if err := entry.RequestType.Validate(); err != nil {
		return nil, err
	}
	status := strings.TrimSpace(string(entry.Status))
	if status == "" {
		return nil, fmt.Errorf("sqlstore: ledger status is required")
	}

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	entitlementIDs := make([]string, 0, len(entry.EntitlementIDs))
	for _, entitlementID := range entry.EntitlementIDs {
		if trimmed := strings.TrimSpace(entitlementID); trimmed != "" {
			entitlementIDs = append(entitlementIDs, trimmed)
		}
	}

	return &accessRequestRecord{
		ID:             id,
		IdentityID:     identityID,
		RequestType:    string(entry.RequestType),
		EntitlementIDs: entitlementIDs,
		Comment:        entry.Comment,
		Attempts:       entry.Attempts,
		Status:         status,
		ResponseID:     strings.TrimSpace(entry.ResponseID),
		ResponseStatus: strings.TrimSpace(entry.ResponseStatus),
		Error:          entry.Error,
		CreatedAt:      createdAt,
	}, nil
}

func (r *accessRequestRecord) toDomain() core.AccessRequestRecord {
	if r == nil {
		return core.AccessRequestRecord{}
	}
	return core.AccessRequestRecord{
		ID:             r.ID,
		IdentityID:     r.IdentityID,
		RequestType:    core.AccessRequestType(r.RequestType),
		EntitlementIDs: append([]string(nil), r.EntitlementIDs...),
		Comment:        r.Comment,
		Attempts:       r.Attempts,
		Status:         core.LedgerStatus(r.Status),
		ResponseID:     r.ResponseID,
		ResponseStatus: r.ResponseStatus,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
