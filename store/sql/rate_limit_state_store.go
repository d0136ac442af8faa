package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-access-proxy/ratelimit"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// rateLimitStateColumns are rewritten when a (tenant, bucket) row exists.
var rateLimitStateColumns = []string{
	"quota_limit",
	"remaining",
	"reset_at",
	"retry_after_ms",
	"throttled_until",
	"last_status",
	"attempts",
	"metadata",
	"updated_at",
}

// RateLimitStateStore persists ratelimit.State so every process calling the
// same tenant honours one throttle window per bucket.
type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
	now  func() time.Time
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key ratelimit.Key) (ratelimit.State, error) {
	if s == nil || s.repo == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	key, err := rateLimitKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant", "=", key.Tenant),
		repository.SelectBy("bucket", "=", key.Bucket),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return ratelimit.State{}, err
	}
	if len(records) == 0 {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	return records[0].toDomain(), nil
}

// Upsert writes state in one statement; a concurrent writer for the same
// bucket wins or loses whole, never field by field.
func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	key, err := rateLimitKey(state.Key)
	if err != nil {
		return err
	}
	state.Key = key
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now()
	}

	record := newRateLimitStateRecord(state)
	query := s.db.NewInsert().
		Model(record).
		On("CONFLICT (tenant, bucket) DO UPDATE")
	for _, column := range rateLimitStateColumns {
		query = query.Set("? = EXCLUDED.?", bun.Ident(column), bun.Ident(column))
	}
	_, err = query.Exec(ctx)
	return err
}

func newRateLimitStateRecord(state ratelimit.State) *rateLimitStateRecord {
	record := &rateLimitStateRecord{
		ID:             uuid.NewString(),
		Tenant:         state.Key.Tenant,
		Bucket:         state.Key.Bucket,
		QuotaLimit:     state.Limit,
		Remaining:      state.Remaining,
		ResetAt:        utcPointer(state.ResetAt),
		ThrottledUntil: utcPointer(state.ThrottledUntil),
		LastStatus:     state.LastStatus,
		Attempts:       state.Attempts,
		Metadata:       copyAnyMap(state.Metadata),
		CreatedAt:      state.UpdatedAt.UTC(),
		UpdatedAt:      state.UpdatedAt.UTC(),
	}
	if state.RetryAfter != nil && *state.RetryAfter > 0 {
		ms := state.RetryAfter.Milliseconds()
		record.RetryAfterMS = &ms
	}
	return record
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	state := ratelimit.State{
		Key:            ratelimit.Key{Tenant: r.Tenant, Bucket: r.Bucket},
		Limit:          r.QuotaLimit,
		Remaining:      r.Remaining,
		ResetAt:        utcPointer(r.ResetAt),
		ThrottledUntil: utcPointer(r.ThrottledUntil),
		LastStatus:     r.LastStatus,
		Attempts:       r.Attempts,
		UpdatedAt:      r.UpdatedAt.UTC(),
		Metadata:       copyAnyMap(r.Metadata),
	}
	if r.RetryAfterMS != nil && *r.RetryAfterMS > 0 {
		delay := time.Duration(*r.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &delay
	}
	return state
}

func rateLimitKey(key ratelimit.Key) (ratelimit.Key, error) {
	key = key.Normalized()
	if key.Tenant == "" || key.Bucket == "" {
		return ratelimit.Key{}, fmt.Errorf("sqlstore: rate-limit key needs tenant and bucket, got %q", key.String())
	}
	return key, nil
}

func utcPointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
