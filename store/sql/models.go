package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type accessRequestRecord struct {
	bun.BaseModel `bun:"table:access_request_ledger,alias:arl"`

	ID             string    `bun:"id,pk"`
	IdentityID     string    `bun:"identity_id,notnull"`
	RequestType    string    `bun:"request_type,notnull"`
	EntitlementIDs []string  `bun:"entitlement_ids,type:jsonb,notnull"`
	Comment        string    `bun:"comment,notnull"`
	Attempts       int       `bun:"attempts,notnull"`
	Status         string    `bun:"status,notnull"`
	ResponseID     string    `bun:"response_id,notnull"`
	ResponseStatus string    `bun:"response_status,notnull"`
	Error          string    `bun:"error,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:access_rate_limit_state,alias:arls"`

	ID             string         `bun:"id,pk"`
	Tenant         string         `bun:"tenant,notnull"`
	Bucket         string         `bun:"bucket,notnull"`
	QuotaLimit     int            `bun:"quota_limit,notnull"`
	Remaining      int            `bun:"remaining,notnull"`
	ResetAt        *time.Time     `bun:"reset_at,nullzero"`
	RetryAfterMS   *int64         `bun:"retry_after_ms"`
	ThrottledUntil *time.Time     `bun:"throttled_until,nullzero"`
	LastStatus     int            `bun:"last_status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
