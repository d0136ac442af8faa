package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-access-proxy/core"
)

// Config wires the resolver. A zero Policy falls back to five lookups one
// minute apart.
type Config struct {
	Searcher core.IdentitySearcher
	Sleeper  core.Sleeper
	Policy   core.RetryPolicy
	Logger   core.Logger
}

// Resolver finds identity records in the governance backend. Newly
// provisioned identities can take minutes to become searchable, so the create
// path polls until the record shows up.
type Resolver struct {
	searcher core.IdentitySearcher
	sleeper  core.Sleeper
	policy   core.RetryPolicy
	logger   core.Logger
}

func NewResolver(cfg Config) *Resolver {
	policy := cfg.Policy
	if policy.MaxAttempts < 1 {
		policy = core.IdentityResolutionPolicy()
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = core.TimerSleeper{}
	}
	return &Resolver{
		searcher: cfg.Searcher,
		sleeper:  sleeper,
		policy:   policy,
		logger:   cfg.Logger,
	}
}

func (r *Resolver) Policy() core.RetryPolicy {
	if r == nil {
		return core.RetryPolicy{}
	}
	return r.policy
}

// ResolveForCreate looks the identity up by exact name, waiting the policy
// delay between misses. Lookup failures other than absence are returned
// without further attempts.
func (r *Resolver) ResolveForCreate(ctx context.Context, name string) (core.Identity, error) {
	if err := r.ready(); err != nil {
		return core.Identity{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Identity{}, badKey("resolve_identity_for_create")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := core.IdentityQuery{Field: core.IdentityFieldNameExact, Value: name}
	identity, attempts, err := core.Retry(ctx, r.policy, r.sleeper,
		func(ctx context.Context, _ int) (core.Identity, error) {
			return r.lookup(ctx, query)
		},
		core.RetryIf(func(err error) bool { return errors.Is(err, core.ErrIdentityAbsent) }),
		core.OnRetry(func(attempt int, delay time.Duration, _ error) {
			r.debug(ctx, "identity not found, retrying",
				"identity_name", name,
				"attempt", attempt,
				"delay", delay.String(),
			)
		}),
	)
	if err == nil {
		return identity, nil
	}
	if errors.Is(err, core.ErrIdentityAbsent) {
		return core.Identity{}, core.IdentityNotFoundError(name, attempts)
	}
	return core.Identity{}, err
}

// ResolveForUpdate performs a single lookup by id.
func (r *Resolver) ResolveForUpdate(ctx context.Context, id string) (core.Identity, error) {
	if err := r.ready(); err != nil {
		return core.Identity{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Identity{}, badKey("resolve_identity_for_update")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	identity, err := r.lookup(ctx, core.IdentityQuery{Field: core.IdentityFieldID, Value: id})
	if errors.Is(err, core.ErrIdentityAbsent) {
		return core.Identity{}, core.IdentityNotFoundError(id, 1)
	}
	return identity, err
}

func (r *Resolver) lookup(ctx context.Context, query core.IdentityQuery) (core.Identity, error) {
	found, err := r.searcher.SearchIdentities(ctx, query)
	if err != nil {
		return core.Identity{}, core.UpstreamReadError(err, "search_identities", map[string]any{
			"query": query.String(),
		})
	}
	for _, candidate := range found {
		if matches(query, candidate) {
			return candidate, nil
		}
	}
	return core.Identity{}, core.ErrIdentityAbsent
}

func (r *Resolver) ready() error {
	if r == nil || r.searcher == nil {
		return core.UpstreamReadError(errors.New("identity: searcher is not configured"), "search_identities", nil)
	}
	return nil
}

func (r *Resolver) debug(ctx context.Context, msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.WithContext(ctx).Debug(msg, args...)
}

// matches drops search hits that are not an exact match for the query.
func matches(query core.IdentityQuery, candidate core.Identity) bool {
	value := strings.TrimSpace(query.Value)
	switch query.Field {
	case core.IdentityFieldID:
		return strings.TrimSpace(candidate.ID) == value
	case core.IdentityFieldNameExact:
		return strings.TrimSpace(candidate.Name) == value
	default:
		return true
	}
}

var _ core.IdentityResolver = (*Resolver)(nil)
