// Package accessproxy provisions accounts in an identity governance tenant by
// translating create and update operations into access requests.
package accessproxy

import (
	"strings"

	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/governance"
	"github.com/goliatone/go-access-proxy/identity"
	"github.com/goliatone/go-access-proxy/ratelimit"
	"github.com/goliatone/go-access-proxy/transport"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type CreateAccountRequest = core.CreateAccountRequest

type UpdateAccountRequest = core.UpdateAccountRequest

type SubmitRequest = core.SubmitRequest

type AccountView = core.AccountView

type EntitlementView = core.EntitlementView

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorFactory        = core.WithErrorFactory
	WithErrorMapper         = core.WithErrorMapper
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithSleeper             = core.WithSleeper
	WithGovernanceClient    = core.WithGovernanceClient
	WithIdentityResolver    = core.WithIdentityResolver
	WithAccessRequestLedger = core.WithAccessRequestLedger
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

// Dependencies carries the collaborators New wires around the governance
// client. Zero values fall back to defaults.
type Dependencies struct {
	HTTPClient     transport.HTTPDoer
	Logger         core.Logger
	Sleeper        core.Sleeper
	Ledger         core.AccessRequestLedger
	RateLimitState ratelimit.StateStore
}

// New builds a Service backed by the tenant at the resolved base_url. cfg is
// layered over the defaults and any WithConfigProvider in opts before it is
// validated, and the governance client and identity resolver are built from
// that effective configuration. Options in opts are applied after the
// defaults, so an explicit WithGovernanceClient or WithIdentityResolver
// replaces the wired one.
func New(cfg Config, deps Dependencies, opts ...Option) (*Service, error) {
	cfg, err := core.ResolveConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, core.InvalidField("config", "base_url", "is required")
	}

	client, err := governance.NewClientFromConfig(
		cfg,
		deps.HTTPClient,
		deps.Logger,
		governance.WithRateLimitStateStore(deps.RateLimitState),
	)
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(identity.Config{
		Searcher: client,
		Sleeper:  deps.Sleeper,
		Policy:   cfg.IdentityResolution.Policy(),
		Logger:   deps.Logger,
	})

	wired := []Option{
		core.WithGovernanceClient(client),
		core.WithIdentityResolver(resolver),
	}
	if deps.Logger != nil {
		wired = append(wired, core.WithLogger(deps.Logger))
	}
	if deps.Sleeper != nil {
		wired = append(wired, core.WithSleeper(deps.Sleeper))
	}
	if deps.Ledger != nil {
		wired = append(wired, core.WithAccessRequestLedger(deps.Ledger))
	}
	return core.NewService(cfg, append(wired, opts...)...)
}
