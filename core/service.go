package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	sleeper          Sleeper
	client           GovernanceClient
	identityResolver IdentityResolver
	ledger           AccessRequestLedger
	gate             *RequestabilityGate
	orchestrator     *AccessRequestOrchestrator
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Sleeper          Sleeper
	Client           GovernanceClient
	IdentityResolver IdentityResolver
	Ledger           AccessRequestLedger
}

// NewService layers cfg over the loaded configuration and the defaults.
// Zero values in cfg (empty strings, false, zero durations and counts) never
// override a loaded or default value. A make_requestable enabled by the
// config provider cannot be turned off by passing false here.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := newServiceBuilder(cfg, opts)

	provider, logger := glog.Resolve(defaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(defaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	finalConfig, err := builder.resolveConfig()
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		sleeper:          builder.sleeper,
		client:           builder.client,
		identityResolver: builder.identityResolver,
		ledger:           builder.ledger,
	}
	if builder.client != nil {
		svc.gate = NewRequestabilityGate(builder.client, builder.client, logger)
		svc.orchestrator = NewAccessRequestOrchestrator(OrchestratorConfig{
			MakeRequestable: finalConfig.MakeRequestable,
			Comment:         finalConfig.Comment,
			Retry:           finalConfig.AccessRequestRetry.Policy(),
		}, OrchestratorDependencies{
			Requester:       builder.client,
			Gate:            svc.gate,
			Sleeper:         builder.sleeper,
			Ledger:          builder.ledger,
			Logger:          logger,
			MetricsRecorder: builder.metricsRecorder,
		})
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// ResolveConfig returns the configuration NewService would run with for the
// same arguments.
func ResolveConfig(cfg Config, opts ...Option) (Config, error) {
	builder := newServiceBuilder(cfg, opts)
	return builder.resolveConfig()
}

func newServiceBuilder(cfg Config, opts []Option) serviceBuilder {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.sleeper == nil {
		builder.sleeper = TimerSleeper{}
	}
	return builder
}

func (b serviceBuilder) resolveConfig() (Config, error) {
	defaults := DefaultConfig()
	loaded, err := b.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Config{}, mapBuildError(b.errorMapper, err)
	}
	resolved, err := b.optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
	if err != nil {
		return Config{}, mapBuildError(b.errorMapper, err)
	}
	return resolved, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Sleeper:          s.sleeper,
		Client:           s.client,
		IdentityResolver: s.identityResolver,
		Ledger:           s.ledger,
	}
}

func (s *Service) ResolveIdentityForCreate(ctx context.Context, name string) (identity Identity, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "resolve_identity_for_create", err, map[string]any{
			"identity_name": name,
			"identity_id":   identity.ID,
		})
	}()
	if s == nil || s.identityResolver == nil {
		return Identity{}, s.mapError(badInputError("core: identity resolver is not configured", nil))
	}
	identity, err = s.identityResolver.ResolveForCreate(ctx, name)
	return identity, s.mapError(err)
}

func (s *Service) ResolveIdentityForUpdate(ctx context.Context, id string) (identity Identity, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "resolve_identity_for_update", err, map[string]any{
			"identity_id": id,
		})
	}()
	if s == nil || s.identityResolver == nil {
		return Identity{}, s.mapError(badInputError("core: identity resolver is not configured", nil))
	}
	identity, err = s.identityResolver.ResolveForUpdate(ctx, id)
	return identity, s.mapError(err)
}

func (s *Service) ReduceChanges(changes []ChangeOperation) (ChangeSet, error) {
	set, err := ReduceChanges(changes)
	if err != nil {
		return ChangeSet{}, s.mapError(err)
	}
	return set, nil
}

func (s *Service) SubmitAccessRequest(ctx context.Context, req SubmitRequest) (result SubmitResult, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "submit_access_request", err, map[string]any{
			"identity_id":       req.IdentityID,
			"request_type":      string(req.Type),
			"entitlement_count": len(req.EntitlementIDs),
			"attempts":          result.Attempts,
		})
	}()
	if s == nil || s.orchestrator == nil {
		return SubmitResult{}, s.mapError(badInputError("core: governance client is not configured", nil))
	}
	result, err = s.orchestrator.Submit(ctx, req)
	return result, s.mapError(err)
}

func (s *Service) BuildAccountView(identity Identity, entitlements []string) AccountView {
	return BuildAccountView(identity, entitlements)
}

func (s *Service) BuildEntitlementView(entitlement Entitlement) EntitlementView {
	return BuildEntitlementView(entitlement)
}

func (s *Service) TestConnection(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "test_connection", err, nil)
	}()
	if s == nil || s.client == nil {
		return s.mapError(badInputError("core: governance client is not configured", nil))
	}
	if _, err = s.client.GetPublicIdentityConfig(ctx); err != nil {
		return s.mapError(UpstreamReadError(err, "get_public_identity_config", nil))
	}
	return nil
}

func (s *Service) ListEntitlements(ctx context.Context) (views []EntitlementView, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "list_entitlements", err, map[string]any{
			"count": len(views),
		})
	}()
	if s == nil || s.client == nil {
		return nil, s.mapError(badInputError("core: governance client is not configured", nil))
	}
	entitlements, err := s.client.SearchEntitlements(ctx, s.config.Search)
	if err != nil {
		return nil, s.mapError(UpstreamReadError(err, "search_entitlements", map[string]any{
			"query": s.config.Search,
		}))
	}
	views = make([]EntitlementView, 0, len(entitlements))
	for _, entitlement := range entitlements {
		views = append(views, BuildEntitlementView(entitlement))
	}
	return views, nil
}

// CreateAccount waits for the named identity to appear, grants the initial
// entitlements and returns the resulting account view.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (view AccountView, err error) {
	startedAt := time.Now().UTC()
	name := strings.TrimSpace(req.Name)
	entitlements := []string{}
	if req.Entitlements != nil {
		entitlements = req.Entitlements.Values()
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "create_account", err, map[string]any{
			"identity_name":     name,
			"identity_id":       view.Identity,
			"entitlement_count": len(entitlements),
		})
	}()
	if s == nil || s.identityResolver == nil || s.orchestrator == nil {
		return AccountView{}, s.mapError(badInputError("core: governance client is not configured", nil))
	}
	if name == "" {
		return AccountView{}, s.mapError(badInputError("core: account name is required", map[string]any{
			"operation": "create_account",
		}))
	}

	identity, err := s.identityResolver.ResolveForCreate(ctx, name)
	if err != nil {
		return AccountView{}, s.mapError(err)
	}
	if len(entitlements) > 0 {
		if _, err = s.orchestrator.Submit(ctx, SubmitRequest{
			IdentityID:     identity.ID,
			EntitlementIDs: entitlements,
			Type:           AccessRequestGrant,
		}); err != nil {
			return AccountView{}, s.mapError(err)
		}
	}
	return BuildAccountView(identity, entitlements), nil
}

// UpdateAccount applies Add and Remove changes as one grant and one revoke
// request, then returns the merged account view.
func (s *Service) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (view AccountView, err error) {
	startedAt := time.Now().UTC()
	identityID := strings.TrimSpace(req.IdentityID)
	var changes ChangeSet
	defer func() {
		s.observeOperation(ctx, startedAt, "update_account", err, map[string]any{
			"identity_id":  identityID,
			"add_count":    len(changes.Add),
			"remove_count": len(changes.Remove),
		})
	}()
	if s == nil || s.identityResolver == nil || s.orchestrator == nil {
		return AccountView{}, s.mapError(badInputError("core: governance client is not configured", nil))
	}

	identity, err := s.identityResolver.ResolveForUpdate(ctx, identityID)
	if err != nil {
		return AccountView{}, s.mapError(err)
	}
	accounts, err := s.client.ListAccounts(ctx, AccountFilter{NativeIdentity: identity.ID})
	if err != nil {
		return AccountView{}, s.mapError(UpstreamReadError(err, "list_accounts", map[string]any{
			"native_identity": identity.ID,
		}))
	}
	if len(accounts) == 0 {
		return AccountView{}, s.mapError(AccountNotFoundError(identity.ID))
	}
	existing := accounts[0]

	changes, err = ReduceChanges(req.Changes)
	if err != nil {
		return AccountView{}, s.mapError(err)
	}
	if len(changes.Add) > 0 {
		if _, err = s.orchestrator.Submit(ctx, SubmitRequest{
			IdentityID:     identity.ID,
			EntitlementIDs: changes.Add,
			Type:           AccessRequestGrant,
		}); err != nil {
			return AccountView{}, s.mapError(err)
		}
	}
	if len(changes.Remove) > 0 {
		if _, err = s.orchestrator.Submit(ctx, SubmitRequest{
			IdentityID:     identity.ID,
			EntitlementIDs: changes.Remove,
			Type:           AccessRequestRevoke,
		}); err != nil {
			return AccountView{}, s.mapError(err)
		}
	}

	merged := MergeEntitlements(existing.Entitlements(), changes.Add, changes.Remove)
	return BuildAccountView(identity, merged), nil
}

// AccessRequestHistory lists ledger entries for an identity, newest first.
func (s *Service) AccessRequestHistory(ctx context.Context, identityID string, limit int) ([]AccessRequestRecord, error) {
	if s == nil || s.ledger == nil {
		return nil, s.mapError(badInputError("core: access request ledger is not configured", nil))
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, s.mapError(badInputError("core: identity id is required", map[string]any{
			"operation": "access_request_history",
		}))
	}
	records, err := s.ledger.ListByIdentity(ctx, identityID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
