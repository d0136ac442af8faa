package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

// ConfigProvider loads file or environment configuration on top of defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges the defaults, the loaded configuration and the
// Config passed to NewService into the effective configuration.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig    Config
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
}

// Option customizes NewService. Nil options are skipped.
type Option func(*serviceBuilder)

func defaultServiceBuilder(runtime Config) serviceBuilder {
	provider, logger := glog.Resolve(defaultServiceName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  provider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		sleeper:         TimerSleeper{},
	}
}

// WithGovernanceClient sets the tenant API the service provisions against.
func WithGovernanceClient(client GovernanceClient) Option {
	return func(b *serviceBuilder) { b.client = client }
}

// WithIdentityResolver sets the lookup used by the create and update paths.
func WithIdentityResolver(resolver IdentityResolver) Option {
	return func(b *serviceBuilder) { b.identityResolver = resolver }
}

// WithAccessRequestLedger records every orchestrated submission. Ledger
// failures are logged and do not fail the operation.
func WithAccessRequestLedger(ledger AccessRequestLedger) Option {
	return func(b *serviceBuilder) { b.ledger = ledger }
}

// WithSleeper replaces the timer used for resolver and retry delays.
func WithSleeper(sleeper Sleeper) Option {
	return func(b *serviceBuilder) { b.sleeper = sleeper }
}

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) { b.metricsRecorder = recorder }
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) { b.errorFactory = factory }
}

// WithErrorMapper changes how operation errors are enveloped before they are
// returned to callers.
func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) { b.errorMapper = mapper }
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) { b.optionsResolver = resolver }
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}
