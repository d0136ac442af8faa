package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	accessproxy "github.com/goliatone/go-access-proxy"
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/transport"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath   string
	ledgerDriver string
	ledgerDSN    string
	verbose      bool

	out        io.Writer
	errOut     io.Writer
	httpClient transport.HTTPDoer
}

// runtime is the wired service for one command invocation.
type runtime struct {
	service *accessproxy.Service
	facade  *accessproxy.Facade
	closers []func() error
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func newRootCommand(out io.Writer, errOut io.Writer, httpClient transport.HTTPDoer) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut, httpClient: httpClient}

	root := &cobra.Command{
		Use:           "accessproxy",
		Short:         "Provision governance accounts through access requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.ledgerDriver, "ledger-driver", "", "ledger database driver (sqlite3|postgres)")
	root.PersistentFlags().StringVar(&opts.ledgerDSN, "ledger-dsn", "", "ledger database DSN; enables the ledger")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTestConnectionCommand(opts),
		newListEntitlementsCommand(opts),
		newCreateAccountCommand(opts),
		newUpdateAccountCommand(opts),
		newLedgerCommand(opts),
	)
	return root
}

// loadConfig layers the YAML file over the defaults, then applies ledger flags.
func (o *rootOptions) loadConfig(ctx context.Context) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(core.FileConfigLoader{Path: o.configPath})
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, err
	}
	if driver := strings.TrimSpace(o.ledgerDriver); driver != "" {
		cfg.Ledger.Driver = driver
	}
	if dsn := strings.TrimSpace(o.ledgerDSN); dsn != "" {
		cfg.Ledger.DSN = dsn
		cfg.Ledger.Enabled = true
	}
	if cfg.Ledger.Enabled && strings.TrimSpace(cfg.Ledger.Driver) == "" {
		cfg.Ledger.Driver = "sqlite3"
	}
	return cfg, nil
}

func (o *rootOptions) runtime(ctx context.Context) (*runtime, error) {
	cfg, err := o.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := newCLILogger(o.errOut, o.verbose)
	rt := &runtime{}
	deps := accessproxy.Dependencies{
		HTTPClient: o.httpClient,
		Logger:     logger,
	}

	if cfg.Ledger.Enabled {
		factory, closeFn, err := openLedger(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN, o.verbose)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closeFn)
		deps.Ledger = factory.AccessRequestLedger()
		deps.RateLimitState = factory.RateLimitStateStore()
	}

	service, err := accessproxy.New(cfg, deps)
	if err != nil {
		rt.Close()
		return nil, err
	}
	facade, err := accessproxy.NewFacade(service)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.service = service
	rt.facade = facade
	return rt, nil
}

// withRuntime builds the runtime, runs fn and releases the ledger connection.
func (o *rootOptions) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := o.runtime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func (o *rootOptions) writeJSON(value any) error {
	encoder := json.NewEncoder(o.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("accessproxy: encode output: %w", err)
	}
	return nil
}
