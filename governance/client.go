// Package governance implements core.GovernanceClient over the tenant REST
// API: search, entitlements, accounts, access requests and the public
// identity configuration.
package governance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-access-proxy/auth"
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/ratelimit"
	"github.com/goliatone/go-access-proxy/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultSearchPageSize = 250

	pathSearch               = "/v3/search"
	pathEntitlements         = "/v2025/entitlements/"
	pathAccounts             = "/v3/accounts"
	pathAccessRequests       = "/v3/access-requests"
	pathPublicIdentityConfig = "/v3/public-identities-config"

	headerExperimental = "X-SailPoint-Experimental"
	contentJSONPatch   = "application/json-patch+json"

	indexIdentities   = "identities"
	indexEntitlements = "entitlements"
)

type Config struct {
	BaseURL        string
	HTTPClient     transport.HTTPDoer
	Signer         transport.RequestSigner
	RateLimit      *ratelimit.AdaptivePolicy
	RequestTimeout time.Duration
	PageSize       int
	Logger         core.Logger
}

type Client struct {
	baseURL  string
	tenant   string
	rest     *transport.RESTAdapter
	limiter  *ratelimit.AdaptivePolicy
	timeout  time.Duration
	pageSize int
	logger   core.Logger
}

func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("governance: base url must be absolute, got %q", cfg.BaseURL)
	}
	rest := transport.NewRESTAdapter(cfg.HTTPClient)
	rest.Signer = cfg.Signer

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	return &Client{
		baseURL:  strings.TrimRight(parsed.String(), "/"),
		tenant:   parsed.Host,
		rest:     rest,
		limiter:  cfg.RateLimit,
		timeout:  cfg.RequestTimeout,
		pageSize: pageSize,
		logger:   glog.Ensure(cfg.Logger),
	}, nil
}

// ClientOption adjusts clients built by NewClientFromConfig.
type ClientOption func(*Config)

// WithRateLimitStateStore keeps throttling state in store instead of process
// memory, so several workers against one tenant back off together.
func WithRateLimitStateStore(store ratelimit.StateStore) ClientOption {
	return func(cfg *Config) {
		if store != nil {
			cfg.RateLimit = ratelimit.NewAdaptivePolicy(store)
		}
	}
}

// NewClientFromConfig builds a client authenticated with the client
// credentials grant against cfg.TokenURL().
func NewClientFromConfig(
	cfg core.Config,
	httpClient transport.HTTPDoer,
	logger core.Logger,
	opts ...ClientOption,
) (*Client, error) {
	tokens := auth.NewOAuth2ClientCredentialsStrategy(auth.OAuth2ClientCredentialsStrategyConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL(),
		HTTPClient:   httpClient,
	})
	clientConfig := Config{
		BaseURL:        cfg.BaseURL,
		HTTPClient:     httpClient,
		Signer:         auth.BearerSigner{Source: tokens},
		RateLimit:      ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&clientConfig)
		}
	}
	return NewClient(clientConfig)
}

func (c *Client) SearchIdentities(ctx context.Context, query core.IdentityQuery) ([]core.Identity, error) {
	docs, err := c.searchPage(ctx, searchRequest{
		Indices:       []string{indexIdentities},
		Query:         searchQuery{Query: query.String()},
		IncludeNested: true,
	}, 0)
	if err != nil {
		return nil, err
	}
	identities := make([]core.Identity, 0, len(docs))
	for _, doc := range docs {
		identities = append(identities, identityFromDocument(doc))
	}
	return identities, nil
}

// SearchEntitlements pages through every entitlement matching query,
// sorted by id and continued with searchAfter.
func (c *Client) SearchEntitlements(ctx context.Context, query string) ([]core.Entitlement, error) {
	entitlements := []core.Entitlement{}
	var after []string
	for {
		docs, err := c.searchPage(ctx, searchRequest{
			Indices:       []string{indexEntitlements},
			Query:         searchQuery{Query: query},
			Sort:          []string{"id"},
			IncludeNested: true,
			SearchAfter:   after,
		}, c.pageSize)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			entitlements = append(entitlements, entitlementFromDocument(doc))
		}
		if len(docs) < c.pageSize {
			return entitlements, nil
		}
		last := stringField(docs[len(docs)-1], "id")
		if last == "" {
			return entitlements, nil
		}
		after = []string{last}
	}
}

func (c *Client) GetEntitlement(ctx context.Context, id string) (core.Entitlement, error) {
	var doc map[string]any
	_, err := c.call(ctx, "entitlements", transport.Request{
		Method:  http.MethodGet,
		URL:     c.url(pathEntitlements + url.PathEscape(strings.TrimSpace(id))),
		Headers: map[string]string{headerExperimental: "true"},
	}, nil, &doc)
	if err != nil {
		return core.Entitlement{}, err
	}
	return entitlementFromDocument(doc), nil
}

func (c *Client) PatchEntitlement(ctx context.Context, id string, ops []core.JSONPatchOperation) (core.Entitlement, error) {
	var doc map[string]any
	_, err := c.call(ctx, "entitlements", transport.Request{
		Method: http.MethodPatch,
		URL:    c.url(pathEntitlements + url.PathEscape(strings.TrimSpace(id))),
		Headers: map[string]string{
			headerExperimental: "true",
			"Content-Type":     contentJSONPatch,
		},
	}, ops, &doc)
	if err != nil {
		return core.Entitlement{}, err
	}
	return entitlementFromDocument(doc), nil
}

func (c *Client) ListAccounts(ctx context.Context, filter core.AccountFilter) ([]core.Account, error) {
	query := url.Values{}
	if native := strings.TrimSpace(filter.NativeIdentity); native != "" {
		query.Set("filters", "nativeIdentity eq "+native)
	}
	var docs []map[string]any
	_, err := c.call(ctx, "accounts", transport.Request{
		Method: http.MethodGet,
		URL:    c.url(pathAccounts),
		Query:  query,
	}, nil, &docs)
	if err != nil {
		return nil, err
	}
	accounts := make([]core.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, accountFromDocument(doc))
	}
	return accounts, nil
}

func (c *Client) CreateAccessRequest(ctx context.Context, req core.AccessRequest) (core.AccessRequestResponse, error) {
	if err := req.RequestType.Validate(); err != nil {
		return core.AccessRequestResponse{}, err
	}
	body := accessRequestBody{
		RequestedFor:   []string{req.RequestedFor},
		RequestType:    string(req.RequestType),
		RequestedItems: make([]accessRequestItem, 0, len(req.EntitlementIDs)),
	}
	for _, id := range req.EntitlementIDs {
		body.RequestedItems = append(body.RequestedItems, accessRequestItem{
			ID:      id,
			Type:    "ENTITLEMENT",
			Comment: req.Comment,
		})
	}

	var doc map[string]any
	_, err := c.call(ctx, "access-requests", transport.Request{
		Method: http.MethodPost,
		URL:    c.url(pathAccessRequests),
	}, body, &doc)
	if err != nil {
		return core.AccessRequestResponse{}, err
	}
	return accessRequestResponseFromDocument(doc), nil
}

func (c *Client) GetPublicIdentityConfig(ctx context.Context) (core.PublicIdentityConfig, error) {
	var doc map[string]any
	_, err := c.call(ctx, "public-identities-config", transport.Request{
		Method: http.MethodGet,
		URL:    c.url(pathPublicIdentityConfig),
	}, nil, &doc)
	if err != nil {
		return core.PublicIdentityConfig{}, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return core.PublicIdentityConfig{Attributes: doc}, nil
}

func (c *Client) searchPage(ctx context.Context, search searchRequest, limit int) ([]map[string]any, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	var docs []map[string]any
	_, err := c.call(ctx, "search", transport.Request{
		Method: http.MethodPost,
		URL:    c.url(pathSearch),
		Query:  query,
	}, search, &docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// call runs one request through the rate-limit policy.
func (c *Client) call(ctx context.Context, bucket string, req transport.Request, in any, out any) (transport.Response, error) {
	key := ratelimit.Key{Tenant: c.tenant, Bucket: bucket}
	if c.limiter != nil {
		if err := c.limiter.BeforeCall(ctx, key); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return transport.Response{}, throttled.ToServiceError()
			}
			return transport.Response{}, err
		}
	}
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}

	startedAt := time.Now()
	res, err := c.rest.DoJSON(ctx, req, in, out)
	c.logger.WithContext(ctx).Debug("governance api call",
		"method", req.Method,
		"url", req.URL,
		"status", res.StatusCode,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	if c.limiter != nil && res.StatusCode != 0 {
		if limitErr := c.limiter.AfterCall(ctx, key, res); limitErr != nil {
			c.logger.WithContext(ctx).Warn("governance rate limit state update failed", "error", limitErr)
		}
	}
	return res, err
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

var _ core.GovernanceClient = (*Client)(nil)
