package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/transport"
	goerrors "github.com/goliatone/go-errors"
)

const AuthKindOAuth2ClientCredential = "oauth2_client_credentials"

type OAuth2ClientCredentialsStrategyConfig struct {
	ClientID      string
	ClientSecret  string
	TokenURL      string
	DefaultScopes []string
	TokenTTL      time.Duration
	RenewBefore   time.Duration
	HTTPClient    transport.HTTPDoer
	Now           func() time.Time
}

// Token is an issued access token.
type Token struct {
	TokenType   string
	AccessToken string
	Scopes      []string
	ExpiresAt   time.Time
}

func (t Token) Valid(now time.Time, renewBefore time.Duration) bool {
	if strings.TrimSpace(t.AccessToken) == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.After(now.Add(renewBefore))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// OAuth2ClientCredentialsStrategy exchanges client credentials for a bearer
// token and caches it until RenewBefore ahead of expiry.
type OAuth2ClientCredentialsStrategy struct {
	config OAuth2ClientCredentialsStrategyConfig
	rest   *transport.RESTAdapter
	mu     sync.Mutex
	cached Token
}

func NewOAuth2ClientCredentialsStrategy(cfg OAuth2ClientCredentialsStrategyConfig) *OAuth2ClientCredentialsStrategy {
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = 2 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &OAuth2ClientCredentialsStrategy{
		config: OAuth2ClientCredentialsStrategyConfig{
			ClientID:      strings.TrimSpace(cfg.ClientID),
			ClientSecret:  strings.TrimSpace(cfg.ClientSecret),
			TokenURL:      strings.TrimSpace(cfg.TokenURL),
			DefaultScopes: scopeSet(cfg.DefaultScopes),
			TokenTTL:      tokenTTL,
			RenewBefore:   renewBefore,
			Now:           now,
		},
		rest: transport.NewRESTAdapter(cfg.HTTPClient),
	}
}

func (*OAuth2ClientCredentialsStrategy) Type() string {
	return AuthKindOAuth2ClientCredential
}

// Token returns the cached token or performs a new exchange. Concurrent
// callers share a single exchange.
func (s *OAuth2ClientCredentialsStrategy) Token(ctx context.Context) (Token, error) {
	if s == nil {
		return Token{}, fmt.Errorf("auth: oauth2 client credentials strategy is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now().UTC()
	if s.cached.Valid(now, s.config.RenewBefore) {
		return s.cached, nil
	}
	issued, err := s.exchange(ctx, now)
	if err != nil {
		return Token{}, err
	}
	s.cached = issued
	return issued, nil
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (s *OAuth2ClientCredentialsStrategy) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.cached = Token{}
	s.mu.Unlock()
}

func (s *OAuth2ClientCredentialsStrategy) exchange(ctx context.Context, now time.Time) (Token, error) {
	if s.config.ClientID == "" {
		return Token{}, authError("auth: oauth2 client credentials client_id is required", nil)
	}
	if s.config.ClientSecret == "" {
		return Token{}, authError("auth: oauth2 client credentials client_secret is required", nil)
	}
	if s.config.TokenURL == "" {
		return Token{}, authError("auth: oauth2 client credentials token_url is required", nil)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	if len(s.config.DefaultScopes) > 0 {
		form.Set("scope", strings.Join(s.config.DefaultScopes, " "))
	}

	res, err := s.rest.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    s.config.TokenURL,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return Token{}, err
	}
	if !res.Success() {
		return Token{}, transport.StatusError(http.MethodPost, s.config.TokenURL, res)
	}

	var payload tokenResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return Token{}, authError("auth: decode token response", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return Token{}, authError("auth: token response did not include an access_token", nil)
	}

	ttl := s.config.TokenTTL
	if payload.ExpiresIn > 0 {
		ttl = time.Duration(payload.ExpiresIn) * time.Second
	}
	scopes := s.config.DefaultScopes
	if strings.TrimSpace(payload.Scope) != "" {
		scopes = scopeSet(strings.Fields(payload.Scope))
	}
	tokenType := strings.TrimSpace(payload.TokenType)
	if tokenType == "" {
		tokenType = "bearer"
	}
	return Token{
		TokenType:   tokenType,
		AccessToken: strings.TrimSpace(payload.AccessToken),
		Scopes:      append([]string(nil), scopes...),
		ExpiresAt:   now.Add(ttl),
	}, nil
}

func authError(message string, source error) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryAuth, message)
		err.Category = goerrors.CategoryAuth
	} else {
		err = goerrors.New(message, goerrors.CategoryAuth)
	}
	return err.
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ErrorUnauthorized).
		WithMetadata(map[string]any{"auth_kind": AuthKindOAuth2ClientCredential})
}
