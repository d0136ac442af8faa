package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-access-proxy/transport"
)

type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// BearerSigner sets the Authorization header from a token source.
type BearerSigner struct {
	Source TokenSource
}

func (s BearerSigner) Sign(ctx context.Context, req *http.Request) error {
	if s.Source == nil {
		return authError("auth: bearer signer requires a token source", nil)
	}
	if req == nil {
		return authError("auth: bearer signer requires a request", nil)
	}
	token, err := s.Source.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token.AccessToken))
	return nil
}

var (
	_ transport.RequestSigner = BearerSigner{}
	_ TokenSource             = (*OAuth2ClientCredentialsStrategy)(nil)
)
