package identity

import (
	"net/http"

	"github.com/goliatone/go-access-proxy/core"
	goerrors "github.com/goliatone/go-errors"
)

func badKey(operation string) *goerrors.Error {
	return goerrors.New("identity: lookup key is required", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(map[string]any{"operation": operation})
}
