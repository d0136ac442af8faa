package transport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
	goerrors "github.com/goliatone/go-errors"
)

const maxErrorDetail = 512

// failure pairs a go-errors category with the HTTP code reported for it.
type failure struct {
	category goerrors.Category
	code     int
}

var (
	badRequest    = failure{goerrors.CategoryBadInput, http.StatusBadRequest}
	badGateway    = failure{goerrors.CategoryExternal, http.StatusBadGateway}
	misconfigured = failure{goerrors.CategoryInternal, http.StatusInternalServerError}

	statusFailures = map[int]failure{
		http.StatusBadRequest:          badRequest,
		http.StatusUnprocessableEntity: badRequest,
		http.StatusUnauthorized:        {goerrors.CategoryAuth, http.StatusUnauthorized},
		http.StatusForbidden:           {goerrors.CategoryAuthz, http.StatusForbidden},
		http.StatusNotFound:            {goerrors.CategoryNotFound, http.StatusNotFound},
		http.StatusConflict:            {goerrors.CategoryConflict, http.StatusConflict},
		http.StatusTooManyRequests:     {goerrors.CategoryRateLimit, http.StatusTooManyRequests},
	}
)

func (f failure) new(message string, metadata map[string]any) error {
	return f.decorate(goerrors.New(message, f.category), metadata)
}

func (f failure) wrap(source error, message string, metadata map[string]any) error {
	if source == nil {
		return f.new(message, metadata)
	}
	err := goerrors.Wrap(source, f.category, message)
	err.Category = f.category
	return f.decorate(err, metadata)
}

func (f failure) decorate(err *goerrors.Error, metadata map[string]any) *goerrors.Error {
	fields := map[string]any{"adapter": adapterName}
	for key, value := range metadata {
		fields[key] = value
	}
	return err.WithCode(f.code).WithTextCode(textCodeFor(f.category)).WithMetadata(fields)
}

// StatusError classifies a non-2xx response by status code. The body, cut to
// a bounded length, is appended to the message and any Retry-After header is
// kept as retry_after metadata.
func StatusError(method string, url string, res Response) error {
	method = strings.ToUpper(method)
	message := fmt.Sprintf("transport: %s %s returned %d", method, url, res.StatusCode)
	if detail := strings.TrimSpace(string(res.Body)); detail != "" {
		message += ": " + detail[:min(len(detail), maxErrorDetail)]
	}
	metadata := map[string]any{
		"method":      method,
		"url":         url,
		"status_code": res.StatusCode,
	}
	if retryAfter := strings.TrimSpace(res.Header("Retry-After")); retryAfter != "" {
		metadata["retry_after"] = retryAfter
	}
	f, ok := statusFailures[res.StatusCode]
	if !ok {
		f = badGateway
	}
	return f.new(message, metadata)
}

func textCodeFor(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryAuth:
		return core.ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return core.ErrorForbidden
	case goerrors.CategoryRateLimit:
		return core.ErrorRateLimited
	case goerrors.CategoryNotFound:
		return core.ErrorUpstreamResourceMissing
	case goerrors.CategoryExternal, goerrors.CategoryConflict:
		return core.ErrorUpstreamRequestFailure
	default:
		return core.ErrorInternal
	}
}
