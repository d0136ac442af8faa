package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput                = "ACCESS_BAD_INPUT"
	ErrorIdentityNotFound        = "ACCESS_IDENTITY_NOT_FOUND"
	ErrorAccountNotFound         = "ACCESS_ACCOUNT_NOT_FOUND"
	ErrorUnsupportedOperation    = "ACCESS_UNSUPPORTED_OPERATION"
	ErrorUpstreamRequestFailure  = "ACCESS_UPSTREAM_REQUEST_FAILED"
	ErrorUpstreamReadFailure     = "ACCESS_UPSTREAM_READ_FAILED"
	ErrorRateLimited             = "ACCESS_RATE_LIMITED"
	ErrorUnauthorized            = "ACCESS_UNAUTHORIZED"
	ErrorForbidden               = "ACCESS_FORBIDDEN"
	ErrorInternal                = "ACCESS_INTERNAL_ERROR"
	ErrorUpstreamResourceMissing = "ACCESS_UPSTREAM_NOT_FOUND"
)

// ErrIdentityAbsent marks a lookup that completed but matched nothing. It is
// the only condition the create-path resolver retries on.
var ErrIdentityAbsent = errors.New("core: identity not present yet")

func IdentityNotFoundError(key string, attempts int) *goerrors.Error {
	err := goerrors.New("Identity not found", goerrors.CategoryNotFound)
	err.Source = ErrIdentityAbsent
	return err.
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorIdentityNotFound).
		WithMetadata(map[string]any{
			"identity_key": strings.TrimSpace(key),
			"attempts":     attempts,
		})
}

func AccountNotFoundError(nativeIdentity string) *goerrors.Error {
	return goerrors.New("Account not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorAccountNotFound).
		WithMetadata(map[string]any{"native_identity": strings.TrimSpace(nativeIdentity)})
}

func unsupportedOperationError(op ChangeOp, index int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s is not supported", string(op)), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorUnsupportedOperation).
		WithMetadata(map[string]any{
			"operation": "reduce_changes",
			"change_op": string(op),
			"index":     index,
		})
}

// UpstreamRequestError wraps a failed backend mutation. Existing rich errors
// keep their category and gain the operation context.
func UpstreamRequestError(source error, operation string, metadata map[string]any) error {
	return upstreamError(source, ErrorUpstreamRequestFailure, operation, metadata)
}

func UpstreamReadError(source error, operation string, metadata map[string]any) error {
	return upstreamError(source, ErrorUpstreamReadFailure, operation, metadata)
}

func upstreamError(source error, textCode string, operation string, metadata map[string]any) error {
	if source == nil {
		return nil
	}
	fields := cloneFields(metadata)
	fields["operation"] = operation
	message := "core: " + operation + " failed"

	var rich *goerrors.Error
	if goerrors.As(source, &rich) && isTaxonomyTextCode(rich.TextCode) {
		return goerrors.Wrap(source, rich.Category, message).WithMetadata(fields)
	}

	wrapped := goerrors.Wrap(source, goerrors.CategoryExternal, message).WithTextCode(textCode)
	if rich != nil && rich.Category == goerrors.CategoryRateLimit {
		wrapped.Category = goerrors.CategoryRateLimit
		wrapped.Code = http.StatusTooManyRequests
	} else {
		wrapped.Category = goerrors.CategoryExternal
		wrapped.Code = http.StatusBadGateway
	}
	return wrapped.WithMetadata(fields)
}

func badInputError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func isTaxonomyTextCode(code string) bool {
	switch code {
	case ErrorIdentityNotFound, ErrorAccountNotFound, ErrorUnsupportedOperation,
		ErrorUpstreamRequestFailure, ErrorUpstreamReadFailure:
		return true
	default:
		return false
	}
}

// HasTextCode walks the rich error chain looking for textCode.
func HasTextCode(err error, textCode string) bool {
	for current := err; current != nil; {
		var rich *goerrors.Error
		if !goerrors.As(current, &rich) {
			return false
		}
		if rich.TextCode == textCode {
			return true
		}
		current = rich.Source
	}
	return false
}

func IsIdentityNotFound(err error) bool { return HasTextCode(err, ErrorIdentityNotFound) }

func IsAccountNotFound(err error) bool { return HasTextCode(err, ErrorAccountNotFound) }

func IsUnsupportedOperation(err error) bool { return HasTextCode(err, ErrorUnsupportedOperation) }

func IsUpstreamRequestFailure(err error) bool {
	return HasTextCode(err, ErrorUpstreamRequestFailure)
}

func IsUpstreamReadFailure(err error) bool { return HasTextCode(err, ErrorUpstreamReadFailure) }

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case errors.Is(err, ErrIdentityAbsent):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorIdentityNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorUpstreamResourceMissing
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorUpstreamRequestFailure
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// InvalidField reports a message field that failed validation. scope prefixes
// the error message, e.g. "command" or "query".
func InvalidField(scope, field, message string) *goerrors.Error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// InvalidValue wraps a value parse failure as a validation error.
func InvalidValue(err error, message string) error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
	wrapped.Category = goerrors.CategoryValidation
	return wrapped
}

// MissingDependency reports a handler constructed without its service.
func MissingDependency(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}
