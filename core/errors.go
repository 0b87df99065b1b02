package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput       = "FORMCHIMP_BAD_INPUT"
	ErrorNotReady       = "FORMCHIMP_NOT_READY"
	ErrorAPIKeyInvalid  = "FORMCHIMP_API_KEY_INVALID"
	ErrorUpstreamFailed = "FORMCHIMP_UPSTREAM_FAILED"
	ErrorConfigInvalid  = "FORMCHIMP_CONFIG_INVALID"
	ErrorNotFound       = "FORMCHIMP_NOT_FOUND"
	ErrorRateLimited    = "FORMCHIMP_RATE_LIMITED"
	ErrorUnauthorized   = "FORMCHIMP_UNAUTHORIZED"
	ErrorForbidden      = "FORMCHIMP_FORBIDDEN"
	ErrorInternal       = "FORMCHIMP_INTERNAL_ERROR"
)

var (
	ErrEmailRequired       = errors.New("core: email address is required")
	ErrDateFormatMissing   = errors.New("core: mailchimp date format is not configured")
	ErrClientFactoryNeeded = errors.New("core: mailchimp client factory is required")
)

// RemoteStatusError is implemented by errors that carry the HTTP status of a
// failed Mailchimp API call.
type RemoteStatusError interface {
	error
	HTTPStatus() int
}

// ErrorEnveloper is implemented by remote errors that build their own
// go-errors envelope with provider detail attached.
type ErrorEnveloper interface {
	error
	Envelope() *goerrors.Error
}

// RemoteStatusEnvelope maps a failed Mailchimp call onto the service error
// envelope for status.
func RemoteStatusEnvelope(err error, status int) *goerrors.Error {
	if err == nil {
		return nil
	}
	return remoteStatusError(err, status)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	var enveloper ErrorEnveloper
	if errors.As(err, &enveloper) {
		if envelope := enveloper.Envelope(); envelope != nil {
			return ensureServiceErrorEnvelope(envelope)
		}
	}

	var remote RemoteStatusError
	if errors.As(err, &remote) {
		return remoteStatusError(err, remote.HTTPStatus())
	}

	switch {
	case errors.Is(err, ErrEmailRequired):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	case errors.Is(err, ErrDateFormatMissing):
		return newServiceError(err.Error(), goerrors.CategoryValidation, ErrorConfigInvalid)
	case errors.Is(err, ErrClientFactoryNeeded):
		return newServiceError(err.Error(), goerrors.CategoryInternal, ErrorInternal)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not ready"):
		return newServiceError(err.Error(), goerrors.CategoryOperation, ErrorNotReady)
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func remoteStatusError(err error, status int) *goerrors.Error {
	category := goerrors.CategoryExternal
	textCode := ErrorUpstreamFailed
	switch status {
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		textCode = ErrorAPIKeyInvalid
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
		textCode = ErrorForbidden
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
		textCode = ErrorNotFound
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
		textCode = ErrorRateLimited
	}
	wrapped := goerrors.Wrap(err, category, err.Error()).
		WithTextCode(textCode).
		WithMetadata(map[string]any{"remote_status": status})
	return ensureServiceErrorEnvelope(wrapped)
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
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation:
		return ErrorConfigInvalid
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryOperation:
		return ErrorNotReady
	case goerrors.CategoryExternal:
		return ErrorUpstreamFailed
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
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
