package mailchimp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-formchimp/core"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx Mailchimp response decoded from its problem document.
type APIError struct {
	StatusCode int          `json:"-"`
	Type       string       `json:"type"`
	Title      string       `json:"title"`
	Status     int          `json:"status"`
	Detail     string       `json:"detail"`
	Instance   string       `json:"instance"`
	Errors     []FieldError `json:"errors"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	apiErr.StatusCode = status
	if strings.TrimSpace(apiErr.Title) == "" {
		apiErr.Title = http.StatusText(status)
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e == nil {
		return "mailchimp: request failed"
	}
	msg := fmt.Sprintf("mailchimp: %d %s", e.StatusCode, strings.TrimSpace(e.Title))
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *APIError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Envelope maps the error onto the service error codes and attaches the
// problem document fields as metadata.
func (e *APIError) Envelope() *goerrors.Error {
	if e == nil {
		return nil
	}
	envelope := core.RemoteStatusEnvelope(e, e.StatusCode)
	if envelope.Metadata == nil {
		envelope.Metadata = map[string]any{}
	}
	if e.Type != "" {
		envelope.Metadata["mailchimp_type"] = e.Type
	}
	if e.Title != "" {
		envelope.Metadata["mailchimp_title"] = e.Title
	}
	if e.Detail != "" {
		envelope.Metadata["mailchimp_detail"] = e.Detail
	}
	if e.Instance != "" {
		envelope.Metadata["mailchimp_instance"] = e.Instance
	}
	if len(e.Errors) > 0 {
		fields := make(map[string]string, len(e.Errors))
		for _, item := range e.Errors {
			fields[item.Field] = item.Message
		}
		envelope.Metadata["field_errors"] = fields
	}
	return envelope
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

var (
	_ core.RemoteStatusError = (*APIError)(nil)
	_ core.ErrorEnveloper    = (*APIError)(nil)
)
