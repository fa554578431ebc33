package klaviyo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	// ErrMissingAPIKey is returned when a client is built without a key.
	ErrMissingAPIKey = errors.New("missing API key")
)

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int

	// Detail joins the detail of every returned error.
	Detail string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("klaviyo: status %d", e.StatusCode)
	}
	return fmt.Sprintf("klaviyo: status %d: %s", e.StatusCode, e.Detail)
}

type errorBody struct {
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`

	// Legacy endpoints report a single message.
	Message string `json:"message"`
}

// newAPIError builds an APIError from a response body.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}

	var parsed errorBody
	if err := sonic.Unmarshal(body, &parsed); err == nil {
		details := make([]string, 0, len(parsed.Errors))
		for _, item := range parsed.Errors {
			if item.Detail != "" {
				details = append(details, item.Detail)
			}
		}
		switch {
		case len(details) > 0:
			e.Detail = strings.Join(details, "; ")
		case parsed.Message != "":
			e.Detail = parsed.Message
		}
		return e
	}

	const maxDetail = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxDetail {
		text = text[:maxDetail]
	}
	e.Detail = text
	return e
}
