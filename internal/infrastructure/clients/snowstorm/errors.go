package snowstorm

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// upstreamError builds the error for a non-2xx response. The message starts
// with the status and adds the body's "error" and "message" fields when the
// body is a JSON object carrying them; an unreadable body leaves the status
// only.
func upstreamError(status int, body []byte) *apperrors.AppError {
	message := fmt.Sprintf("API error: %d", status)

	var payload struct {
		Error   interface{} `json:"error"`
		Message interface{} `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if s := fieldText(payload.Error); s != "" {
			message = fmt.Sprintf("%s - %s", message, s)
		}
		if s := fieldText(payload.Message); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
	}

	return apperrors.NewUpstreamError(status, message)
}

func fieldText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func transportError(err error) *apperrors.AppError {
	return apperrors.NewTransportError("failed to reach terminology server", err)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryable retries transport failures and gateway-style statuses only.
func isRetryable(err error) bool {
	appErr := apperrors.Normalize(err)
	switch appErr.Type {
	case apperrors.ErrorTypeTransport:
		return true
	case apperrors.ErrorTypeUpstream:
		return isRetryableStatus(appErr.Status)
	}
	return false
}
