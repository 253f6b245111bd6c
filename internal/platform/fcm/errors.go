package fcm

import (
	"encoding/json"
	"net/http"

	"github.com/samuelzanatto/petapp-notification-service/internal/platform"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// apiError mirrors the google.rpc.Status body returned by the v1 API.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Error codes that prove a registration token is permanently dead.
const (
	statusNotFound     = "NOT_FOUND"
	errorUnregistered  = "UNREGISTERED"
	errorUnavailable   = "UNAVAILABLE"
	errorInternal      = "INTERNAL"
	errorQuotaExceeded = "QUOTA_EXCEEDED"
)

// classify inspects a failed v1 response. Only an explicit NOT_FOUND status
// or UNREGISTERED error code yields ErrorInvalid; everything else is kept.
func classify(statusCode int, body []byte) (dispatch.ErrorKind, string) {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return platform.KindForStatus(statusCode), ""
	}

	reason := parsed.Error.Status
	if parsed.Error.Status == statusNotFound {
		return dispatch.ErrorInvalid, reason
	}
	for _, d := range parsed.Error.Details {
		switch d.ErrorCode {
		case errorUnregistered:
			return dispatch.ErrorInvalid, d.ErrorCode
		case errorUnavailable, errorInternal, errorQuotaExceeded:
			return dispatch.ErrorTransient, d.ErrorCode
		}
		if d.ErrorCode != "" {
			reason = d.ErrorCode
		}
	}
	if statusCode == http.StatusUnauthorized {
		return dispatch.ErrorUnknown, reason
	}
	return platform.KindForStatus(statusCode), reason
}
