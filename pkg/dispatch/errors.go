package dispatch

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by a provider whose credentials or key are
// missing. It disables that provider only.
var ErrNotConfigured = errors.New("push provider not configured")

// ErrorKind classifies a failed delivery.
type ErrorKind int

const (
	// ErrorUnknown is a provider rejection we cannot attribute.
	ErrorUnknown ErrorKind = iota
	// ErrorTransient covers network failures, timeouts, 5xx and throttling.
	ErrorTransient
	// ErrorInvalid means the provider confirmed the token is permanently dead.
	ErrorInvalid
	// ErrorConfiguration means the provider cannot be used at all.
	ErrorConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// DeliveryError is the typed failure of one provider request. Token is the
// token of the request that failed, taken from that request's own payload.
type DeliveryError struct {
	Kind       ErrorKind
	Channel    Channel
	Token      string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s delivery failed (%s, status %d) for token %s: %v", e.Channel, e.Kind, e.StatusCode, e.Token, e.Err)
	}
	return fmt.Sprintf("%s delivery failed (%s, status %d): %v", e.Channel, e.Kind, e.StatusCode, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// InvalidToken returns the dead token carried by err, if err reports one.
func InvalidToken(err error) (string, bool) {
	var de *DeliveryError
	if errors.As(err, &de) && de.Kind == ErrorInvalid && de.Token != "" {
		return de.Token, true
	}
	return "", false
}

// IsConfiguration reports whether err means the provider is unusable.
func IsConfiguration(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	var de *DeliveryError
	return errors.As(err, &de) && de.Kind == ErrorConfiguration
}
