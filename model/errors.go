package model

import "fmt"

// ErrorKind classifies a provider failure independent of the vendor.
// Every adapter maps vendor-specific status codes into exactly one kind
// before the error leaves the adapter boundary.
type ErrorKind string

const (
	// ErrAuth covers invalid or expired credentials (401/403).
	ErrAuth ErrorKind = "auth"
	// ErrRateLimited covers quota and throttling rejections (429).
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrServiceUnavailable covers backend-side failures (5xx).
	ErrServiceUnavailable ErrorKind = "service_unavailable"
	// ErrNetworkUnreachable covers connection-level failures before an
	// HTTP status was obtained.
	ErrNetworkUnreachable ErrorKind = "network_unreachable"
	// ErrTimeout covers calls that exceeded the configured deadline.
	ErrTimeout ErrorKind = "timeout"
)

// ProviderError is the uniform failure type surfaced by provider adapters.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with the provider name and failure kind.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}
