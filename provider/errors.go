package provider

import (
	"context"
	"errors"
	"net"

	"storechat/model"
)

// kindForStatus maps an HTTP status code from any vendor into the uniform
// failure taxonomy. Unrecognized client errors are treated as the backend
// refusing service.
func kindForStatus(status int) model.ErrorKind {
	switch {
	case status == 401 || status == 403:
		return model.ErrAuth
	case status == 429:
		return model.ErrRateLimited
	default:
		return model.ErrServiceUnavailable
	}
}

// wrapTransportError classifies failures that occurred before an HTTP status
// was obtained: deadline expiry becomes timeout, everything else is treated
// as the network being unreachable.
func wrapTransportError(provider string, err error) *model.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewProviderError(provider, model.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewProviderError(provider, model.ErrTimeout, err)
	}
	return model.NewProviderError(provider, model.ErrNetworkUnreachable, err)
}

// wrapStatusError builds the uniform error for a vendor HTTP status.
func wrapStatusError(provider string, status int, err error) *model.ProviderError {
	return model.NewProviderError(provider, kindForStatus(status), err)
}
