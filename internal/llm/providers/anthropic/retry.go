package anthropicprovider

import (
	"errors"
	"net"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// isRetryableProviderError identifies failures worth another streaming
// attempt: rate limiting, request timeouts, server-side errors (including
// the 529 overloaded status), and transport-level network failures.
// Client-side 4xx rejections are permanent and never retried.
func isRetryableProviderError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
