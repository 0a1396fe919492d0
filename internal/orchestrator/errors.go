package orchestrator

import (
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// quotaNoticeText is the fixed, user-safe message for provider quota/billing
// failures. The raw provider text is never surfaced for these.
const quotaNoticeText = "I can't respond right now: the model provider reports " +
	"that the usage quota or rate limit has been exceeded. Please review the " +
	"provider's plan and billing settings and try again later."

// genericFailureText is the fallback when a failure carries no message of its own.
const genericFailureText = "Something went wrong while generating this response."

// quotaMarkers are substrings that identify quota/rate-limit/billing failures
// across provider error formats. Checked case-insensitively, in order, before
// structured status codes.
var quotaMarkers = []string{
	"quota",
	"billing",
	"exceeded",
	"rate_limit",
	"resource_exhausted",
	"429",
	"check your plan",
}

// isQuotaError reports whether err represents a provider-side quota,
// rate-limit, or billing condition.
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	text := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is the Anthropic overloaded_error status. Other 5xx are
		// transient outages, not billing conditions.
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == statusOverloaded
	}
	return false
}

const statusOverloaded = 529

// userFacingMessage classifies a handler failure into text safe to commit to
// the outbound message.
func userFacingMessage(err error) string {
	if isQuotaError(err) {
		return quotaNoticeText
	}
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return genericFailureText
	}
	return err.Error()
}
