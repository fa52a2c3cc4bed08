package llm

import "net/http"

// UpstreamError is the caller-facing translation of an upstream gateway
// failure. The upstream response body is never carried here; Message is
// always one of our own strings.
type UpstreamError struct {
	Message string
	Retry   bool
	Status  int
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// classifyStatus maps an upstream HTTP status to a caller-facing outcome.
// Rate limiting is retryable, billing/credential problems are terminal,
// anything else non-successful is a generic retryable failure.
func classifyStatus(status int) *UpstreamError {
	switch {
	case status == http.StatusTooManyRequests:
		return &UpstreamError{
			Message: "assistant is handling high traffic, please retry shortly",
			Retry:   true,
			Status:  http.StatusTooManyRequests,
		}
	case status == http.StatusPaymentRequired,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return &UpstreamError{
			Message: "assistant is temporarily unavailable",
			Retry:   false,
			Status:  http.StatusBadGateway,
		}
	default:
		return &UpstreamError{
			Message: "assistant request failed, please retry",
			Retry:   true,
			Status:  http.StatusBadGateway,
		}
	}
}
