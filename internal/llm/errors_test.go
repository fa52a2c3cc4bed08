package llm

import (
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status     int
		wantRetry  bool
		wantStatus int
	}{
		{http.StatusTooManyRequests, true, http.StatusTooManyRequests},
		{http.StatusPaymentRequired, false, http.StatusBadGateway},
		{http.StatusUnauthorized, false, http.StatusBadGateway},
		{http.StatusForbidden, false, http.StatusBadGateway},
		{http.StatusInternalServerError, true, http.StatusBadGateway},
		{http.StatusServiceUnavailable, true, http.StatusBadGateway},
	}
	for _, tc := range cases {
		got := classifyStatus(tc.status)
		if got.Retry != tc.wantRetry {
			t.Fatalf("status %d: retry = %v, want %v", tc.status, got.Retry, tc.wantRetry)
		}
		if got.Status != tc.wantStatus {
			t.Fatalf("status %d: mapped status = %d, want %d", tc.status, got.Status, tc.wantStatus)
		}
		if got.Message == "" {
			t.Fatalf("status %d: empty message", tc.status)
		}
	}
}

// Upstream bodies can carry provider account details; our error strings
// must always be our own.
func TestClassifyStatusNeverEchoesUpstreamText(t *testing.T) {
	for _, status := range []int{401, 402, 403, 429, 500} {
		msg := classifyStatus(status).Message
		if strings.Contains(msg, "quota") || strings.Contains(msg, "key") {
			t.Fatalf("status %d message %q looks like provider text", status, msg)
		}
	}
}
