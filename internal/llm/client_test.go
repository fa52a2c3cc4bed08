package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nyayachat/internal/config"
	"nyayachat/internal/models"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL: baseURL,
		Model:   "test-model",
		APIKey:  "test-key",
	})
}

func TestOpenStreamRelaysBodyUnmodified(t *testing.T) {
	const wire = "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, wire)
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL).OpenStream(context.Background(), []Turn{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("open stream failed: %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(got) != wire {
		t.Fatalf("relayed %q, want the exact upstream bytes", got)
	}
}

func TestOpenStreamErrorMapping(t *testing.T) {
	cases := []struct {
		upstream  int
		wantRetry bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusPaymentRequired, false},
		{http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.upstream)
			io.WriteString(w, `{"error":{"message":"secret account detail sk-12345"}}`)
		}))
		_, err := newTestClient(srv.URL).OpenStream(context.Background(), []Turn{{Role: models.RoleUser, Content: "hi"}})
		srv.Close()
		if err == nil {
			t.Fatalf("upstream %d: expected error", tc.upstream)
		}
		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("upstream %d: error type %T", tc.upstream, err)
		}
		if upErr.Retry != tc.wantRetry {
			t.Fatalf("upstream %d: retry = %v, want %v", tc.upstream, upErr.Retry, tc.wantRetry)
		}
		if strings.Contains(upErr.Message, "sk-12345") {
			t.Fatalf("upstream %d: leaked upstream body in %q", tc.upstream, upErr.Message)
		}
	}
}

func TestOpenStreamHonorsCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL).OpenStream(ctx, []Turn{{Role: models.RoleUser, Content: "hi"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCompleteReturnsAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Section 303 applies."}}]}`)
	}))
	defer srv.Close()

	answer, err := newTestClient(srv.URL).Complete(context.Background(), []Turn{{Role: models.RoleUser, Content: "theft"}})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if answer != "Section 303 applies." {
		t.Fatalf("answer = %q", answer)
	}
}

func TestCompleteMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Turn{{Role: models.RoleUser, Content: "hi"}})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error type %T: %v", err, err)
	}
	if !upErr.Retry || upErr.Status != http.StatusTooManyRequests {
		t.Fatalf("mapped error = %+v", upErr)
	}
}

func TestGenerateTitleTrimsModelOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  Stolen Phone FIR Guidance \n"}}]}`)
	}))
	defer srv.Close()

	title, err := newTestClient(srv.URL).GenerateTitle(context.Background(), []*models.Message{
		{Role: models.RoleUser, Content: "my phone was stolen"},
		{Role: models.RoleAssistant, Content: "file an FIR"},
	})
	if err != nil {
		t.Fatalf("generate title failed: %v", err)
	}
	if title != "Stolen Phone FIR Guidance" {
		t.Fatalf("title = %q", title)
	}
}

func TestGenerateTitleEmptyHistory(t *testing.T) {
	title, err := newTestClient("http://127.0.0.1:0").GenerateTitle(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "New Conversation" {
		t.Fatalf("title = %q", title)
	}
}
