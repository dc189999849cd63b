package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fitstack/planworker/fault"
)

// testProvider targets an httptest server with no auth.
type testProvider struct{}

func (testProvider) Name() string                 { return "test" }
func (testProvider) BuildURL(base string) string  { return base + "/chat/completions" }
func (testProvider) SetHeaders(req *http.Request) {}
func (testProvider) BuildRequestBody(model string, messages []Message, temperature float64, maxTokens int) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"model":%q,"max_tokens":%d,"stream":true}`, model, maxTokens)), nil
}

func init() {
	RegisterProvider(testProvider{})
}

// sseBody renders an SSE stream delivering text in chunks.
func sseBody(chunks []string, terminated bool) string {
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk))
	}
	if terminated {
		b.WriteString("data: [DONE]\n\n")
	}
	return b.String()
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient("test", url, "test-model", opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerateAccumulatesStream(t *testing.T) {
	reply := `{"monday": {"rest": false, "focus": ["Chest"]}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseBody([]string{reply[:20], reply[20:]}, true)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.Generate(context.Background(), "system", "user", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != reply {
		t.Errorf("got %q, want %q", got, reply)
	}
}

func TestGenerateRejectsShortReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sseBody([]string{"{}"}, true)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Generate(context.Background(), "system", "user", 1000)
	if err == nil {
		t.Fatal("expected error for short reply")
	}
	if fault.Code(err) != fault.AIError {
		t.Errorf("code = %s, want AI_ERROR", fault.Code(err))
	}
}

func TestGenerateStatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{http.StatusUnauthorized, fault.AuthError},
		{http.StatusPaymentRequired, fault.QuotaExceeded},
		{http.StatusTooManyRequests, fault.RateLimited},
		{http.StatusInternalServerError, fault.AIError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Generate(context.Background(), "system", "user", 1000)
			if err == nil {
				t.Fatal("expected error")
			}
			if fault.Code(err) != tt.wantCode {
				t.Errorf("code = %s, want %s", fault.Code(err), tt.wantCode)
			}
		})
	}
}

func TestGenerateConnectTimeout(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, WithTimeouts(50*time.Millisecond, time.Second))
	_, err := client.Generate(context.Background(), "system", "user", 1000)
	<-started
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if fault.Code(err) != fault.AITimeout {
		t.Errorf("code = %s, want AI_TIMEOUT", fault.Code(err))
	}
}

func TestGenerateStreamTimeoutBeforeFirstByte(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Headers go out, then the body never starts.
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, WithTimeouts(time.Second, 50*time.Millisecond))
	_, err := client.Generate(context.Background(), "system", "user", 1000)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if fault.Code(err) != fault.AITimeout {
		t.Errorf("code = %s, want AI_TIMEOUT", fault.Code(err))
	}
}

func TestGenerateSoftFloorKeepsPartialOutput(t *testing.T) {
	long := strings.Repeat("x", 3000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(sseBody([]string{long}, false)))
		flusher.Flush()
		// Kill the connection without [DONE].
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithSoftFloor(2000))
	got, err := client.Generate(context.Background(), "system", "user", 1000)
	if err != nil {
		t.Fatalf("expected partial output above soft floor, got error: %v", err)
	}
	if len(got) != 3000 {
		t.Errorf("len = %d, want 3000", len(got))
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(sseBody([]string{strings.Repeat("y", 40)}, true)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithRetryConfig(RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1,
		MaxBackoff:        time.Millisecond,
	}))
	got, err := client.Generate(context.Background(), "system", "user", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
}

func TestGenerateDoesNotRetryFatal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithRetryConfig(RetryConfig{
		MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1, MaxBackoff: time.Millisecond,
	}))
	_, err := client.Generate(context.Background(), "system", "user", 1000)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (auth failures must not retry)", calls)
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsFatal(fault.New(fault.AuthError, "nope")) {
		t.Error("auth errors are fatal")
	}
	if !IsFatal(fault.New(fault.QuotaExceeded, "nope")) {
		t.Error("quota errors are fatal")
	}
	if IsFatal(fault.New(fault.RateLimited, "slow down")) {
		t.Error("rate limits are not fatal")
	}
	if !IsTransient(fault.New(fault.AITimeout, "stall")) {
		t.Error("timeouts are transient")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient("nonexistent", "", "model")
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.Code(err) != fault.ConfigError {
		t.Errorf("code = %s, want CONFIG_ERROR", fault.Code(err))
	}
}

func TestRetryBackoff(t *testing.T) {
	cfg := RetryConfig{BackoffBase: 2 * time.Second, BackoffMultiplier: 2, MaxBackoff: 15 * time.Second}

	if got := cfg.Backoff(1); got != 2*time.Second {
		t.Errorf("attempt 1 backoff = %v", got)
	}
	if got := cfg.Backoff(2); got != 4*time.Second {
		t.Errorf("attempt 2 backoff = %v", got)
	}
	if got := cfg.Backoff(5); got != 15*time.Second {
		t.Errorf("attempt 5 backoff should cap at %v, got %v", cfg.MaxBackoff, got)
	}
}
