package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/transport"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) snapshot() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

type recordingObserver struct {
	mu     sync.Mutex
	events []core.SessionEndedEvent
}

func (o *recordingObserver) SessionEnded(_ context.Context, event core.SessionEndedEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func testConfig(baseURL string) core.Config {
	cfg := core.DefaultConfig()
	cfg.BaseURL = baseURL
	return cfg
}

func seedCredentials(t *testing.T, kv core.KeyValueStore, access string, refresh string) {
	t.Helper()
	values := map[string]string{}
	if access != "" {
		values[core.StorageKeyAccessToken] = access
	}
	if refresh != "" {
		values[core.StorageKeyRefreshToken] = refresh
	}
	if err := kv.MultiSet(context.Background(), values); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(testConfig(baseURL), opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_SuccessUnwrapsNestedData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("country"); got != "TR" {
			t.Errorf("expected country query TR, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected json content type, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"message":"found","data":[{"id":"pkg_1"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	env := client.Get(context.Background(), "/packages", map[string]string{"country": "TR"})
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	if env.Status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", env.Status)
	}
	if env.Message != "found" {
		t.Fatalf("expected body message, got %q", env.Message)
	}
	if string(env.Data) != `[{"id":"pkg_1"}]` {
		t.Fatalf("expected nested data payload, got %s", env.Data)
	}
}

func TestClient_SuccessWithoutDataKeepsWholeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ord_1","status":"pending"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	env := client.Post(context.Background(), "/orders", map[string]any{"packageId": "pkg_1"})
	if !env.Success || env.Status != http.StatusCreated {
		t.Fatalf("expected 201 success, got %+v", env)
	}
	if env.Message != "OK" {
		t.Fatalf("expected default message, got %q", env.Message)
	}
	if string(env.Data) != `{"id":"ord_1","status":"pending"}` {
		t.Fatalf("expected raw body as data, got %s", env.Data)
	}
}

func TestClient_NullDataFallsBackToBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer server.Close()

	env := newTestClient(t, server.URL).Get(context.Background(), "/profile", nil)
	if string(env.Data) != `{"success":true,"data":null}` {
		t.Fatalf("expected body as data, got %s", env.Data)
	}
}

func TestClient_NonJSONSuccessBodyIsEncodedAsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	env := newTestClient(t, server.URL).Get(context.Background(), "/ping", nil)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if text != "pong" {
		t.Fatalf("expected pong, got %q", text)
	}
}

func TestClient_RepeatedGetsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"id":"pkg_1"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	first := client.Get(context.Background(), "/packages/pkg_1", nil)
	second := client.Get(context.Background(), "/packages/pkg_1", nil)
	if string(first.Data) != string(second.Data) || first.Status != second.Status {
		t.Fatalf("expected identical envelopes, got %+v and %+v", first, second)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one call per get, got %d", calls.Load())
	}
}

func TestClient_AttachesStoredAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok_a" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("expected request id header")
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	env := newTestClient(t, server.URL, WithKeyValueStore(kv)).Get(context.Background(), "/profile", nil)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
}

func TestClient_NoTokenSendsNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no authorization header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	env := newTestClient(t, server.URL).Get(context.Background(), "/countries", nil)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
}

func TestClient_RefreshesOnceAndResendsWithNewToken(t *testing.T) {
	var refreshCalls atomic.Int32
	var profileCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"refreshToken":"ref_a"`) {
				t.Errorf("expected refresh token in body, got %s", body)
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"token":"tok_b","refreshToken":"ref_b"}}`))
		case "/profile":
			profileCalls.Add(1)
			if r.Header.Get("Authorization") == "Bearer tok_b" {
				_, _ = w.Write([]byte(`{"data":{"id":"usr_1"}}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"expired"}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	client := newTestClient(t, server.URL, WithKeyValueStore(kv))

	env := client.Get(context.Background(), "/profile", nil)
	if !env.Success {
		t.Fatalf("expected success after refresh, got %+v", env)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refreshCalls.Load())
	}
	if profileCalls.Load() != 2 {
		t.Fatalf("expected original call plus one resend, got %d", profileCalls.Load())
	}
	creds, err := client.Tokens().Credentials(context.Background())
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	if creds.AccessToken != "tok_b" || creds.RefreshToken != "ref_b" {
		t.Fatalf("expected refreshed pair to be stored, got %+v", creds)
	}
}

func TestClient_SecondUnauthorizedDoesNotRefreshAgain(t *testing.T) {
	var refreshCalls atomic.Int32
	var profileCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			_, _ = w.Write([]byte(`{"data":{"token":"tok_b"}}`))
			return
		}
		profileCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"still unauthorized","code":"AUTH_EXPIRED"}`))
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	client := newTestClient(t, server.URL, WithKeyValueStore(kv))

	env := client.Get(context.Background(), "/profile", nil)
	if env.Success || env.Code != "HTTP_401" || env.Status != http.StatusUnauthorized {
		t.Fatalf("expected HTTP_401 failure, got %+v", env)
	}
	if env.Error != "still unauthorized" {
		t.Fatalf("expected server message, got %q", env.Error)
	}
	if env.ServerCode != "AUTH_EXPIRED" {
		t.Fatalf("expected server code, got %q", env.ServerCode)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refreshCalls.Load())
	}
	if profileCalls.Load() != 2 {
		t.Fatalf("expected two profile calls, got %d", profileCalls.Load())
	}
	creds, _ := client.Tokens().Credentials(context.Background())
	if creds.RefreshToken != "ref_a" {
		t.Fatalf("expected old refresh token kept when none returned, got %q", creds.RefreshToken)
	}
}

func TestClient_MissingRefreshTokenEndsSession(t *testing.T) {
	var refreshCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "")
	if err := kv.Set(context.Background(), core.StorageKeyUserData, `{"id":"usr_1"}`); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	observer := &recordingObserver{}
	client := newTestClient(t, server.URL, WithKeyValueStore(kv), WithSessionObserver(observer))

	env := client.Get(context.Background(), "/orders", nil)
	if env.Code != "HTTP_401" || env.Status != http.StatusUnauthorized {
		t.Fatalf("expected HTTP_401, got %+v", env)
	}
	if env.Error != "server error" {
		t.Fatalf("expected fallback message, got %q", env.Error)
	}
	if refreshCalls.Load() != 0 {
		t.Fatalf("expected no refresh call, got %d", refreshCalls.Load())
	}
	if kv.Len() != 0 {
		t.Fatalf("expected all session keys removed, %d left", kv.Len())
	}
	if observer.count() != 1 {
		t.Fatalf("expected one session ended event, got %d", observer.count())
	}
	if observer.events[0].Reason != core.SessionEndMissingRefreshToken {
		t.Fatalf("unexpected reason %q", observer.events[0].Reason)
	}
}

func TestClient_FailedRefreshEndsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"invalid refresh token"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	observer := &recordingObserver{}
	client := newTestClient(t, server.URL, WithKeyValueStore(kv), WithSessionObserver(observer))

	env := client.Get(context.Background(), "/esims", nil)
	if env.Code != "HTTP_401" {
		t.Fatalf("expected original 401 to surface, got %+v", env)
	}
	if kv.Len() != 0 {
		t.Fatalf("expected credentials cleared")
	}
	if observer.count() != 1 || observer.events[0].Reason != core.SessionEndRefreshFailed {
		t.Fatalf("expected refresh_failed event, got %+v", observer.events)
	}
}

func TestClient_RetriesServerErrorsWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, WithSleeper(sleeper.Sleep))

	env := client.Get(context.Background(), "/countries", nil)
	if env.Success || env.Code != "HTTP_503" || env.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP_503 failure, got %+v", env)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 1 call plus 3 retries, got %d", calls.Load())
	}
	delays := sleeper.snapshot()
	expected := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(delays) != len(expected) {
		t.Fatalf("expected %d waits, got %v", len(expected), delays)
	}
	for i := range expected {
		if delays[i] != expected[i] {
			t.Fatalf("wait %d: expected %s, got %s", i, expected[i], delays[i])
		}
	}
}

func TestClient_RetryRecoversAfterTransientServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	env := newTestClient(t, server.URL, WithSleeper(sleeper.Sleep)).Get(context.Background(), "/countries", nil)
	if !env.Success {
		t.Fatalf("expected success after retry, got %+v", env)
	}
	if calls.Load() != 2 || len(sleeper.snapshot()) != 1 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"package not found"}`))
	}))
	defer server.Close()

	env := newTestClient(t, server.URL).Get(context.Background(), "/packages/nope", nil)
	if env.Code != "HTTP_404" || env.Error != "package not found" {
		t.Fatalf("expected HTTP_404 with server error text, got %+v", env)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestClient_RefreshThenServerErrorsStaysBounded(t *testing.T) {
	var refreshCalls atomic.Int32
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			_, _ = w.Write([]byte(`{"data":{"token":"tok_b"}}`))
			return
		}
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok_b" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, WithKeyValueStore(kv), WithSleeper(sleeper.Sleep))

	env := client.Get(context.Background(), "/orders", nil)
	if env.Code != "HTTP_500" {
		t.Fatalf("expected HTTP_500, got %+v", env)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", refreshCalls.Load())
	}
	// 401, resend after refresh, then three retries.
	if calls.Load() != 5 {
		t.Fatalf("expected 5 calls, got %d", calls.Load())
	}
}

func TestClient_NetworkUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	sleeper := &recordingSleeper{}
	env := newTestClient(t, baseURL, WithSleeper(sleeper.Sleep)).Get(context.Background(), "/countries", nil)
	if env.Success || env.Code != core.ErrorCodeNetwork || env.Status != 0 {
		t.Fatalf("expected NETWORK_ERROR with status 0, got %+v", env)
	}
	if len(sleeper.snapshot()) != 0 {
		t.Fatalf("expected network failures not to be retried")
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	cfg.TimeoutMS = 50
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	env := client.Get(context.Background(), "/countries", nil)
	if env.Code != core.ErrorCodeTimeout || env.Status != 0 {
		t.Fatalf("expected TIMEOUT with status 0, got %+v", env)
	}
}

func TestClient_UnencodableBodyIsUnknownError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	env := newTestClient(t, server.URL).Post(context.Background(), "/orders", map[string]any{"bad": make(chan int)})
	if env.Code != core.ErrorCodeUnknown || env.Status != 0 {
		t.Fatalf("expected UNKNOWN_ERROR, got %+v", env)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestClient_PanicInMiddlewareBecomesUnknownError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	panicking := func(transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(context.Context, transport.Request) (transport.Response, error) {
			panic("boom")
		})
	}
	client := newTestClient(t, server.URL, WithMiddleware(panicking))
	env := client.Get(context.Background(), "/countries", nil)
	if env.Code != core.ErrorCodeUnknown {
		t.Fatalf("expected UNKNOWN_ERROR, got %+v", env)
	}
}

func TestClient_CoalescesConcurrentRefreshes(t *testing.T) {
	var refreshCalls atomic.Int32
	gate := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			<-gate
			_, _ = w.Write([]byte(`{"data":{"token":"tok_b","refreshToken":"ref_b"}}`))
			return
		}
		if r.Header.Get("Authorization") == "Bearer tok_b" {
			_, _ = w.Write([]byte(`{"data":{}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	kv := core.NewMemoryKeyValueStore()
	seedCredentials(t, kv, "tok_a", "ref_a")
	client := newTestClient(t, server.URL, WithKeyValueStore(kv), WithRefreshCoalescing())

	const workers = 4
	var wg sync.WaitGroup
	results := make([]core.Envelope, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			results[index] = client.Get(context.Background(), "/profile", nil)
		}(i)
	}
	for refreshCalls.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, env := range results {
		if !env.Success {
			t.Fatalf("worker %d: expected success, got %+v", i, env)
		}
	}
	if refreshCalls.Load() < 1 || refreshCalls.Load() >= workers {
		t.Fatalf("expected refreshes to be shared, got %d", refreshCalls.Load())
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.BaseURL = "ftp://example.com"
	if _, err := NewClient(cfg); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}
