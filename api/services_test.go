package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/gateway"
)

type recordedCall struct {
	method string
	path   string
	query  string
	body   map[string]any
	auth   string
}

type storefrontStub struct {
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]func(w http.ResponseWriter)
}

func newStorefront(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*storefrontStub, *httptest.Server) {
	t.Helper()
	stub := &storefrontStub{routes: routes}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.body)
		}
		stub.mu.Lock()
		stub.calls = append(stub.calls, call)
		stub.mu.Unlock()

		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"no route"}`))
			return
		}
		handler(w)
	}))
	t.Cleanup(server.Close)
	return stub, server
}

func (s *storefrontStub) recorded() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newServices(t *testing.T, baseURL string, opts ...Option) (*Services, *core.MemoryKeyValueStore) {
	t.Helper()
	kv := core.NewMemoryKeyValueStore()
	cfg := core.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Retry.Count = 0
	client, err := gateway.NewClient(cfg, gateway.WithKeyValueStore(kv))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	tokens, ok := client.Tokens().(*core.KeyValueTokenStore)
	if !ok {
		t.Fatalf("expected key value token store, got %T", client.Tokens())
	}
	return New(client, tokens, opts...), kv
}

type countingGateway struct {
	calls int
}

func (g *countingGateway) Get(context.Context, string, map[string]string) core.Envelope {
	g.calls++
	return core.Envelope{}
}
func (g *countingGateway) Post(context.Context, string, any) core.Envelope {
	g.calls++
	return core.Envelope{}
}
func (g *countingGateway) Put(context.Context, string, any) core.Envelope {
	g.calls++
	return core.Envelope{}
}
func (g *countingGateway) Patch(context.Context, string, any) core.Envelope {
	g.calls++
	return core.Envelope{}
}
func (g *countingGateway) Delete(context.Context, string) core.Envelope {
	g.calls++
	return core.Envelope{}
}

func TestServices_InvalidInputNeverHitsTheNetwork(t *testing.T) {
	gw := &countingGateway{}
	services := New(gw, core.NewKeyValueTokenStore(core.NewMemoryKeyValueStore()))
	ctx := context.Background()

	envelopes := []core.Envelope{
		services.Auth.Login(ctx, "not-an-email", "pw").Envelope,
		services.Auth.Login(ctx, "a@example.com", " ").Envelope,
		services.Auth.Register(ctx, RegisterInput{Email: "a@example.com", Password: "pw", FirstName: "A"}).Envelope,
		services.Auth.ForgotPassword(ctx, ""),
		services.Auth.ResetPassword(ctx, "", "pw"),
		services.Auth.ChangePassword(ctx, "same", "same"),
		services.Catalog.Package(ctx, " ").Envelope,
		services.Catalog.Packages(ctx, PackageFilter{Page: -1}).Envelope,
		services.Orders.Create(ctx, CreateOrderInput{}).Envelope,
		services.Orders.Get(ctx, "").Envelope,
		services.Orders.Cancel(ctx, ""),
		services.ESIMs.Get(ctx, "").Envelope,
		services.ESIMs.Usage(ctx, "").Envelope,
		services.ESIMs.QR(ctx, "").Envelope,
		services.ESIMs.Update(ctx, "8901", ESIMUpdate{}).Envelope,
		services.Profile.Update(ctx, ProfileUpdate{}).Envelope,
		services.Profile.MarkNotificationRead(ctx, ""),
	}
	for i, env := range envelopes {
		if env.Success || env.Code != core.ErrorCodeBadInput || env.Status != 0 || env.Error == "" {
			t.Fatalf("case %d: expected BAD_INPUT envelope, got %+v", i, env)
		}
	}
	if gw.calls != 0 {
		t.Fatalf("expected no gateway calls, got %d", gw.calls)
	}
}

func TestAuthService_LoginStoresSession(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"POST /auth/login": reply(http.StatusOK, `{"success":true,"data":{"token":"tok_a","refreshToken":"ref_a","user":{"id":"usr_1","email":"a@example.com"}}}`),
		"GET /profile":     reply(http.StatusOK, `{"data":{"id":"usr_1","email":"a@example.com","firstName":"Ada"}}`),
	})
	services, kv := newServices(t, server.URL)
	ctx := context.Background()

	result := services.Auth.Login(ctx, " a@example.com ", "secret")
	if !result.OK() {
		t.Fatalf("expected login success, got %+v", result.Envelope)
	}
	if result.Value.Credentials().AccessToken != "tok_a" {
		t.Fatalf("unexpected session %+v", result.Value)
	}
	if body := stub.recorded()[0].body; body["email"] != "a@example.com" || body["password"] != "secret" {
		t.Fatalf("unexpected login body %+v", body)
	}
	if token, _, _ := kv.Get(ctx, core.StorageKeyAccessToken); token != "tok_a" {
		t.Fatalf("expected stored access token, got %q", token)
	}
	if !services.Auth.IsAuthenticated(ctx) {
		t.Fatalf("expected authenticated session")
	}
	user, found, err := services.Auth.CurrentUser(ctx)
	if err != nil || !found || user.ID != "usr_1" {
		t.Fatalf("expected cached user, got %+v %v %v", user, found, err)
	}

	profile := services.Profile.Get(ctx)
	if !profile.OK() || profile.Value.FirstName != "Ada" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if stub.recorded()[1].auth != "Bearer tok_a" {
		t.Fatalf("expected profile call to carry the stored token")
	}
	user, _, _ = services.Auth.CurrentUser(ctx)
	if user.FirstName != "Ada" {
		t.Fatalf("expected profile fetch to refresh the cached user, got %+v", user)
	}
}

func TestAuthService_FailedLoginStoresNothing(t *testing.T) {
	_, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"POST /auth/login": reply(http.StatusUnauthorized, `{"success":false,"message":"invalid credentials"}`),
	})
	services, kv := newServices(t, server.URL)

	result := services.Auth.Login(context.Background(), "a@example.com", "wrong")
	if result.OK() || result.Envelope.Code != "HTTP_401" || result.Envelope.Error != "invalid credentials" {
		t.Fatalf("unexpected result %+v", result.Envelope)
	}
	if kv.Len() != 0 {
		t.Fatalf("expected nothing stored")
	}
}

type logoutObserver struct {
	events []core.SessionEndedEvent
}

func (o *logoutObserver) SessionEnded(_ context.Context, event core.SessionEndedEvent) error {
	o.events = append(o.events, event)
	return nil
}

func TestAuthService_LogoutClearsSessionEvenWhenBackendFails(t *testing.T) {
	_, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"POST /auth/logout": reply(http.StatusBadRequest, `{"message":"already logged out"}`),
	})
	observer := &logoutObserver{}
	services, kv := newServices(t, server.URL, WithSessionObserver(observer))
	ctx := context.Background()
	if err := kv.MultiSet(ctx, map[string]string{
		core.StorageKeyAccessToken:  "tok_a",
		core.StorageKeyRefreshToken: "ref_a",
		core.StorageKeyUserData:     `{"id":"usr_1"}`,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	env := services.Auth.Logout(ctx)
	if env.Code != "HTTP_400" {
		t.Fatalf("expected backend envelope, got %+v", env)
	}
	if kv.Len() != 0 {
		t.Fatalf("expected session cleared")
	}
	if len(observer.events) != 1 || observer.events[0].Reason != core.SessionEndLogout {
		t.Fatalf("expected logout event, got %+v", observer.events)
	}
}

func TestAuthService_RegisterAndPasswordFlows(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"POST /auth/register":        reply(http.StatusCreated, `{"data":{"accessToken":"tok_r","user":{"id":"usr_2"}}}`),
		"POST /auth/forgot-password": reply(http.StatusOK, `{"message":"mail sent"}`),
		"POST /auth/reset-password":  reply(http.StatusOK, `{"success":true}`),
		"POST /auth/change-password": reply(http.StatusOK, `{"success":true}`),
	})
	services, kv := newServices(t, server.URL)
	ctx := context.Background()

	result := services.Auth.Register(ctx, RegisterInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "pw", Country: "GB",
	})
	if !result.OK() {
		t.Fatalf("register: %+v", result.Envelope)
	}
	if token, _, _ := kv.Get(ctx, core.StorageKeyAccessToken); token != "tok_r" {
		t.Fatalf("expected registered session stored, got %q", token)
	}

	if env := services.Auth.ForgotPassword(ctx, "ada@example.com"); !env.Success || env.Message != "mail sent" {
		t.Fatalf("forgot password: %+v", env)
	}
	if env := services.Auth.ResetPassword(ctx, "reset_tok", "new"); !env.Success {
		t.Fatalf("reset password: %+v", env)
	}
	if env := services.Auth.ChangePassword(ctx, "old", "new"); !env.Success {
		t.Fatalf("change password: %+v", env)
	}

	calls := stub.recorded()
	if calls[0].body["country"] != "GB" || calls[0].body["lastName"] != "Lovelace" {
		t.Fatalf("unexpected register body %+v", calls[0].body)
	}
	if calls[2].body["token"] != "reset_tok" || calls[2].body["password"] != "new" {
		t.Fatalf("unexpected reset body %+v", calls[2].body)
	}
	if calls[3].body["currentPassword"] != "old" || calls[3].body["newPassword"] != "new" {
		t.Fatalf("unexpected change body %+v", calls[3].body)
	}
}

func TestCatalogService(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"GET /countries": reply(http.StatusOK, `{"data":[{"code":"TR","name":"Turkey"}]}`),
		"GET /packages":  reply(http.StatusOK, `{"data":[{"id":"pkg_1","dataAmount":5120,"duration":30,"price":29.99}]}`),
	})
	services, _ := newServices(t, server.URL)
	ctx := context.Background()

	countries := services.Catalog.Countries(ctx)
	if !countries.OK() || countries.Value[0].Code != "TR" {
		t.Fatalf("countries: %+v", countries)
	}
	packages := services.Catalog.Packages(ctx, PackageFilter{CountryCode: "tr", Popular: true, Page: 2, Limit: 20})
	if !packages.OK() || core.FormatDataAmount(packages.Value[0].DataAmountMB) != "5 GB" {
		t.Fatalf("packages: %+v", packages)
	}
	if query := stub.recorded()[1].query; query != "country=TR&limit=20&page=2&popular=true" {
		t.Fatalf("unexpected package query %q", query)
	}

	missing := services.Catalog.Package(ctx, "nope")
	if missing.OK() || missing.Envelope.Code != "HTTP_404" {
		t.Fatalf("expected HTTP_404, got %+v", missing.Envelope)
	}
}

func TestOrderService(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"POST /orders":         reply(http.StatusCreated, `{"data":{"id":"ord_1","packageId":"pkg_1","status":"pending"}}`),
		"GET /orders":          reply(http.StatusOK, `{"data":[{"id":"ord_1","status":"completed"}]}`),
		"GET /orders/ord_1":    reply(http.StatusOK, `{"data":{"id":"ord_1","status":"completed"}}`),
		"DELETE /orders/ord_1": reply(http.StatusOK, `{"success":true,"message":"cancelled"}`),
	})
	services, _ := newServices(t, server.URL)
	ctx := context.Background()

	created := services.Orders.Create(ctx, CreateOrderInput{PackageID: " pkg_1 ", PaymentMethod: "card"})
	if !created.OK() || created.Value.Status != core.OrderStatusPending {
		t.Fatalf("create: %+v", created)
	}
	listed := services.Orders.List(ctx, OrderFilter{Status: core.OrderStatusCompleted, Page: 1, Limit: 5})
	if !listed.OK() || len(listed.Value) != 1 {
		t.Fatalf("list: %+v", listed)
	}
	if got := services.Orders.Get(ctx, "ord_1"); !got.OK() || got.Value.ID != "ord_1" {
		t.Fatalf("get: %+v", got)
	}
	if env := services.Orders.Cancel(ctx, "ord_1"); !env.Success || env.Message != "cancelled" {
		t.Fatalf("cancel: %+v", env)
	}

	calls := stub.recorded()
	if calls[0].body["packageId"] != "pkg_1" {
		t.Fatalf("expected trimmed package id, got %+v", calls[0].body)
	}
	if calls[1].query != "limit=5&page=1&status=completed" {
		t.Fatalf("unexpected list query %q", calls[1].query)
	}
	if calls[3].method != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", calls[3].method)
	}
}

func TestESIMService(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"GET /esims":            reply(http.StatusOK, `{"data":[{"iccid":"8901","status":"active","dataLimit":1000,"dataUsed":250}]}`),
		"GET /esims/8901":       reply(http.StatusOK, `{"data":{"iccid":"8901","status":"active"}}`),
		"GET /esims/8901/usage": reply(http.StatusOK, `{"data":{"iccid":"8901","dataUsed":250,"dataLimit":1000}}`),
		"GET /esims/8901/qr":    reply(http.StatusOK, `{"data":{"iccid":"8901","activationCode":"K2","smdpAddress":"smdp.example.com"}}`),
		"PATCH /esims/8901":     reply(http.StatusOK, `{"data":{"iccid":"8901","status":"inactive"}}`),
	})
	services, _ := newServices(t, server.URL)
	ctx := context.Background()

	listed := services.ESIMs.List(ctx, core.ESIMStatusActive)
	if !listed.OK() || listed.Value[0].UsagePercent() != 25 {
		t.Fatalf("list: %+v", listed)
	}
	if got := services.ESIMs.Get(ctx, "8901"); !got.OK() {
		t.Fatalf("get: %+v", got.Envelope)
	}
	if usage := services.ESIMs.Usage(ctx, "8901"); !usage.OK() || usage.Value.DataUsedMB != 250 {
		t.Fatalf("usage: %+v", usage)
	}
	qr := services.ESIMs.QR(ctx, "8901")
	if !qr.OK() || qr.Value.LPAString() != "LPA:1$smdp.example.com$K2" {
		t.Fatalf("qr: %+v", qr)
	}
	updated := services.ESIMs.Deactivate(ctx, "8901")
	if !updated.OK() || updated.Value.Status != core.ESIMStatusInactive {
		t.Fatalf("deactivate: %+v", updated)
	}

	calls := stub.recorded()
	if calls[0].query != "status=active" {
		t.Fatalf("unexpected list query %q", calls[0].query)
	}
	if calls[4].body["status"] != "inactive" {
		t.Fatalf("unexpected patch body %+v", calls[4].body)
	}
	if _, ok := calls[4].body["label"]; ok {
		t.Fatalf("expected nil label to be omitted")
	}
}

func TestProfileService(t *testing.T) {
	stub, server := newStorefront(t, map[string]func(w http.ResponseWriter){
		"PUT /profile":                 reply(http.StatusOK, `{"data":{"id":"usr_1","phone":"+90"}}`),
		"GET /notifications":           reply(http.StatusOK, `{"data":[{"id":"n1","title":"Welcome"}]}`),
		"PATCH /notifications/n1/read": reply(http.StatusOK, `{"success":true}`),
	})
	services, _ := newServices(t, server.URL)
	ctx := context.Background()

	updated := services.Profile.Update(ctx, ProfileUpdate{Phone: "+90"})
	if !updated.OK() || updated.Value.Phone != "+90" {
		t.Fatalf("update: %+v", updated)
	}
	user, found, _ := services.Auth.CurrentUser(ctx)
	if !found || user.Phone != "+90" {
		t.Fatalf("expected cached profile to be refreshed, got %+v", user)
	}
	notifications := services.Profile.Notifications(ctx)
	if !notifications.OK() || notifications.Value[0].Title != "Welcome" {
		t.Fatalf("notifications: %+v", notifications)
	}
	if env := services.Profile.MarkNotificationRead(ctx, "n1"); !env.Success {
		t.Fatalf("mark read: %+v", env)
	}
	if calls := stub.recorded(); calls[0].method != http.MethodPut || calls[2].method != http.MethodPatch {
		t.Fatalf("unexpected methods %+v", calls)
	}
}
