package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kodiq-ai/academy-shell/internal/store"
)

type recordedRequest struct {
	method string
	auth   string
	body   map[string]string
}

func newPushServer(t *testing.T) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestRegisterSendsTokenWithBearerAuth(t *testing.T) {
	srv, requests := newPushServer(t)
	st := store.NewInMemoryStore()
	r := NewRegistrar(NewMockTokenSource(), st, srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Register(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.method)
	}
	if req.auth != "Bearer session-token" {
		t.Errorf("unexpected Authorization %q", req.auth)
	}
	if req.body["token"] != "device-token-1" || req.body["platform"] != "ios" {
		t.Errorf("unexpected payload %v", req.body)
	}
	if req.body["installationId"] == "" {
		t.Error("missing installation id")
	}

	if cached, ok, _ := st.GetItem("fcm_token"); !ok || cached != "device-token-1" {
		t.Errorf("token not cached, got %q", cached)
	}
}

func TestRegisterSkipsWhenTokenUnchanged(t *testing.T) {
	srv, requests := newPushServer(t)
	st := store.NewInMemoryStore()
	st.SetItem("fcm_token", "device-token-1")
	r := NewRegistrar(NewMockTokenSource(), st, srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Register(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("expected no requests for unchanged token, got %d", len(*requests))
	}
}

func TestRegisterSkipsWhenPermissionDenied(t *testing.T) {
	srv, requests := newPushServer(t)
	source := NewMockTokenSource()
	source.Permitted = false
	r := NewRegistrar(source, store.NewInMemoryStore(), srv.URL, "android", WithHTTPClient(srv.Client()))

	if err := r.Register(context.Background(), "session-token"); err != nil {
		t.Fatalf("denied permission must not be an error: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("expected no requests, got %d", len(*requests))
	}
}

func TestRegisterReturnsErrorOnTokenFetchFailure(t *testing.T) {
	srv, _ := newPushServer(t)
	source := NewMockTokenSource()
	source.TokenErr = errors.New("messaging unavailable")
	r := NewRegistrar(source, store.NewInMemoryStore(), srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Register(context.Background(), "session-token"); err == nil {
		t.Error("expected error from token fetch failure")
	}
}

func TestUnregisterUsesCachedToken(t *testing.T) {
	srv, requests := newPushServer(t)
	st := store.NewInMemoryStore()
	st.SetItem("fcm_token", "device-token-1")
	r := NewRegistrar(NewMockTokenSource(), st, srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Unregister(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.method != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", req.method)
	}
	if req.body["token"] != "device-token-1" {
		t.Errorf("unexpected payload %v", req.body)
	}
	if _, ok, _ := st.GetItem("fcm_token"); ok {
		t.Error("cached token survived unregistration")
	}
}

func TestUnregisterNoopWithoutCachedToken(t *testing.T) {
	srv, requests := newPushServer(t)
	r := NewRegistrar(NewMockTokenSource(), store.NewInMemoryStore(), srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Unregister(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("expected no requests, got %d", len(*requests))
	}
}

func TestWatchRefreshReplacesRotatedToken(t *testing.T) {
	srv, requests := newPushServer(t)
	st := store.NewInMemoryStore()
	st.SetItem("fcm_token", "device-token-1")
	source := NewMockTokenSource()
	r := NewRegistrar(source, st, srv.URL, "ios", WithHTTPClient(srv.Client()))

	unsub := r.WatchRefresh(context.Background(), func() string { return "session-token" })
	defer unsub()

	source.Rotate("device-token-2")

	if len(*requests) != 2 {
		t.Fatalf("expected unregister+register, got %d requests", len(*requests))
	}
	if (*requests)[0].method != http.MethodDelete || (*requests)[0].body["token"] != "device-token-1" {
		t.Errorf("expected stale token DELETE first, got %+v", (*requests)[0])
	}
	if (*requests)[1].method != http.MethodPost || (*requests)[1].body["token"] != "device-token-2" {
		t.Errorf("expected new token POST second, got %+v", (*requests)[1])
	}
	if cached, _, _ := st.GetItem("fcm_token"); cached != "device-token-2" {
		t.Errorf("cache not updated, got %q", cached)
	}
}

func TestWatchRefreshIgnoresRotationWithoutSession(t *testing.T) {
	srv, requests := newPushServer(t)
	source := NewMockTokenSource()
	r := NewRegistrar(source, store.NewInMemoryStore(), srv.URL, "ios", WithHTTPClient(srv.Client()))

	unsub := r.WatchRefresh(context.Background(), func() string { return "" })
	defer unsub()

	source.Rotate("device-token-2")
	if len(*requests) != 0 {
		t.Errorf("expected no requests without a session, got %d", len(*requests))
	}
}

func TestInstallationIDStable(t *testing.T) {
	srv, requests := newPushServer(t)
	st := store.NewInMemoryStore()
	source := NewMockTokenSource()
	r := NewRegistrar(source, st, srv.URL, "ios", WithHTTPClient(srv.Client()))

	if err := r.Register(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st.RemoveItem("fcm_token")
	if err := r.Register(context.Background(), "session-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*requests))
	}
	first := (*requests)[0].body["installationId"]
	second := (*requests)[1].body["installationId"]
	if first == "" || first != second {
		t.Errorf("installation id not stable: %q vs %q", first, second)
	}
}
