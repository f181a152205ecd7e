package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/domain/auth/store"
	"assetdesk-client/internal/domain/eventbus"
)

// fakeBackend accepts exactly one access token at a time and rotates it on
// refresh, like the real backend.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server
	mux    *http.ServeMux

	mu           sync.Mutex
	validAccess  string
	validRefresh string
	nextAccess   string
	nextRefresh  string

	refreshCalls atomic.Int32
	// refreshStatus overrides the refresh endpoint's status when non-zero.
	refreshStatus int
	refreshBody   string
	// refreshGate, when set, blocks the refresh handler until closed.
	refreshGate chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:            t,
		mux:          http.NewServeMux(),
		validAccess:  "fresh-access",
		validRefresh: "refresh-1",
		nextAccess:   "fresh-access",
		nextRefresh:  "refresh-2",
	}
	b.mux.HandleFunc("/api/auth/token/refresh/", b.handleRefresh)
	b.server = httptest.NewServer(b.mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if r.Header.Get("Authorization") != "" {
		b.t.Errorf("refresh call must not carry a bearer token")
	}
	if b.refreshGate != nil {
		<-b.refreshGate
	}
	if b.refreshStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.refreshStatus)
		_, _ = io.WriteString(w, b.refreshBody)
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Refresh != b.validRefresh {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`)
		return
	}
	b.validAccess = b.nextAccess
	b.validRefresh = b.nextRefresh
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"access":%q,"refresh":%q}`, b.validAccess, b.validRefresh)
}

// authorized reports whether r carries the currently valid access token.
func (b *fakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+b.validAccess
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
}

// protect serves fn only to requests holding the valid access token.
func (b *fakeBackend) protect(path string, fn http.HandlerFunc) {
	b.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			writeUnauthorized(w)
			return
		}
		fn(w, r)
	})
}

type testClient struct {
	client *Client
	store  store.Store
	bus    *eventbus.Bus
}

func newTestClient(t *testing.T, backend *fakeBackend, opts ...func(*Options)) *testClient {
	t.Helper()
	s := store.NewMemory()
	bus := eventbus.New()
	o := Options{
		BaseURL:        backend.server.URL,
		Store:          s,
		Bus:            bus,
		Timeout:        5 * time.Second,
		RefreshTimeout: 5 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	return &testClient{client: c, store: s, bus: bus}
}

func (tc *testClient) seed(t *testing.T, access, refresh string) {
	t.Helper()
	entries := map[string]string{model.KeyUser: `{"username":"admin"}`}
	if access != "" {
		entries[model.KeyAccessToken] = access
	}
	if refresh != "" {
		entries[model.KeyRefreshToken] = refresh
	}
	require.NoError(t, tc.store.SetAll(context.Background(), entries))
}

func (tc *testClient) value(key string) (string, bool) {
	v, ok, _ := tc.store.Get(context.Background(), key)
	return v, ok
}
