package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/domain/auth/store"
	"assetdesk-client/internal/domain/eventbus"
	"assetdesk-client/internal/platform/observability"
	"assetdesk-client/internal/transport/http/apiclient"
)

type (
	// Profile re-exports the backend identity type for callers.
	Profile = model.Profile
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

// Requester sends one request through the authenticated client.
type Requester interface {
	Send(ctx context.Context, desc apiclient.Descriptor) (apiclient.Payload, error)
}

// Endpoints are the backend paths the session talks to.
type Endpoints struct {
	Login        string
	Registration string
	Logout       string
	Profile      string
}

// DefaultEndpoints returns the standard backend paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:        "/api/auth/login/",
		Registration: "/api/auth/registration/",
		Logout:       "/api/auth/logout/",
		Profile:      "/api/users/profile/",
	}
}

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Client    Requester
	Store     store.Store
	Bus       *eventbus.Bus
	Logger    Logger
	Endpoints Endpoints
}

// Manager owns the session state: who is logged in and whether that has
// been confirmed by the backend. Its methods are the only way to change it.
//
// No lock is held across network calls. Every operation that starts a new
// session epoch bumps generation; a slow result belonging to an older epoch
// is dropped instead of overwriting newer state.
type Manager struct {
	client    Requester
	store     store.Store
	bus       *eventbus.Bus
	logger    Logger
	endpoints Endpoints

	mu         sync.RWMutex
	status     model.Status
	user       model.Profile
	lastErr    string
	generation uint64

	// writeMu orders generation checks with the store writes they guard.
	writeMu sync.Mutex

	closeOnce sync.Once
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Client == nil {
		return nil, errors.New("session manager requires a client")
	}
	if opts.Store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("session manager requires a logger")
	}
	if opts.Bus == nil {
		opts.Logger.Warn("session manager has no event bus, forced invalidation will not be observed")
	}
	endpoints := opts.Endpoints
	defaults := DefaultEndpoints()
	if endpoints.Login == "" {
		endpoints.Login = defaults.Login
	}
	if endpoints.Registration == "" {
		endpoints.Registration = defaults.Registration
	}
	if endpoints.Logout == "" {
		endpoints.Logout = defaults.Logout
	}
	if endpoints.Profile == "" {
		endpoints.Profile = defaults.Profile
	}

	m := &Manager{
		client:    opts.Client,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    opts.Logger,
		endpoints: endpoints,
		status:    model.StatusAnonymous,
	}
	if m.bus != nil {
		if err := m.bus.Subscribe(eventbus.EventCredentialsCleared, m.onCredentialsCleared); err != nil {
			return nil, fmt.Errorf("subscribe to credential events: %w", err)
		}
	}
	return m, nil
}

// Close detaches the manager from the event bus.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.bus != nil {
			_ = m.bus.Unsubscribe(eventbus.EventCredentialsCleared, m.onCredentialsCleared)
		}
	})
	return nil
}

// User returns the current profile, nil when anonymous.
func (m *Manager) User() model.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) Status() model.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) IsAuthenticated() bool {
	return m.Status() == model.StatusAuthenticated
}

// Snapshot returns a consistent copy of the session.
func (m *Manager) Snapshot() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return model.Session{User: m.user, Status: m.status, Error: m.lastErr}
}

// AccessTokenExpiry reports the exp claim of the stored access token.
func (m *Manager) AccessTokenExpiry(ctx context.Context) (time.Time, bool) {
	token, ok := m.read(ctx, model.KeyAccessToken)
	if !ok || token == "" {
		return time.Time{}, false
	}
	return TokenExpiry(token)
}

// Bootstrap restores the session from the store. A cached profile is shown
// right away while the stored token is verified against the backend; a
// failed verification clears the store and settles anonymous without
// reporting an error.
func (m *Manager) Bootstrap(ctx context.Context) {
	ctx, end := observability.StartSpan(ctx, observability.ComponentSession, "bootstrap")
	var rejected error
	defer func() { end(rejected) }()

	gen := m.nextGeneration()
	m.transition(gen, model.StatusChecking, nil, "")

	token, ok := m.read(ctx, model.KeyAccessToken)
	if !ok || token == "" {
		m.transition(gen, model.StatusAnonymous, nil, "")
		return
	}

	if cached := m.cachedProfile(ctx); cached != nil {
		m.settleAuthenticated(ctx, gen, cached, false)
	}

	profile, err := m.fetchProfile(ctx)
	if err != nil {
		m.logger.Info("stored session rejected: %v", err)
		rejected = err
		m.settleAnonymous(ctx, gen)
		return
	}

	m.settleAuthenticated(ctx, gen, profile, true)
}

// Login authenticates with credentials and settles authenticated on success.
// Failures are reported in the Result and leave the session unchanged.
func (m *Manager) Login(ctx context.Context, credentials map[string]any) (res model.Result) {
	ctx, end := observability.StartSpan(ctx, observability.ComponentSession, "login")
	defer func() { end(res.Err()) }()

	payload, err := m.client.Send(ctx, apiclient.Descriptor{
		Method:   http.MethodPost,
		Path:     m.endpoints.Login,
		Body:     credentials,
		SkipAuth: true,
	})
	if err != nil {
		m.logger.Warn("login failed: %v", err)
		return m.fail(err.Error())
	}

	resp := model.ParseTokenResponse(payload.Raw())
	if resp.Credentials().AccessToken == "" {
		m.logger.Warn("login response carried no access token")
		return m.fail("login response did not include an access token")
	}
	return m.establish(ctx, resp)
}

// Register creates an account. A backend that does not log the new user in
// is not an error; the session is then left unchanged.
func (m *Manager) Register(ctx context.Context, data map[string]any) model.Result {
	payload, err := m.client.Send(ctx, apiclient.Descriptor{
		Method:   http.MethodPost,
		Path:     m.endpoints.Registration,
		Body:     data,
		SkipAuth: true,
	})
	if err != nil {
		m.logger.Warn("registration failed: %v", err)
		return m.fail(err.Error())
	}

	resp := model.ParseTokenResponse(payload.Raw())
	if resp.Credentials().AccessToken == "" {
		m.logger.Info("registration succeeded without auto-login")
		return model.Result{Success: true, User: resp.User}
	}
	return m.establish(ctx, resp)
}

// establish stores a fresh token pair, loads the profile and settles
// authenticated.
func (m *Manager) establish(ctx context.Context, resp model.TokenResponse) model.Result {
	creds := resp.Credentials()
	gen := m.nextGeneration()

	entries := map[string]string{model.KeyAccessToken: creds.AccessToken}
	if creds.RefreshToken != "" {
		entries[model.KeyRefreshToken] = creds.RefreshToken
	}
	m.writeMu.Lock()
	err := m.store.SetAll(ctx, entries)
	if err == nil && creds.RefreshToken == "" {
		err = m.store.Remove(ctx, model.KeyRefreshToken)
	}
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Error("persisting credentials failed: %v", err)
		return m.fail("could not store credentials: " + err.Error())
	}

	profile, err := m.fetchProfile(ctx)
	if err != nil {
		if resp.User == nil {
			m.logger.Warn("profile fetch after login failed: %v", err)
			m.settleAnonymous(ctx, gen)
			return m.fail(err.Error())
		}
		m.logger.Warn("profile fetch failed, using login response: %v", err)
		profile = resp.User
	}

	if !m.settleAuthenticated(ctx, gen, profile, true) {
		return m.fail("session changed during login")
	}
	m.logger.Info("logged in as %s", profile.Username())
	return model.Result{Success: true, User: profile}
}

// Logout tells the backend, ignoring its answer, then clears every stored
// credential and settles anonymous.
func (m *Manager) Logout(ctx context.Context) {
	ctx, end := observability.StartSpan(ctx, observability.ComponentSession, "logout")
	defer end(nil)

	var body any
	if refresh, ok := m.read(ctx, model.KeyRefreshToken); ok && refresh != "" {
		body = map[string]string{"refresh": refresh}
	}
	if _, err := m.client.Send(ctx, apiclient.Descriptor{
		Method: http.MethodPost,
		Path:   m.endpoints.Logout,
		Body:   body,
	}); err != nil {
		m.logger.Warn("backend logout failed: %v", err)
	}

	gen := m.nextGeneration()
	m.writeMu.Lock()
	if err := m.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error("clearing credentials failed: %v", err)
	}
	m.writeMu.Unlock()
	m.transition(gen, model.StatusAnonymous, nil, "")
	m.logger.Info("logged out")
}

// RefreshProfile reloads the profile of an authenticated session.
func (m *Manager) RefreshProfile(ctx context.Context) (model.Profile, error) {
	m.mu.RLock()
	gen, status := m.generation, m.status
	m.mu.RUnlock()
	if status != model.StatusAuthenticated {
		return nil, errors.New("not authenticated")
	}

	profile, err := m.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	if !m.settleAuthenticated(ctx, gen, profile, true) {
		return nil, errors.New("session changed during profile refresh")
	}
	return profile, nil
}

// onCredentialsCleared runs inside a bus dispatch, so its status event is
// deferred.
func (m *Manager) onCredentialsCleared(data eventbus.CredentialsClearedData) {
	gen := m.nextGeneration()
	if change, ok := m.apply(gen, model.StatusAnonymous, nil, ""); ok {
		m.bus.PublishDeferred(eventbus.EventSessionStatus, change)
		m.logger.Warn("session invalidated: %s", data.Reason)
	}
}

func (m *Manager) nextGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return m.generation
}

func (m *Manager) current(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation == gen
}

// transition applies the new state if gen is still current and tells
// observers. It reports whether the state was applied.
func (m *Manager) transition(gen uint64, status model.Status, user model.Profile, errMsg string) bool {
	change, ok := m.apply(gen, status, user, errMsg)
	if ok {
		m.bus.Publish(eventbus.EventSessionStatus, change)
	}
	return ok
}

func (m *Manager) apply(gen uint64, status model.Status, user model.Profile, errMsg string) (eventbus.StatusEventData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return eventbus.StatusEventData{}, false
	}
	previous := m.status
	m.status = status
	m.user = user
	m.lastErr = errMsg
	return eventbus.StatusEventData{Previous: previous, Current: status, User: user}, true
}

// settleAnonymous clears the store and settles anonymous unless a newer
// operation has taken over the session.
func (m *Manager) settleAnonymous(ctx context.Context, gen uint64) {
	m.writeMu.Lock()
	if !m.current(gen) {
		m.writeMu.Unlock()
		return
	}
	if err := m.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error("clearing credentials failed: %v", err)
	}
	m.writeMu.Unlock()
	m.transition(gen, model.StatusAnonymous, nil, "")
}

// settleAuthenticated moves to authenticated with profile, caching it first
// when persist is set. It gives up when gen is stale, and settles anonymous
// when the access token has vanished from the store, which happens when the
// client purged it and the event has not reached the manager yet.
func (m *Manager) settleAuthenticated(ctx context.Context, gen uint64, profile model.Profile, persist bool) bool {
	var data []byte
	if persist {
		var err error
		if data, err = sonic.ConfigStd.Marshal(profile); err != nil {
			m.logger.Warn("encoding profile failed: %v", err)
			data = nil
		}
	}

	m.writeMu.Lock()
	if !m.current(gen) {
		m.writeMu.Unlock()
		return false
	}
	if token, ok := m.read(ctx, model.KeyAccessToken); !ok || token == "" {
		change, applied := m.apply(gen, model.StatusAnonymous, nil, "")
		m.writeMu.Unlock()
		if applied {
			m.logger.Warn("access token disappeared before the session settled")
			m.bus.Publish(eventbus.EventSessionStatus, change)
		}
		return false
	}
	if data != nil {
		if err := m.store.Set(ctx, model.KeyUser, string(data)); err != nil {
			m.logger.Warn("caching profile failed: %v", err)
		}
	}
	change, applied := m.apply(gen, model.StatusAuthenticated, profile, "")
	m.writeMu.Unlock()

	if applied {
		m.bus.Publish(eventbus.EventSessionStatus, change)
	}
	return applied
}

func (m *Manager) fetchProfile(ctx context.Context) (model.Profile, error) {
	payload, err := m.client.Send(ctx, apiclient.Descriptor{Method: http.MethodGet, Path: m.endpoints.Profile})
	if err != nil {
		return nil, err
	}
	var profile model.Profile
	if err := payload.Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if profile == nil {
		return nil, errors.New("empty profile response")
	}
	return profile, nil
}

func (m *Manager) cachedProfile(ctx context.Context) model.Profile {
	raw, ok := m.read(ctx, model.KeyUser)
	if !ok || raw == "" {
		return nil
	}
	var profile model.Profile
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &profile); err != nil {
		m.logger.Warn("ignoring unreadable cached profile: %v", err)
		return nil
	}
	return profile
}

// read treats a failing store as empty; the failure is logged.
func (m *Manager) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Error("token store read %s failed: %v", key, err)
		return "", false
	}
	return v, ok
}

func (m *Manager) fail(msg string) model.Result {
	return model.Result{Success: false, Error: msg}
}
