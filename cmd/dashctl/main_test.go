package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ptesting "assetdesk-client/internal/platform/testing"
	httptransport "assetdesk-client/internal/transport/http"
	"assetdesk-client/internal/transport/http/mockapi"
)

type harness struct {
	env map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := ptesting.SetupTestConfig(t)
	logger := ptesting.SetupTestLogger(t)

	svc, err := mockapi.NewService(cfg.Mock, logger.Tagged("MOCK"))
	require.NoError(t, err)
	router, err := httptransport.Build(httptransport.Options{Logger: logger.Tagged("HTTP")})
	require.NoError(t, err)
	svc.Register(router)
	srv := httptest.NewServer(router.Engine)
	t.Cleanup(srv.Close)

	return &harness{env: map[string]string{
		"API_BASE_URL":           srv.URL,
		"DASHBOARD_STORE_DRIVER": "file",
		"DASHBOARD_STORE_PATH":   filepath.Join(t.TempDir(), "session.json"),
		"DASHBOARD_LOG_LEVEL":    "error",
	}}
}

func (h *harness) lookup(key string) (string, bool) {
	v, ok := h.env[key]
	return v, ok
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--no-dotenv"}, args...)
	err := execute(context.Background(), args, h.lookup, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "login", "-u", "admin", "-p", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "logged in as admin\n", out)

	// every invocation is a new process reading the same file store
	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "authenticated"`)
	assert.Contains(t, out, `"access_expires_at"`)

	out, err = h.run(t, "", "request", "GET", "/api/assets/")
	require.NoError(t, err)
	assert.Contains(t, out, "IT-0001")

	out, err = h.run(t, "", "request", "post", "/api/assets/", "-d", `{"asset_tag":"IT-0100","name":"Dock"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"asset_tag": "IT-0100"`)

	dir := t.TempDir()
	out, err = h.run(t, "", "download", "/api/assets/export/", "-o", dir)
	require.NoError(t, err)
	saved := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(saved))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), "IT-0100")

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	out, err = h.run(t, "", "whoami")
	assert.EqualError(t, err, "not logged in")
	assert.Contains(t, out, `"status": "anonymous"`)
}

func TestLoginPasswordFromStdin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "employee123\n", "login", "-u", "employee")
	require.NoError(t, err)
	assert.Equal(t, "logged in as employee\n", out)
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "login", "-u", "admin", "-p", "wrong")
	assert.EqualError(t, err, "non_field_errors: Unable to log in with provided credentials.")

	_, err = h.run(t, "", "login", "-u", "admin")
	assert.EqualError(t, err, "password required")
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "register", "-u", "newbie", "-e", "n@example.com", "-p", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "registered and logged in as newbie\n", out)

	_, err = h.run(t, "", "register", "-u", "newbie", "-p", "longenough")
	assert.EqualError(t, err, "username: A user with that username already exists.")
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "request", "GET", "/api/assets/")
	assert.EqualError(t, err, "Authentication credentials were not provided.")

	_, err = h.run(t, "", "request", "GET", "/api/assets/", "-H", "broken")
	assert.ErrorContains(t, err, "invalid header")

	_, err = h.run(t, "", "request", "POST", "/api/assets/", "-d", "{nope")
	assert.EqualError(t, err, "--data is not valid JSON")
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	h.env["DASHBOARD_STORE_DRIVER"] = "etcd"

	_, err := h.run(t, "", "whoami")
	assert.ErrorContains(t, err, `unsupported store driver "etcd"`)
}
