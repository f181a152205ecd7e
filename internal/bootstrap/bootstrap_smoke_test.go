package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	platformerrors "assetdesk-client/internal/platform/errors"
	platformlogging "assetdesk-client/internal/platform/logging"
	ptesting "assetdesk-client/internal/platform/testing"
)

func testEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"store:open",
		"client:init",
		"session:init-manager",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}
}

func TestExecuteInitSteps_UnsatisfiedDependency(t *testing.T) {
	steps := []initStep{{
		ID:        "client:init",
		DependsOn: []string{"store:open"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	if !platformerrors.IsKind(err, platformerrors.KindBootstrap) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
}

func TestExecuteInitSteps_WrapsStepKind(t *testing.T) {
	steps := []initStep{{
		ID:      "store:open",
		Kind:    platformerrors.KindStorage,
		Execute: func(context.Context, *appState) error { return fmt.Errorf("disk full") },
	}}
	err := executeInitSteps(context.Background(), steps, &appState{})
	if !platformerrors.IsKind(err, platformerrors.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	app, err := Build(context.Background(), Options{
		DisableDotEnv: true,
		Console:       io.Discard,
		Env: testEnv(map[string]string{
			"DASHBOARD_STORE_DRIVER": "memory",
			"API_BASE_URL":           "http://127.0.0.1:9",
		}),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close(context.Background())

	if app.Config == nil || app.Logger == nil || app.Registry == nil {
		t.Fatal("platform components missing")
	}
	if app.Store == nil || app.Bus == nil || app.Client == nil || app.Session == nil {
		t.Fatal("session components missing")
	}
	if app.Config.API.BaseURL != "http://127.0.0.1:9" {
		t.Fatalf("env override ignored: %s", app.Config.API.BaseURL)
	}
	if app.Client.Store() != app.Store {
		t.Fatal("client and session must share one store")
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	_, err := Build(context.Background(), Options{
		DisableDotEnv: true,
		Console:       io.Discard,
		Env:           testEnv(map[string]string{"DASHBOARD_STORE_DRIVER": "etcd"}),
	})
	if !platformerrors.IsKind(err, platformerrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    "debug",
		Dir:      tmp,
		Filename: "graph.log",
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logBootstrapGraph(InitGraph(), logger)
	logger.Close()

	data, err := os.ReadFile(filepath.Join(tmp, "graph.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	for _, step := range InitGraph() {
		if !strings.Contains(content, step.ID) {
			t.Fatalf("expected graph output to contain %q, got: %s", step.ID, content)
		}
	}
}

func TestServeMock(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	logger := ptesting.SetupTestLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- ServeMock(ctx, cfg, logger, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("ServeMock exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock backend did not start")
	}

	resp, err := http.Post("http://"+addr+"/api/auth/login/", "application/json",
		strings.NewReader(`{"username":"admin","password":"admin123"}`))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics output missing runtime collectors")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeMock returned %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("mock backend did not stop")
	}
}
