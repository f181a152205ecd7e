package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	domainauth "assetdesk-client/internal/domain/auth"
	"assetdesk-client/internal/domain/auth/store"
	"assetdesk-client/internal/domain/eventbus"
	platformconfig "assetdesk-client/internal/platform/config"
	platformerrors "assetdesk-client/internal/platform/errors"
	platformlogging "assetdesk-client/internal/platform/logging"
	platformobservability "assetdesk-client/internal/platform/observability"
	httptransport "assetdesk-client/internal/transport/http"
	"assetdesk-client/internal/transport/http/apiclient"
	"assetdesk-client/internal/transport/http/mockapi"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

// Options controls how the runtime is assembled.
type Options struct {
	// ConfigPath pins the yaml file; empty probes DASHBOARD_CONFIG and .dashctl.yaml.
	ConfigPath string
	// Console receives human-readable logs; defaults to stderr.
	Console io.Writer
	// DisableDotEnv skips loading .env.
	DisableDotEnv bool
	// Env overrides environment lookup.
	Env func(string) (string, bool)
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	registry              *prometheus.Registry
	metrics               *platformobservability.Metrics
	observabilityShutdown platformobservability.ShutdownFunc
	store                 store.Store
	bus                   *eventbus.Bus
	logHandler            *eventbus.LogHandler
	client                *apiclient.Client
	session               *domainauth.Manager
}

// App is the assembled client runtime.
type App struct {
	Config     *platformconfig.Config
	ConfigPath string
	Logger     *platformlogging.Logger
	Registry   *prometheus.Registry
	Store      store.Store
	Bus        *eventbus.Bus
	Client     *apiclient.Client
	Session    *domainauth.Manager

	state *appState
}

// Build runs the init graph and returns the wired runtime. The caller owns
// the App and must Close it.
func Build(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close(ctx)
		return nil, err
	}
	logBootstrapGraph(steps, state.logger)

	return &App{
		Config:     state.config,
		ConfigPath: state.configPath,
		Logger:     state.logger,
		Registry:   state.registry,
		Store:      state.store,
		Bus:        state.bus,
		Client:     state.client,
		Session:    state.session,
		state:      state,
	}, nil
}

// Close releases the store, the metrics and the log file.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.state.close(ctx)
}

func (s *appState) close(ctx context.Context) {
	if s.session != nil {
		_ = s.session.Close()
	}
	if s.logHandler != nil && s.bus != nil {
		s.logHandler.Detach(s.bus)
	}
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil && s.logger != nil {
			s.logger.WarnTag("STORE", "token store did not close cleanly: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("OBS", "observability did not shut down cleanly: %v", err)
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	for _, step := range steps {
		logger.DebugTag("CLI", "init %s: %s", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "store:open",
			Title:     "Open token store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openStoreStep,
		},
		{
			ID:        "client:init",
			Title:     "Initialise API client",
			DependsOn: []string{"store:open", "observability:setup-hooks"},
			Kind:      platformerrors.KindTransport,
			Execute:   initClientStep,
		},
		{
			ID:        "session:init-manager",
			Title:     "Initialise session manager",
			DependsOn: []string{"client:init"},
			Kind:      platformerrors.KindSession,
			Execute:   initSessionStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().
		WithDotEnv(!state.opts.DisableDotEnv).
		WithPath(state.opts.ConfigPath).
		WithEnv(state.opts.Env)
	res, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = res.Config
	state.configPath = res.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.opts.Console,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults"
	}
	logger.DebugTag("CLI", "logging ready [%s] config=%s", state.config.Log.Level, source)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	state.registry = prometheus.NewRegistry()
	cfg := platformobservability.Config{
		Enabled:    state.config.Metrics.Enabled,
		Registerer: state.registry,
	}

	metrics, shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.metrics = metrics
	state.observabilityShutdown = shutdown
	return nil
}

func openStoreStep(_ context.Context, state *appState) error {
	sc := state.config.Store
	s, err := store.New(store.Config{
		Driver:    sc.Driver,
		Namespace: sc.Namespace,
		TTL:       sc.Redis.TTL,
		File:      &store.FileConfig{Path: sc.File.Path},
		SQLite:    &store.SQLiteConfig{DSN: sc.SQLite.DSN},
		Redis: &store.RedisConfig{
			Addr:     sc.Redis.Addr,
			Username: sc.Redis.Username,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		},
	}, store.Dependencies{})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "store:open", "failed to open token store", err)
	}
	state.store = s
	state.logger.DebugTag("STORE", "token store ready (driver=%s namespace=%s)", sc.Driver, sc.Namespace)
	return nil
}

func initClientStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New()
	state.logHandler = eventbus.NewLogHandler(state.logger.Tagged("AUTH"))
	if err := state.logHandler.Attach(state.bus); err != nil {
		return err
	}

	api := state.config.API
	client, err := apiclient.New(apiclient.Options{
		BaseURL:        api.BaseURL,
		Store:          state.store,
		Timeout:        api.Timeout,
		Logger:         state.logger.Tagged("HTTP"),
		Bus:            state.bus,
		Metrics:        state.metrics,
		RefreshPath:    api.Endpoints.Refresh,
		RefreshTimeout: api.RefreshTimeout,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "client:init", "failed to create api client", err)
	}
	state.client = client
	return nil
}

func initSessionStep(_ context.Context, state *appState) error {
	endpoints := state.config.API.Endpoints
	manager, err := domainauth.NewManager(domainauth.Options{
		Client: state.client,
		Store:  state.store,
		Bus:    state.bus,
		Logger: state.logger.Tagged("AUTH"),
		Endpoints: domainauth.Endpoints{
			Login:        endpoints.Login,
			Registration: endpoints.Registration,
			Logout:       endpoints.Logout,
			Profile:      endpoints.Profile,
		},
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSession, "session:init-manager", "failed to create session manager", err)
	}
	state.session = manager
	return nil
}

// ServeMock runs the development backend until ctx is cancelled or the
// process receives SIGINT/SIGTERM. ready, when non-nil, receives the bound
// address once the listener is up.
func ServeMock(ctx context.Context, cfg *platformconfig.Config, logger *platformlogging.Logger, ready chan<- string) error {
	if cfg == nil || logger == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "mock:serve", "config/logger not initialised")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := mockapi.NewService(cfg.Mock, logger.Tagged("MOCK"))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "mock:new-service", "failed to create mock service", err)
	}
	router, err := httptransport.Build(httptransport.Options{
		Logger:         logger.Tagged("HTTP"),
		Debug:          cfg.Log.Level == "debug",
		AllowedOrigins: cfg.Mock.AllowedOrigins,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})
	if err != nil {
		return err
	}
	svc.Register(router)

	listener, err := net.Listen("tcp", cfg.Mock.Addr)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "mock:listen", "failed to listen on "+cfg.Mock.Addr, err)
	}
	httpServer := &http.Server{
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)
	group.Go(func() error {
		logger.InfoTag("MOCK", "mock backend listening on http://%s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("MOCK", "mock backend failed: %v", err)
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorTag("MOCK", "mock backend shutdown failed: %v", err)
			return err
		}
		logger.InfoTag("MOCK", "mock backend stopped")
		return nil
	})

	// a failed listener ends the wait like a signal would
	go func() {
		<-groupCtx.Done()
		cancel()
	}()

	if ready != nil {
		ready <- listener.Addr().String()
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("CLI", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("CLI", "shutdown finished with error: %v", err)
			return err
		}
	case <-time.After(15 * time.Second):
		logger.ErrorTag("CLI", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
