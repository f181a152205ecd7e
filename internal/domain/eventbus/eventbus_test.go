package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdesk-client/internal/domain/auth/model"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) add(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	var got []StatusEventData
	handler := func(data StatusEventData) { got = append(got, data) }

	require.NoError(t, bus.Subscribe(EventSessionStatus, handler))
	assert.True(t, bus.HasCallback(EventSessionStatus))

	bus.Publish(EventSessionStatus, StatusEventData{Previous: model.StatusAnonymous, Current: model.StatusChecking})
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusChecking, got[0].Current)

	require.NoError(t, bus.Unsubscribe(EventSessionStatus, handler))
	bus.Publish(EventSessionStatus, StatusEventData{})
	assert.Len(t, got, 1)
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(EventTokensRefreshed, TokensRefreshedData{}) })
}

func TestLogHandler(t *testing.T) {
	bus := New()
	logger := &recordingLogger{}
	h := NewLogHandler(logger)
	require.NoError(t, h.Attach(bus))

	bus.Publish(EventSessionStatus, StatusEventData{
		Previous: model.StatusChecking,
		Current:  model.StatusAuthenticated,
		User:     model.Profile{"username": "admin"},
	})
	bus.Publish(EventCredentialsCleared, CredentialsClearedData{Reason: ReasonRefreshFailed, Detail: "HTTP error! status: 400"})
	bus.Publish(EventTokensRefreshed, TokensRefreshedData{Rotated: true})

	assert.Equal(t, []string{
		"INFO session checking -> authenticated (admin)",
		"WARN credentials cleared: refresh_failed: HTTP error! status: 400",
		"DEBUG access token refreshed (rotated=true)",
	}, logger.lines)

	h.Detach(bus)
	assert.False(t, bus.HasCallback(EventSessionStatus))
}

func TestBus_PublishDeferredFromHandler(t *testing.T) {
	bus := New()
	var order []string

	require.NoError(t, bus.Subscribe(EventCredentialsCleared, func(data CredentialsClearedData) {
		order = append(order, "cleared:"+data.Reason)
		bus.PublishDeferred(EventSessionStatus, StatusEventData{Current: model.StatusAnonymous})
		order = append(order, "cleared handler done")
	}))
	require.NoError(t, bus.Subscribe(EventSessionStatus, func(data StatusEventData) {
		order = append(order, "status:"+string(data.Current))
	}))

	bus.Publish(EventCredentialsCleared, CredentialsClearedData{Reason: ReasonUnauthenticated})

	assert.Equal(t, []string{
		"cleared:unauthenticated",
		"cleared handler done",
		"status:anonymous",
	}, order)
}

func TestBus_PublishDeferredWithoutDispatchIsImmediate(t *testing.T) {
	bus := New()
	var got int
	require.NoError(t, bus.Subscribe(EventTokensRefreshed, func(TokensRefreshedData) { got++ }))

	bus.PublishDeferred(EventTokensRefreshed, TokensRefreshedData{})
	assert.Equal(t, 1, got)
}

func TestBus_PublishWaitsForRunningDispatch(t *testing.T) {
	bus := New()

	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, bus.Subscribe(EventTokensRefreshed, func(TokensRefreshedData) {
		close(entered)
		<-release
	}))
	var ran atomic.Bool
	require.NoError(t, bus.Subscribe(EventCredentialsCleared, func(CredentialsClearedData) {
		ran.Store(true)
	}))

	go bus.Publish(EventTokensRefreshed, TokensRefreshedData{})
	<-entered

	returned := make(chan bool, 1)
	go func() {
		bus.Publish(EventCredentialsCleared, CredentialsClearedData{Reason: ReasonRefreshFailed})
		returned <- ran.Load()
	}()

	select {
	case <-returned:
		t.Fatal("Publish returned while another dispatch was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case handled := <-returned:
		assert.True(t, handled, "handler must run before Publish returns")
	case <-time.After(2 * time.Second):
		t.Fatal("Publish did not deliver after the running dispatch finished")
	}
}
