package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/domain/eventbus"
	"assetdesk-client/internal/platform/observability"
)

const refreshFlightKey = "refresh"

// RefreshCoordinator turns concurrent 401s into one refresh call. Every
// caller waiting on the same expiry shares the outcome of that call.
type RefreshCoordinator struct {
	client  *Client
	path    string
	timeout time.Duration
	group   singleflight.Group
}

func newRefreshCoordinator(client *Client, path string, timeout time.Duration) *RefreshCoordinator {
	return &RefreshCoordinator{
		client:  client,
		path:    path,
		timeout: timeout,
	}
}

// Refresh returns an access token newer than stale. When the store already
// holds a different token, a concurrent refresh won and that token is
// returned without a network call. Otherwise the caller joins the single
// in-flight refresh, starting it if needed. The refresh itself ignores the
// caller's cancellation and is bounded by the coordinator's timeout; ctx
// only limits how long this caller waits for it.
//
// On failure every stored credential is cleared. ErrNoRefreshToken is
// returned, without clearing, when there is nothing to refresh with.
func (r *RefreshCoordinator) Refresh(ctx context.Context, stale string) (string, error) {
	if current, ok := r.newerToken(ctx, stale); ok {
		r.client.metrics.ObserveRefresh(observability.RefreshReused)
		return current, nil
	}

	ch := r.group.DoChan(refreshFlightKey, func() (any, error) {
		flightCtx, end := observability.StartSpan(context.WithoutCancel(ctx), observability.ComponentRefresh, "refresh")
		token, err := r.refresh(flightCtx, stale)
		end(err)
		return token, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshAndRetry refreshes after desc failed with original and replays
// desc once with the new token. If the refresh fails, original is returned
// as an auth-invalid error. The replay's result is final.
func (r *RefreshCoordinator) RefreshAndRetry(ctx context.Context, desc Descriptor, original error) (Payload, error) {
	body, err := desc.encodeBody()
	if err != nil {
		return Payload{}, &Error{Kind: KindTransport, Message: fmt.Sprintf("encode request body: %v", err), Cause: err}
	}

	stale := strings.TrimPrefix(desc.Headers.Get("Authorization"), "Bearer ")
	if stale == "" {
		stale, _ = r.client.readStore(ctx, model.KeyAccessToken)
	}

	orig, ok := AsError(original)
	if !ok {
		orig = &Error{Kind: KindAuthInvalid, Message: genericStatusMessage(http.StatusUnauthorized), Status: http.StatusUnauthorized, Cause: original}
	}
	return r.retry(ctx, desc, body, stale, orig)
}

func (r *RefreshCoordinator) retry(ctx context.Context, desc Descriptor, body []byte, stale string, original *Error) (Payload, error) {
	token, err := r.Refresh(ctx, stale)
	if err != nil {
		surfaced := original.clone()
		surfaced.Kind = KindAuthInvalid
		surfaced.Cause = err
		return Payload{}, surfaced
	}

	res, err := r.client.attempt(ctx, desc.withBearer(token), body)
	if err != nil {
		return Payload{}, err
	}
	return res.classify()
}

func (r *RefreshCoordinator) newerToken(ctx context.Context, stale string) (string, bool) {
	current, ok := r.client.readStore(ctx, model.KeyAccessToken)
	if !ok || current == "" || current == stale {
		return "", false
	}
	return current, true
}

func (r *RefreshCoordinator) refresh(ctx context.Context, stale string) (string, error) {
	logger := r.client.logger

	// a flight that finished just before this one started already rotated the token
	if current, ok := r.newerToken(ctx, stale); ok {
		r.client.metrics.ObserveRefresh(observability.RefreshReused)
		return current, nil
	}

	refreshToken, ok := r.client.readStore(ctx, model.KeyRefreshToken)
	if !ok || refreshToken == "" {
		r.client.metrics.ObserveRefresh(observability.RefreshSkipped)
		return "", ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := sonic.ConfigStd.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", err
	}

	logger.Debug("[REFRESH] requesting new access token")
	res, err := r.client.attempt(ctx, Descriptor{Method: http.MethodPost, Path: r.path, SkipAuth: true}, payload)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	if res.status < 200 || res.status > 299 {
		return "", r.fail(ctx, res.failure())
	}

	var creds model.Credentials
	if res.body.kind == bodyJSON {
		creds = model.ParseTokenResponse(res.body.raw).Credentials()
	}
	if creds.AccessToken == "" {
		return "", r.fail(ctx, errors.New("refresh response carried no access token"))
	}

	entries := map[string]string{model.KeyAccessToken: creds.AccessToken}
	rotated := creds.RefreshToken != "" && creds.RefreshToken != refreshToken
	if rotated {
		entries[model.KeyRefreshToken] = creds.RefreshToken
	}
	if err := r.client.store.SetAll(ctx, entries); err != nil {
		return "", r.fail(ctx, fmt.Errorf("store refreshed tokens: %w", err))
	}

	r.client.metrics.ObserveRefresh(observability.RefreshRotated)
	r.client.bus.Publish(eventbus.EventTokensRefreshed, eventbus.TokensRefreshedData{Rotated: rotated})
	logger.Info("[REFRESH] access token refreshed (rotated=%v)", rotated)
	return creds.AccessToken, nil
}

func (r *RefreshCoordinator) fail(ctx context.Context, err error) error {
	r.client.metrics.ObserveRefresh(observability.RefreshFailed)
	r.client.logger.Warn("[REFRESH] refresh failed, clearing credentials: %v", err)
	r.client.purge(ctx, eventbus.ReasonRefreshFailed, err.Error())
	return err
}
