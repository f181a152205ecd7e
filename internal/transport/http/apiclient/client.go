package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"assetdesk-client/internal/domain/auth/model"
	"assetdesk-client/internal/domain/auth/store"
	"assetdesk-client/internal/domain/eventbus"
	"assetdesk-client/internal/platform/observability"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRefreshTimeout = 15 * time.Second
	defaultRefreshPath    = "/api/auth/token/refresh/"

	headerRequestID = "X-Request-ID"
)

// Options encapsulates the dependencies required to construct a Client.
type Options struct {
	BaseURL string
	Store   store.Store
	// HTTPClient is used as-is when set; its Jar is replaced only if nil.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     model.Logger
	Bus        *eventbus.Bus
	Metrics    *observability.Metrics

	RefreshPath    string
	RefreshTimeout time.Duration
}

// Client sends authenticated JSON requests against one backend. It is safe
// for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	store   store.Store
	logger  model.Logger
	bus     *eventbus.Bus
	metrics *observability.Metrics

	refresher *RefreshCoordinator
}

// New wires a Client using the supplied options.
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, errors.New("api client requires a token store")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	c := &Client{
		baseURL: base,
		http:    httpClient,
		store:   opts.Store,
		logger:  logger,
		bus:     opts.Bus,
		metrics: opts.Metrics,
	}

	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = defaultRefreshPath
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}
	c.refresher = newRefreshCoordinator(c, refreshPath, refreshTimeout)
	return c, nil
}

// Refresher exposes the coordinator shared by every request of this client.
func (c *Client) Refresher() *RefreshCoordinator {
	return c.refresher
}

// Store returns the token store the client reads credentials from.
func (c *Client) Store() store.Store {
	return c.store
}

func (c *Client) Get(ctx context.Context, path string) (Payload, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodGet, Path: path})
}

func (c *Client) Post(ctx context.Context, path string, body any) (Payload, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (Payload, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodPut, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (Payload, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (Payload, error) {
	return c.Send(ctx, Descriptor{Method: http.MethodDelete, Path: path})
}

// Send performs desc and classifies the response. A 401 on a request that
// used stored credentials triggers at most one refresh and one replay.
func (c *Client) Send(ctx context.Context, desc Descriptor) (Payload, error) {
	ctx, end := observability.StartSpan(ctx, observability.ComponentClient, desc.method()+" "+desc.Path)
	start := time.Now()
	payload, err := c.send(ctx, desc)
	c.metrics.ObserveRequest(desc.method(), outcomeOf(err), time.Since(start))
	end(err)
	return payload, err
}

func (c *Client) send(ctx context.Context, desc Descriptor) (Payload, error) {
	body, err := desc.encodeBody()
	if err != nil {
		return Payload{}, &Error{
			Kind:    KindTransport,
			Message: fmt.Sprintf("encode request body: %v", err),
			Cause:   err,
		}
	}

	res, err := c.attempt(ctx, desc, body)
	if err != nil {
		return Payload{}, err
	}
	if res.status != http.StatusUnauthorized || desc.SkipAuth {
		return res.classify()
	}

	expired := res.failure()
	expired.Kind = KindAuthExpired

	if refresh, ok := c.readStore(ctx, model.KeyRefreshToken); !ok || refresh == "" {
		// nothing to refresh with; a rejected stored bearer is dead
		if res.usedStoredToken {
			c.purge(ctx, eventbus.ReasonUnauthenticated, expired.Message)
		}
		expired.Kind = KindAuthInvalid
		return Payload{}, expired
	}

	return c.refresher.retry(ctx, desc, body, res.bearer, expired)
}

// response is one completed HTTP exchange.
type response struct {
	method string
	path   string
	status int
	header http.Header
	body   responseBody
	// bearer is the token the request carried, stored or caller supplied.
	bearer          string
	usedStoredToken bool
}

// attempt sends desc once. It never refreshes.
func (c *Client) attempt(ctx context.Context, desc Descriptor, body []byte) (*response, error) {
	method := desc.method()
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(desc.Path), bodyReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: fmt.Sprintf("build request: %v", err), Cause: err}
	}
	for k, values := range desc.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}

	res := &response{method: method, path: desc.Path}
	if auth := req.Header.Get("Authorization"); auth != "" {
		res.bearer = strings.TrimPrefix(auth, "Bearer ")
	} else if !desc.SkipAuth {
		if token, ok := c.readStore(ctx, model.KeyAccessToken); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			res.bearer = token
			res.usedStoredToken = true
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("%s %s failed: %v", method, desc.Path, err)
		return nil, transportError(method, desc.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("%s %s: reading body failed: %v", method, desc.Path, err)
		return nil, transportError(method, desc.Path, err)
	}

	res.status = resp.StatusCode
	res.header = resp.Header
	res.body = resolveBody(resp.Header.Get("Content-Type"), data)
	c.logger.Debug("%s %s -> %d (%s)", method, desc.Path, resp.StatusCode, req.Header.Get(headerRequestID))
	return res, nil
}

// classify maps a completed exchange to a payload or an Error. It has no
// refresh branch; a 401 here is final.
func (r *response) classify() (Payload, error) {
	if r.status == http.StatusNoContent {
		return Payload{}, nil
	}
	if r.status < 200 || r.status > 299 {
		return Payload{}, r.failure()
	}
	if r.body.declaredJSON {
		switch r.body.kind {
		case bodyEmpty:
			return Payload{}, nil
		case bodyJSON:
			return jsonPayload(r.body.raw), nil
		default:
			return Payload{}, &Error{
				Kind:    KindParse,
				Message: fmt.Sprintf("invalid JSON in response to %s %s", r.method, r.path),
				Status:  r.status,
			}
		}
	}
	return textPayload(r.body.raw), nil
}

func (r *response) failure() *Error {
	kind := KindAPI
	if r.status == http.StatusUnauthorized {
		kind = KindAuthInvalid
	}
	return &Error{
		Kind:    kind,
		Message: errorMessage(r.body, r.status),
		Status:  r.status,
	}
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}

// readStore treats a failing store as empty; the failure is logged.
func (c *Client) readStore(ctx context.Context, key string) (string, bool) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("token store read %s failed: %v", key, err)
		return "", false
	}
	return v, ok
}

// purge clears every credential and tells subscribers why.
func (c *Client) purge(ctx context.Context, reason, detail string) {
	if err := c.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("token store clear failed: %v", err)
	}
	c.bus.Publish(eventbus.EventCredentialsCleared, eventbus.CredentialsClearedData{
		Reason: reason,
		Detail: detail,
	})
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	e, ok := AsError(err)
	if !ok {
		return observability.OutcomeTransport
	}
	switch e.Kind {
	case KindTransport:
		return observability.OutcomeTransport
	case KindParse:
		return observability.OutcomeParse
	case KindAuthInvalid, KindAuthExpired:
		return observability.OutcomeAuth
	default:
		return observability.OutcomeAPIError
	}
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
