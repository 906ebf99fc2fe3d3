package bingx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/config"
	"bingx-relay/internal/exchange"
	"bingx-relay/internal/metrics"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthSigned
)

const apiKeyHeader = "X-BX-APIKEY"

var _ exchange.Exchange = (*Client)(nil)

// Client signs and dispatches requests. It holds no mutable state besides the
// optional alerter, so one instance serves every front end concurrently.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow time.Duration
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	alerter alert.Alerter
}

type Options struct {
	APIKey         string
	APISecret      string
	RestBaseURL    string
	RecvWindowMs   int64
	HTTPTimeoutSec int64
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	Clock          func() time.Time
}

func NewClient(cfg config.ExchangeConfig, log zerolog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("api_key/api_secret required")
	}
	return NewClientWithOptions(Options{
		APIKey:         cfg.APIKey,
		APISecret:      cfg.APISecret,
		RestBaseURL:    cfg.RestBaseURL,
		RecvWindowMs:   cfg.RecvWindowMs,
		HTTPTimeoutSec: cfg.HTTPTimeoutSec,
		Logger:         log,
		Metrics:        m,
	}), nil
}

func NewClientWithOptions(opts Options) *Client {
	// Zero means no client-side timeout: a slow exchange holds the caller.
	var timeout time.Duration
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    strings.TrimRight(opts.RestBaseURL, "/"),
		recvWindow: time.Duration(opts.RecvWindowMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: timeout},
		now:        clock,
		log:        opts.Logger.With().Str("component", "bingx").Logger(),
		metrics:    opts.Metrics,
	}
}

func (c *Client) Name() string { return "bingx" }

func (c *Client) SetAlerter(alerter alert.Alerter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerter = alerter
}

func (c *Client) raise(ev alert.Event) {
	c.mu.Lock()
	alerter := c.alerter
	c.mu.Unlock()
	if alerter == nil {
		return
	}
	alerter.Raise(ev)
}

// Do issues one signed request and returns the response body untouched.
func (c *Client) Do(ctx context.Context, method, path string, params Params) (json.RawMessage, error) {
	return c.doRequest(ctx, method, path, params, AuthSigned)
}

func (c *Client) doRequest(ctx context.Context, method, path string, params Params, auth AuthType) (json.RawMessage, error) {
	start := time.Now()
	body, status, err := c.roundTrip(ctx, method, path, params, auth)
	took := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "transport_error"
		if _, ok := AsAPIError(err); ok {
			outcome = "api_error"
		}
	}
	c.metrics.ObserveExchange(method, path, outcome, took)
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("outcome", outcome).
		Dur("took", took).
		Msg("exchange request")
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, params Params, auth AuthType) (json.RawMessage, int, error) {
	payload := params.clone()
	if auth == AuthSigned {
		// A read with no parameters signs exactly timestamp=<ms>.
		bareRead := method == http.MethodGet && len(params) == 0
		payload["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
		if c.recvWindow > 0 && !bareRead {
			payload["recvWindow"] = strconv.FormatInt(c.recvWindow.Milliseconds(), 10)
		}
	}
	encoded := canonicalQuery(payload)
	if auth == AuthSigned {
		encoded += "&signature=" + sign(c.apiSecret, encoded)
	}

	var (
		req *http.Request
		err error
	)
	urlStr := c.baseURL + path
	if method == http.MethodGet || method == http.MethodDelete {
		if encoded != "" {
			urlStr += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(encoded))
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth == AuthSigned {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "read %s response", path)
	}
	if resp.StatusCode/100 != 2 {
		return nil, resp.StatusCode, errors.WithStack(parseAPIError(resp.StatusCode, body))
	}
	if apiErr, ok := envelopeError(resp.StatusCode, body); ok {
		return nil, resp.StatusCode, errors.WithStack(apiErr)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("null")
	}
	return json.RawMessage(body), resp.StatusCode, nil
}
