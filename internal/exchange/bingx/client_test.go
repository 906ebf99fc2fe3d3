package bingx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/config"
	"bingx-relay/internal/core"
	"bingx-relay/internal/metrics"
)

const testNowMs = int64(1700000000000)

func fixedClock() time.Time { return time.UnixMilli(testNowMs) }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClientWithOptions(Options{
		APIKey:      "k",
		APISecret:   "s",
		RestBaseURL: baseURL,
		Clock:       fixedClock,
	})
}

type alerterSpy struct {
	mu     sync.Mutex
	events []string
	raised []alert.Event
}

func (a *alerterSpy) Raise(ev alert.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev.Kind())
	a.raised = append(a.raised, ev)
}

func (a *alerterSpy) last() alert.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.raised) == 0 {
		return nil
	}
	return a.raised[len(a.raised)-1]
}

func (a *alerterSpy) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.ExchangeConfig{APIKey: "k"}, zerolog.Nop(), nil); err == nil {
		t.Fatalf("NewClient() without secret error = nil, want error")
	}
	c, err := NewClient(config.ExchangeConfig{APIKey: "k", APISecret: "s", RestBaseURL: "https://x.test/"}, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.baseURL != "https://x.test" {
		t.Fatalf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient.Timeout != 0 {
		t.Fatalf("timeout = %s, want none by default", c.httpClient.Timeout)
	}
}

func TestGetWithoutParamsSignsTimestampOnly(t *testing.T) {
	wantQuery := "timestamp=1700000000000&signature=" + sign("s", "timestamp=1700000000000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != pathBalance {
			http.NotFound(w, r)
			return
		}
		if r.URL.RawQuery != wantQuery {
			t.Errorf("query = %q, want %q", r.URL.RawQuery, wantQuery)
		}
		if got := r.Header.Get("X-BX-APIKEY"); got != "k" {
			t.Errorf("api key header = %q, want k", got)
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"","data":{"balance":{"asset":"USDT","balance":"10"}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	raw, err := c.AccountBalance(context.Background())
	if err != nil {
		t.Fatalf("AccountBalance() error = %v", err)
	}
	if string(raw) != `{"code":0,"msg":"","data":{"balance":{"asset":"USDT","balance":"10"}}}` {
		t.Fatalf("AccountBalance() = %s, want body verbatim", raw)
	}
}

func TestPostSendsSignedFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathOrder {
			http.NotFound(w, r)
			return
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want empty for POST", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		payload, sig, ok := strings.Cut(string(body), "&signature=")
		if !ok {
			t.Errorf("body %q has no signature", body)
		}
		want := "quantity=0.01&recvWindow=5000&side=BUY&symbol=BTC-USDT&timestamp=1700000000000&type=MARKET"
		if payload != want {
			t.Errorf("payload = %q, want %q", payload, want)
		}
		if sig != sign("s", payload) {
			t.Errorf("signature mismatch")
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"order":{"orderId":1}}}`))
	}))
	defer srv.Close()

	c := NewClientWithOptions(Options{
		APIKey:       "k",
		APISecret:    "s",
		RestBaseURL:  srv.URL,
		RecvWindowMs: 5000,
		Clock:        fixedClock,
	})
	_, err := c.PlaceMarketOrder(context.Background(), core.MarketOrderParams{
		Symbol:   "BTC-USDT",
		Side:     core.Buy,
		Quantity: decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder() error = %v", err)
	}
}

func TestRecvWindowSkippedOnParameterlessGet(t *testing.T) {
	var (
		mu      sync.Mutex
		queries = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _, _ := strings.Cut(r.URL.RawQuery, "&signature=")
		mu.Lock()
		queries[r.URL.Path] = payload
		mu.Unlock()
		_, _ = w.Write([]byte(`{"code":0,"data":{"symbol":"BTC-USDT","price":"1"}}`))
	}))
	defer srv.Close()

	c := NewClientWithOptions(Options{
		APIKey:       "k",
		APISecret:    "s",
		RestBaseURL:  srv.URL,
		RecvWindowMs: 5000,
		Clock:        fixedClock,
	})
	if _, err := c.AccountBalance(context.Background()); err != nil {
		t.Fatalf("AccountBalance() error = %v", err)
	}
	if _, err := c.GetPrice(context.Background(), core.SymbolParams{Symbol: "BTC-USDT"}); err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := queries[pathBalance]; got != "timestamp=1700000000000" {
		t.Fatalf("balance query = %q, want timestamp only", got)
	}
	if got := queries[pathTickerPrice]; got != "recvWindow=5000&symbol=BTC-USDT&timestamp=1700000000000" {
		t.Fatalf("price query = %q, want recvWindow with params", got)
	}
}

func TestDoDoesNotMutateCallerParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	params := Params{"symbol": "BTC-USDT"}
	c := newTestClient(t, srv.URL)
	if _, err := c.Do(context.Background(), http.MethodGet, pathTickerPrice, params); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(params) != 1 {
		t.Fatalf("params = %v, want caller map untouched", params)
	}
}

func TestDoReturnsAPIErrorForNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":101204,"msg":"Insufficient margin"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.PendingOrders(context.Background())
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("PendingOrders() error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != 101204 {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if string(apiErr.Body) != `{"code":101204,"msg":"Insufficient margin"}` {
		t.Fatalf("apiErr.Body = %s, want exchange payload", apiErr.Body)
	}
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("errors.Is(err, ErrInsufficientBalance) = false for %v", err)
	}
}

func TestDoReturnsTextBodyForNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.OpenPositions(context.Background())
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("OpenPositions() error = %v, want APIError", err)
	}
	if apiErr.Msg != "bad gateway" || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestDoSurfacesEnvelopeErrorOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":80018,"msg":"order not exist"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CancelOrder(context.Background(), core.CancelOrderParams{Symbol: "BTC-USDT", OrderID: "9"})
	if !IsAPIErrorCode(err, 80018) {
		t.Fatalf("CancelOrder() error = %v, want api code 80018", err)
	}
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("errors.Is(err, ErrOrderNotFound) = false for %v", err)
	}
}

func TestDoWrapsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newTestClient(t, base)
	_, err := c.AccountBalance(context.Background())
	if err == nil {
		t.Fatalf("AccountBalance() error = nil, want transport error")
	}
	if _, ok := AsAPIError(err); ok {
		t.Fatalf("transport failure classified as APIError: %v", err)
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("error = %T, want *url.Error in chain", err)
	}
}

func TestValidationFailsBeforeDispatch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.PlaceLimitOrder(context.Background(), core.LimitOrderParams{
		Symbol:   "BTC-USDT",
		Side:     core.Sell,
		Quantity: decimal.RequireFromString("1"),
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("PlaceLimitOrder() error = %v, want ErrValidation", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestDoRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":[]}`))
	}))
	defer srv.Close()

	m := metrics.New()
	c := NewClientWithOptions(Options{APIKey: "k", APISecret: "s", RestBaseURL: srv.URL, Metrics: m})
	if _, err := c.OpenPositions(context.Background()); err != nil {
		t.Fatalf("OpenPositions() error = %v", err)
	}
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "relay_exchange_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("relay_exchange_requests_total not recorded")
	}
}

func TestLastPriceAndCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathTickerPrice:
			if r.URL.Query().Get("symbol") != "BTC-USDT" {
				t.Errorf("symbol = %q", r.URL.Query().Get("symbol"))
			}
			_, _ = w.Write([]byte(`{"code":0,"data":{"symbol":"BTC-USDT","price":"43000.5"}}`))
		case pathKlines:
			if r.URL.Query().Get("interval") != "1m" || r.URL.Query().Get("limit") != "2" {
				t.Errorf("kline query = %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"code":0,"data":[` +
				`{"open":"2","close":"3","high":"4","low":"1","volume":"5","time":1700000060000},` +
				`{"open":"1","close":"2","high":"3","low":"0.5","volume":"4","time":1700000000000}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	price, err := c.LastPrice(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("LastPrice() error = %v", err)
	}
	if !price.Equal(decimal.RequireFromString("43000.5")) {
		t.Fatalf("price = %s, want 43000.5", price)
	}
	candles, err := c.Candles(context.Background(), "BTC-USDT", "1m", 2)
	if err != nil {
		t.Fatalf("Candles() error = %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if !candles[0].Close.Equal(decimal.RequireFromString("2")) || !candles[1].Close.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("candles not oldest first: %+v", candles)
	}
}

func TestCheckClockSkewAlertsWhenDrifting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathServerTime {
			http.NotFound(w, r)
			return
		}
		if r.URL.RawQuery != "" || r.Header.Get("X-BX-APIKEY") != "" {
			t.Errorf("server time request was signed: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"","data":{"serverTime":1700000002500}}`))
	}))
	defer srv.Close()

	spy := &alerterSpy{}
	c := newTestClient(t, srv.URL)
	c.SetAlerter(spy)
	skew, err := c.CheckClockSkew(context.Background())
	if err != nil {
		t.Fatalf("CheckClockSkew() error = %v", err)
	}
	if skew != 2500*time.Millisecond {
		t.Fatalf("skew = %s, want 2.5s", skew)
	}
	if got := spy.snapshot(); len(got) != 1 || got[0] != "clock_skew" {
		t.Fatalf("alerts = %v, want [clock_skew]", got)
	}
	if ev, ok := spy.last().(alert.ClockSkew); !ok || ev.Skew != skew || ev.Limit != MaxClockSkew {
		t.Fatalf("alert = %#v, want ClockSkew{2.5s, 1s}", spy.last())
	}
}

func TestCheckClockSkewWithinToleranceDoesNotAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"serverTime":1700000000200}}`))
	}))
	defer srv.Close()

	spy := &alerterSpy{}
	c := newTestClient(t, srv.URL)
	c.SetAlerter(spy)
	if _, err := c.CheckClockSkew(context.Background()); err != nil {
		t.Fatalf("CheckClockSkew() error = %v", err)
	}
	if got := spy.snapshot(); len(got) != 0 {
		t.Fatalf("alerts = %v, want none", got)
	}
}
