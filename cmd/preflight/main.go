package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"bingx-relay/internal/config"
	"bingx-relay/internal/core"
	"bingx-relay/internal/exchange/bingx"
	"bingx-relay/internal/logger"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	BaseURL    string        `json:"base_url"`
	Symbol     string        `json:"symbol,omitempty"`
	Checks     []checkResult `json:"checks"`
}

func (r report) failed() bool {
	for _, c := range r.Checks {
		if c.Status == statusFail {
			return true
		}
	}
	return false
}

// account is the read-only slice of the client the checks touch.
type account interface {
	ClockSkew(ctx context.Context) (time.Duration, error)
	AccountBalance(ctx context.Context) (json.RawMessage, error)
	OpenPositions(ctx context.Context) (json.RawMessage, error)
	PendingOrders(ctx context.Context) (json.RawMessage, error)
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

func main() {
	cmd := &cli.Command{
		Name:  "preflight",
		Usage: "Read-only connectivity and credential checks against the configured BingX account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "optional config yaml path",
				Sources: cli.EnvVars("RELAY_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "also fetch the ticker price for this symbol, e.g. BTC-USDT",
			},
			&cli.IntFlag{
				Name:  "timeout-sec",
				Usage: "total timeout seconds",
				Value: 60,
			},
			&cli.StringFlag{
				Name:  "out-json",
				Usage: "optional output report path",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr})
	client, err := bingx.NewClient(cfg.Exchange, log, nil)
	if err != nil {
		return err
	}

	timeout := time.Duration(cmd.Int("timeout-sec")) * time.Second
	if timeout < 10*time.Second {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := runChecks(ctx, client, core.NormalizeSymbol(cmd.String("symbol")), os.Stdout)
	r.BaseURL = cfg.Exchange.RestBaseURL
	printSummary(os.Stdout, r)

	if path := cmd.String("out-json"); path != "" {
		if err := writeReport(path, r); err != nil {
			return err
		}
		fmt.Printf("report written: %s\n", path)
	}
	if r.failed() {
		return cli.Exit("preflight failed", 1)
	}
	return nil
}

func runChecks(ctx context.Context, acct account, symbol string, out io.Writer) report {
	r := report{StartedAt: time.Now().UTC(), Symbol: symbol}

	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		cr := checkResult{
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if err != nil {
			cr.Status = statusFail
			cr.Error = err.Error()
		} else {
			cr.Status = statusPass
		}
		r.Checks = append(r.Checks, cr)
		if cr.Status == statusPass {
			fmt.Fprintf(out, "[PASS] %s (%dms)", name, cr.DurationMs)
			if cr.Detail != "" {
				fmt.Fprintf(out, " - %s", cr.Detail)
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintf(out, "[FAIL] %s (%dms) - %s\n", name, cr.DurationMs, cr.Error)
		}
	}

	run("clock_skew", func() (string, error) {
		skew, err := acct.ClockSkew(ctx)
		if err != nil {
			return "", err
		}
		if skew > bingx.MaxClockSkew || skew < -bingx.MaxClockSkew {
			return "", fmt.Errorf("skew %s exceeds %s", skew, bingx.MaxClockSkew)
		}
		return "skew=" + skew.String(), nil
	})
	run("account_balance", payloadCheck(ctx, acct.AccountBalance))
	run("open_positions", payloadCheck(ctx, acct.OpenPositions))
	run("open_orders", payloadCheck(ctx, acct.PendingOrders))
	if symbol != "" {
		run("ticker_price", func() (string, error) {
			price, err := acct.LastPrice(ctx, symbol)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s=%s", symbol, price), nil
		})
	}

	r.FinishedAt = time.Now().UTC()
	return r
}

func payloadCheck(ctx context.Context, fetch func(context.Context) (json.RawMessage, error)) func() (string, error) {
	return func() (string, error) {
		raw, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("bytes=%d", len(raw)), nil
	}
}

func printSummary(out io.Writer, r report) {
	pass := 0
	fail := 0
	for _, c := range r.Checks {
		if c.Status == statusPass {
			pass++
		} else {
			fail++
		}
	}
	fmt.Fprintf(out, "\nsummary base_url=%s symbol=%s pass=%d fail=%d duration=%s\n",
		r.BaseURL,
		r.Symbol,
		pass,
		fail,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	)
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
