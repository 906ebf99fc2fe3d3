package main

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/config"
)

type nopSender struct{}

func (nopSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) { return tgbotapi.Message{}, nil }

func TestBuildAlertManagerDisabledWithoutChat(t *testing.T) {
	cfg := config.Config{Env: config.EnvProduction}
	if m := buildAlertManager(cfg, nopSender{}, zerolog.Nop(), nil); m != nil {
		t.Fatalf("buildAlertManager() = %v, want nil without alert chat", m)
	}
	cfg.Telegram.AlertChatID = 99
	if m := buildAlertManager(cfg, nil, zerolog.Nop(), nil); m != nil {
		t.Fatalf("buildAlertManager() = %v, want nil without sender", m)
	}
}

func TestBuildAlertManagerEnabled(t *testing.T) {
	cfg := config.Config{Env: config.EnvDevelopment}
	cfg.Telegram.AlertChatID = 99
	m := buildAlertManager(cfg, nopSender{}, zerolog.Nop(), nil)
	if m == nil {
		t.Fatalf("buildAlertManager() = nil, want manager")
	}
	m.Raise(alert.ClockSkew{Skew: 2 * time.Second, Limit: time.Second})
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestTriggerConfigFromConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.Trigger.Qty = config.Decimal{Decimal: decimal.RequireFromString("0.002")}
	cfg.Trigger.Interval = "5m"

	got := triggerConfig(cfg, zerolog.Nop(), nil)
	if !got.Qty.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("Qty = %s, want 0.002", got.Qty)
	}
	if got.Interval != "5m" {
		t.Fatalf("Interval = %q, want 5m", got.Interval)
	}
	if got.Alerter != nil {
		t.Fatalf("Alerter = %v, want nil", got.Alerter)
	}
}
