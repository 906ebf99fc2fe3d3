package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"bingx-relay/internal/alert"
	"bingx-relay/internal/bot"
	"bingx-relay/internal/config"
	"bingx-relay/internal/exchange/bingx"
	"bingx-relay/internal/logger"
	"bingx-relay/internal/metrics"
	"bingx-relay/internal/server"
	"bingx-relay/internal/strategy"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := &cli.Command{
		Name:  "relay",
		Usage: "HTTP and Telegram front ends for a BingX perpetual swap account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "optional config yaml path; environment variables override it",
				Sources: cli.EnvVars("RELAY_CONFIG"),
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
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	client, err := bingx.NewClient(cfg.Exchange, log, m)
	if err != nil {
		return err
	}

	var api *tgbotapi.BotAPI
	if cfg.Telegram.Enabled() {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		log.Info().Str("username", api.Self.UserName).Msg("Authorized on telegram")
	}

	var alerts *alert.Manager
	if api != nil {
		alerts = buildAlertManager(cfg, api, log, m)
	}
	var alerter alert.Alerter
	if alerts != nil {
		alerter = alerts
		client.SetAlerter(alerts)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("close alert manager failed")
			}
		}()
	}

	trigger := strategy.NewTrigger(client, triggerConfig(cfg, log, alerter))

	go func() {
		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		_, _ = client.CheckClockSkew(checkCtx)
	}()

	srv := server.New(server.Config{
		Port:     cfg.HTTP.Port,
		Log:      log,
		Exchange: client,
		Trigger:  trigger,
		Metrics:  m,
		DevMode:  cfg.Development(),
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	var botDone chan struct{}
	if api != nil {
		b := bot.New(api, bot.Config{
			Exchange:       client,
			Trigger:        trigger,
			AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
			Logger:         log,
			Metrics:        m,
		})
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := api.GetUpdatesChan(u)
		botDone = make(chan struct{})
		go func() {
			defer close(botDone)
			b.Run(ctx, updates)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if api != nil {
		api.StopReceivingUpdates()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if botDone != nil {
		select {
		case <-botDone:
		case <-shutdownCtx.Done():
			log.Warn().Msg("bot commands still running at shutdown")
		}
	}
	return nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildAlertManager(cfg config.Config, sender alert.Sender, log zerolog.Logger, m *metrics.Metrics) *alert.Manager {
	if cfg.Telegram.AlertChatID == 0 || sender == nil {
		return nil
	}
	notifier := alert.NewTelegramNotifier(sender, cfg.Telegram.AlertChatID)
	return alert.NewManager(string(cfg.Env), notifier, alert.Options{Logger: log, Metrics: m})
}

func triggerConfig(cfg config.Config, log zerolog.Logger, alerter alert.Alerter) strategy.TriggerConfig {
	return strategy.TriggerConfig{
		Qty:      cfg.Trigger.Qty.Decimal,
		Interval: cfg.Trigger.Interval,
		Logger:   log,
		Alerter:  alerter,
	}
}
