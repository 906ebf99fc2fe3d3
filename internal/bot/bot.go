package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bingx-relay/internal/exchange"
	"bingx-relay/internal/exchange/bingx"
	"bingx-relay/internal/metrics"
	"bingx-relay/internal/strategy"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TradeRunner interface {
	Run(ctx context.Context, symbol string) (*strategy.Result, error)
}

type Config struct {
	Exchange       exchange.Exchange
	Trigger        TradeRunner
	AllowedChatIDs []int64
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// Bot turns chat commands into exchange calls. Every command runs on its
// own goroutine and answers in the chat it came from.
type Bot struct {
	sender  Sender
	ex      exchange.Exchange
	trigger TradeRunner
	allowed map[int64]struct{}
	log     zerolog.Logger
	metrics *metrics.Metrics
	cmds    map[string]command

	wg sync.WaitGroup
}

func New(sender Sender, cfg Config) *Bot {
	b := &Bot{
		sender:  sender,
		ex:      cfg.Exchange,
		trigger: cfg.Trigger,
		log:     cfg.Logger.With().Str("component", "bot").Logger(),
		metrics: cfg.Metrics,
	}
	if len(cfg.AllowedChatIDs) > 0 {
		b.allowed = make(map[int64]struct{}, len(cfg.AllowedChatIDs))
		for _, id := range cfg.AllowedChatIDs {
			b.allowed[id] = struct{}{}
		}
	}
	b.cmds = b.commands()
	return b
}

// Run dispatches updates until ctx is cancelled or updates is closed, then
// waits for commands still in flight.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			msg := update.Message
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleMessage(ctx, msg)
			}()
		}
	}
}

// HandleMessage runs one command to completion. It never panics and never
// returns an error; failures become chat replies.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	name := msg.Command()
	chatID := msg.Chat.ID
	log := b.log.With().
		Str("command", name).
		Str("correlation_id", uuid.NewString()).
		Int64("chat_id", chatID).
		Logger()

	if !b.isAllowed(chatID) {
		log.Warn().Msg("command from chat outside allow-list")
		b.metrics.ObserveCommand(name, "unauthorized")
		b.send(chatID, "Unauthorized.", false)
		return
	}

	cmd, ok := b.cmds[name]
	if !ok {
		b.metrics.ObserveCommand("unknown", "unknown")
		b.send(chatID, "Unknown command. Send /help for the list of commands.", false)
		return
	}

	outcome := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "panic"
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("command panicked")
			b.send(chatID, fmt.Sprintf("Error: %v", rec), false)
		}
		b.metrics.ObserveCommand(name, outcome)
	}()

	log.Info().Str("args", msg.CommandArguments()).Msg("command received")
	rep, err := cmd(ctx, splitArgs(msg.CommandArguments()))
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			outcome = "invalid"
			b.send(chatID, ue.Error(), false)
			return
		}
		outcome = "error"
		log.Warn().Err(err).Msg("command failed")
		b.send(chatID, "Error: "+errorMessage(err), false)
		return
	}
	b.sendReply(chatID, rep)
}

// sendReply delivers every part of rep. A Markdown part Telegram refuses is
// resent as plain text, and if that fails too the chat gets the error.
func (b *Bot) sendReply(chatID int64, rep reply) {
	for _, text := range rep.parts {
		err := b.send(chatID, text, rep.markdown)
		if err != nil && rep.markdown {
			err = b.send(chatID, text, false)
		}
		if err != nil {
			b.send(chatID, "Error: "+err.Error(), false)
			return
		}
	}
}

func (b *Bot) isAllowed(chatID int64) bool {
	if b.allowed == nil {
		return true
	}
	_, ok := b.allowed[chatID]
	return ok
}

func (b *Bot) send(chatID int64, text string, markdown bool) error {
	out := tgbotapi.NewMessage(chatID, text)
	if markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := b.sender.Send(out); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Bool("markdown", markdown).Msg("telegram send failed")
		return err
	}
	return nil
}

func errorMessage(err error) string {
	if apiErr, ok := bingx.AsAPIError(err); ok {
		return apiErr.Error()
	}
	return err.Error()
}
