// Package listener answers Telegram chats over long polling.
package listener

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"preciobot/internal/config"
	"preciobot/internal/pipeline"
)

// Bot is the part of *tgbotapi.BotAPI the listener uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Handler interface {
	Handle(ctx context.Context, identity, text string) pipeline.Reply
}

type Service struct {
	bot     Bot
	handler Handler
	log     zerolog.Logger
	timeout int
	wg      sync.WaitGroup
}

func NewBot(cfg config.Config) (*tgbotapi.BotAPI, error) {
	if err := cfg.Require("TELEGRAM_BOT_TOKEN", cfg.TelegramToken); err != nil {
		return nil, err
	}
	return tgbotapi.NewBotAPI(cfg.TelegramToken)
}

func NewService(bot Bot, handler Handler, log zerolog.Logger) *Service {
	return &Service{
		bot:     bot,
		handler: handler,
		log:     log.With().Str("component", "telegram").Logger(),
		timeout: 30,
	}
}

// Run polls for updates until ctx ends, then waits for handlers in flight.
func (s *Service) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.timeout
	updates := s.bot.GetUpdatesChan(u)
	s.log.Info().Msg("telegram listener started")

	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(ctx, msg)
			}()
		}
	}
}

func (s *Service) handle(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			text = ""
		default:
			text = strings.TrimSpace(msg.CommandArguments())
		}
	}

	identity := Identity(msg.Chat.ID)
	reply := s.handler.Handle(ctx, identity, text)

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := s.bot.Send(out); err != nil {
		s.log.Error().Err(err).Str("identity", identity).Str("trace", reply.TraceID).Msg("telegram send failed")
	}
}

// Identity keys a Telegram chat in the session store.
func Identity(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
