// Package telegram is the send-only Telegram side of the daemon. It
// wraps a telebot bot that never polls: the daemon only pushes alerts
// and booking confirmations to a configured chat.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tatkald/pkg/logx"
)

type Config struct {
	Token string
	// ChatID is the default destination when an entry carries no
	// notifyTarget of its own.
	ChatID int64
	// SendTimeout bounds one Telegram API call (HTTP client timeout).
	SendTimeout time.Duration
}

type Adapter struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, bot: b, log: log}, nil
}

// SendText implements notify.Sender. target is an optional per-entry
// chat id override; anything unparsable falls back to the default.
func (a *Adapter) SendText(ctx context.Context, target, text string) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	chat := &tele.Chat{ID: a.resolveChat(target)}
	sendOpt := &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
	}
	_, err := a.bot.Send(chat, text, sendOpt)
	return err
}

func (a *Adapter) resolveChat(target string) int64 {
	target = strings.TrimSpace(target)
	if target == "" {
		return a.cfg.ChatID
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		a.log.Warn("unparsable notify target; using default chat",
			logx.String("target", target))
		return a.cfg.ChatID
	}
	return id
}
