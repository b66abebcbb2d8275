package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "giftboard/pkg/logx"
)

// Telegram posts messages to a chat through the Bot API. The bot token is
// verified once at construction, so a bad token aborts startup instead of
// failing on the first scheduled post.
type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  logx.Logger
}

func NewTelegram(token string, chatID int64, log logx.Logger) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("notify: telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("notify: telegram chat id is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("notify: telegram init: %w", err)
	}
	return &Telegram{bot: bot, chat: tele.ChatID(chatID), log: log}, nil
}

func (t *Telegram) Post(ctx context.Context, content string) error {
	// telebot has no context plumbing on Send; run it in a goroutine and
	// honor cancellation ourselves.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(t.chat, content)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("notify: telegram send timed out")
	}
}
