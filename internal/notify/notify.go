// Package notify delivers formatted leaderboard messages to the configured
// sink. Delivery is synchronous on purpose: the scheduler must know whether a
// post succeeded before it persists the trigger marker.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	logx "giftboard/pkg/logx"
)

// Poster is the sink capability: deliver one message, report failure.
type Poster interface {
	Post(ctx context.Context, content string) error
}

// DeliveryError is a non-2xx/3xx answer from the sink, carrying the response
// body as diagnostic text.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify: delivery failed with status %d: %s", e.Status, e.Body)
}

// Config selects and configures the sink driver.
type Config struct {
	Driver         string // "webhook" or "telegram"
	WebhookURL     string
	TelegramToken  string
	TelegramChatID int64
	// MinInterval spaces out posts (sink-side rate limits). Default 2s.
	MinInterval time.Duration
}

// Service wraps the configured driver with a rate limiter and a circuit
// breaker. Breaker-open surfaces as an ordinary delivery error, so callers
// treat it like any failed post (marker not persisted, retried later).
type Service struct {
	poster  Poster
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var poster Poster
	var err error
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "webhook":
		poster, err = NewWebhook(cfg.WebhookURL, log)
	case "telegram":
		poster, err = NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	default:
		err = fmt.Errorf("notify: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:     "notify-sink",
		Interval: time.Minute,
		// Posts are minutes apart, so recover quickly once the sink is back.
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notify breaker state change",
				logx.String("from", from.String()), logx.String("to", to.String()))
		},
	})

	return &Service{
		poster:  poster,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		cb:      cb,
		log:     log,
	}, nil
}

// Post delivers one message. Any returned error means the message was not
// confirmed delivered.
func (s *Service) Post(ctx context.Context, content string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.poster.Post(ctx, content)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("notify: sink unavailable (breaker open): %w", err)
	}
	return err
}
