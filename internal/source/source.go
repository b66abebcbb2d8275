// Package source defines the boundary to the external live-event capability:
// something that delivers gift callbacks for one broadcast and blocks until
// the session ends.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RawGift is a gift callback as delivered by the platform, before
// normalization. Identity fields are all optional; the ingestor applies the
// fallback chain.
type RawGift struct {
	UniqueID    string
	Nickname    string
	UserID      string
	GiftName    string
	GiftID      int64
	RepeatCount int64
	RepeatTotal int64
	Diamonds    int64
	At          time.Time
}

// Handler receives gift callbacks. It must not block for long: the session
// read loop delivers events serially.
type Handler func(RawGift)

// Source is a live-event session. Run blocks until the session ends cleanly
// (nil), the broadcast is offline, or the session fails. Disconnect is a
// best-effort teardown and may be called from another goroutine at any time,
// including while Run is blocked.
type Source interface {
	Run(ctx context.Context) error
	Disconnect() error
}

// LinkObserver is implemented by sources that can report session
// establishment explicitly. When available, the connection manager prefers it
// over inferring link state from event recency.
type LinkObserver interface {
	SetLinkFunc(func(linked bool))
}

// Terminal session errors. The connection manager classifies these
// structurally; the substring shim only exists for errors that reach it from
// outside this package.
var (
	// ErrOffline means the broadcast is not live. Expected and benign.
	ErrOffline = errors.New("stream offline")

	// ErrDuplicateConn means another session for the same broadcast already
	// exists upstream ("one connection" conflict). Retried quickly.
	ErrDuplicateConn = errors.New("one connection per stream allowed")
)

// StatusError is a session failure carrying an upstream HTTP status,
// typically from the gateway handshake or the platform's signing tier.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream status code %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("upstream status code %d", e.Code)
}

// SignError is a failure from the request-signing tier. Classified the same
// way as upstream 5xx: exponential backoff.
type SignError struct {
	Msg string
}

func (e *SignError) Error() string { return "sign request failed: " + e.Msg }
