package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	logx "giftboard/pkg/logx"
)

// WebcastConfig configures the gateway WebSocket client.
type WebcastConfig struct {
	// GatewayURL is the ws:// or wss:// endpoint of the webcast gateway.
	GatewayURL string
	// Streamer is the broadcast's unique id (without the leading @).
	Streamer string
	// HandshakeTimeout bounds the dial. Default 10s.
	HandshakeTimeout time.Duration
	// PingInterval keeps the link alive through idle proxies. Default 30s.
	PingInterval time.Duration
}

// WebcastClient is a Source backed by a gateway WebSocket session.
//
// The gateway multiplexes the platform's webcast protocol into JSON frames:
//
//	{"type":"gift","user":{...},"gift":{...},"repeat_count":N,"repeat_total":M}
//	{"type":"control","action":"stream_end"}
//	{"type":"error","message":"..."}
//
// Run returns nil on a clean stream end, ErrOffline / ErrDuplicateConn /
// *StatusError / *SignError on classified failures, and a plain error
// otherwise.
type WebcastClient struct {
	cfg     WebcastConfig
	handler Handler
	log     logx.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	linkFunc func(bool)
}

// SetLinkFunc registers an explicit link-state callback (LinkObserver).
func (c *WebcastClient) SetLinkFunc(fn func(bool)) {
	c.mu.Lock()
	c.linkFunc = fn
	c.mu.Unlock()
}

func (c *WebcastClient) notifyLink(linked bool) {
	c.mu.Lock()
	fn := c.linkFunc
	c.mu.Unlock()
	if fn != nil {
		fn(linked)
	}
}

type wsFrame struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`

	User *struct {
		UniqueID string `json:"unique_id"`
		Nickname string `json:"nickname"`
		UserID   string `json:"user_id"`
	} `json:"user,omitempty"`
	Gift *struct {
		Name     string `json:"name"`
		GiftID   int64  `json:"gift_id"`
		Diamonds int64  `json:"diamond_count"`
	} `json:"gift,omitempty"`
	RepeatCount int64 `json:"repeat_count,omitempty"`
	RepeatTotal int64 `json:"repeat_total,omitempty"`
}

func NewWebcastClient(cfg WebcastConfig, handler Handler, log logx.Logger) (*WebcastClient, error) {
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, fmt.Errorf("source: gateway url is required")
	}
	if strings.TrimSpace(cfg.Streamer) == "" {
		return nil, fmt.Errorf("source: streamer is required")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &WebcastClient{cfg: cfg, handler: handler, log: log}, nil
}

// Run dials the gateway and pumps frames until the session ends.
func (c *WebcastClient) Run(ctx context.Context) error {
	u, err := url.Parse(c.cfg.GatewayURL)
	if err != nil {
		return fmt.Errorf("source: bad gateway url: %w", err)
	}
	q := u.Query()
	q.Set("unique_id", c.cfg.Streamer)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			// The gateway answers the upgrade with the upstream status when the
			// platform rejects the room request.
			switch resp.StatusCode {
			case 404:
				return ErrOffline
			default:
				return &StatusError{Code: resp.StatusCode}
			}
		}
		return fmt.Errorf("source: dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()

	c.log.Info("webcast session open", logx.String("streamer", c.cfg.Streamer))
	c.notifyLink(true)
	defer c.notifyLink(false)

	// Ping loop. Stops with the session.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	// Unblock the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("source: read: %w", err)
		}

		var f wsFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			c.log.Warn("webcast frame decode failed", logx.Err(err))
			continue
		}

		switch f.Type {
		case "gift":
			c.dispatchGift(f)
		case "control":
			if f.Action == "stream_end" {
				c.log.Info("webcast stream ended")
				return nil
			}
		case "error":
			return classifyGatewayError(f)
		default:
			// Other event kinds (chat, likes, ...) are not this bot's business.
		}
	}
}

func (c *WebcastClient) dispatchGift(f wsFrame) {
	if c.handler == nil || f.Gift == nil {
		return
	}
	g := RawGift{
		GiftName:    f.Gift.Name,
		GiftID:      f.Gift.GiftID,
		Diamonds:    f.Gift.Diamonds,
		RepeatCount: f.RepeatCount,
		RepeatTotal: f.RepeatTotal,
		At:          time.Now().UTC(),
	}
	if f.User != nil {
		g.UniqueID = f.User.UniqueID
		g.Nickname = f.User.Nickname
		g.UserID = f.User.UserID
	}
	c.handler(g)
}

// classifyGatewayError maps a gateway error frame onto the typed terminal errors.
func classifyGatewayError(f wsFrame) error {
	msg := strings.ToLower(f.Message)
	switch {
	case strings.Contains(msg, "offline"), strings.Contains(msg, "not live"):
		return ErrOffline
	case strings.Contains(msg, "one connection"):
		return ErrDuplicateConn
	case strings.Contains(msg, "sign"):
		return &SignError{Msg: f.Message}
	case f.Code >= 300:
		return &StatusError{Code: f.Code, Body: f.Message}
	default:
		return fmt.Errorf("source: gateway error: %s", f.Message)
	}
}

// Disconnect closes the current session, if any. Safe to call concurrently
// with Run; the pending read unblocks with a close error.
func (c *WebcastClient) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "teardown"),
		time.Now().Add(2*time.Second))
	return conn.Close()
}
