package source

import (
	"encoding/json"
	"errors"
	"testing"

	logx "giftboard/pkg/logx"
)

func TestClassifyGatewayError(t *testing.T) {
	cases := []struct {
		name  string
		frame wsFrame
		check func(t *testing.T, err error)
	}{
		{
			name:  "offline",
			frame: wsFrame{Type: "error", Message: "stream is offline"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrOffline) {
					t.Fatalf("got %v, want ErrOffline", err)
				}
			},
		},
		{
			name:  "not live",
			frame: wsFrame{Type: "error", Message: "user is not live"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrOffline) {
					t.Fatalf("got %v, want ErrOffline", err)
				}
			},
		},
		{
			name:  "offline wins over status code",
			frame: wsFrame{Type: "error", Message: "room offline", Code: 504},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrOffline) {
					t.Fatalf("got %v, want ErrOffline", err)
				}
			},
		},
		{
			name:  "duplicate connection",
			frame: wsFrame{Type: "error", Message: "only one connection allowed per room"},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrDuplicateConn) {
					t.Fatalf("got %v, want ErrDuplicateConn", err)
				}
			},
		},
		{
			name:  "sign failure",
			frame: wsFrame{Type: "error", Message: "sign server unavailable"},
			check: func(t *testing.T, err error) {
				var se *SignError
				if !errors.As(err, &se) {
					t.Fatalf("got %v, want *SignError", err)
				}
				if se.Msg != "sign server unavailable" {
					t.Fatalf("SignError.Msg = %q", se.Msg)
				}
			},
		},
		{
			name:  "upstream status",
			frame: wsFrame{Type: "error", Message: "gateway timeout", Code: 504},
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("got %v, want *StatusError", err)
				}
				if se.Code != 504 {
					t.Fatalf("StatusError.Code = %d, want 504", se.Code)
				}
			},
		},
		{
			name:  "unclassified",
			frame: wsFrame{Type: "error", Message: "something broke"},
			check: func(t *testing.T, err error) {
				if err == nil || errors.Is(err, ErrOffline) || errors.Is(err, ErrDuplicateConn) {
					t.Fatalf("got %v, want a plain error", err)
				}
				var se *StatusError
				if errors.As(err, &se) {
					t.Fatalf("got %v, want a plain error", err)
				}
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.check(t, classifyGatewayError(c.frame))
		})
	}
}

func TestDispatchGiftMapsFrameFields(t *testing.T) {
	var got RawGift
	var calls int
	c, err := NewWebcastClient(WebcastConfig{
		GatewayURL: "ws://127.0.0.1:1/ws",
		Streamer:   "streamer",
	}, func(g RawGift) {
		got = g
		calls++
	}, logx.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payload := `{"type":"gift",
		"user":{"unique_id":"alice","nickname":"Alice!","user_id":"42"},
		"gift":{"name":"rose","gift_id":7,"diamond_count":5},
		"repeat_count":2,"repeat_total":3}`
	var f wsFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	c.dispatchGift(f)

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if got.UniqueID != "alice" || got.Nickname != "Alice!" || got.UserID != "42" {
		t.Fatalf("user fields = %+v", got)
	}
	if got.GiftName != "rose" || got.GiftID != 7 || got.Diamonds != 5 {
		t.Fatalf("gift fields = %+v", got)
	}
	if got.RepeatCount != 2 || got.RepeatTotal != 3 {
		t.Fatalf("repeat fields = %+v", got)
	}
	if got.At.IsZero() {
		t.Fatalf("dispatch must stamp a receive time")
	}

	// A frame without a gift body never reaches the handler.
	c.dispatchGift(wsFrame{Type: "gift"})
	if calls != 1 {
		t.Fatalf("giftless frame dispatched to handler")
	}
}

func TestNewWebcastClientValidation(t *testing.T) {
	if _, err := NewWebcastClient(WebcastConfig{Streamer: "s"}, nil, logx.Nop()); err == nil {
		t.Fatalf("missing gateway url accepted")
	}
	if _, err := NewWebcastClient(WebcastConfig{GatewayURL: "ws://127.0.0.1:1/ws"}, nil, logx.Nop()); err == nil {
		t.Fatalf("missing streamer accepted")
	}
}
