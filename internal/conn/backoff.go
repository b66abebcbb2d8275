package conn

import (
	"errors"
	"strings"
	"time"

	"giftboard/internal/source"
)

// Class buckets session failures for backoff selection.
type Class string

const (
	// ClassClean: the session ended without error (broadcast over, link dropped cleanly).
	ClassClean Class = "clean"
	// ClassOffline: broadcast not live. Expected and benign.
	ClassOffline Class = "offline"
	// ClassUpstream: signing/rate-limit/server failures. Exponential backoff.
	ClassUpstream Class = "upstream"
	// ClassDuplicate: "one connection" conflict. Retried fast.
	ClassDuplicate Class = "duplicate"
	// ClassGeneric: anything unclassified. Fixed retry interval.
	ClassGeneric Class = "generic"
)

const (
	maxBackoff     = 600 * time.Second
	upstreamFloor  = 60 * time.Second
	duplicateRetry = 10 * time.Second
)

// Classify maps a session error onto a Class. Typed errors from the source
// package win; the substring shim below only handles errors that originate
// outside it (e.g. a swapped-in client library) and is inherently fragile to
// upstream message changes.
func Classify(err error) Class {
	if err == nil {
		return ClassClean
	}
	if errors.Is(err, source.ErrOffline) {
		return ClassOffline
	}
	if errors.Is(err, source.ErrDuplicateConn) {
		return ClassDuplicate
	}
	var se *source.SignError
	if errors.As(err, &se) {
		return ClassUpstream
	}
	var ste *source.StatusError
	if errors.As(err, &ste) {
		if ste.Code == 504 || ste.Code == 500 {
			return ClassUpstream
		}
		return ClassGeneric
	}
	return classifyText(err.Error())
}

// classifyText is the compatibility shim: case-insensitive substring match,
// checked in priority order.
func classifyText(msg string) Class {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "offline"):
		return ClassOffline
	case strings.Contains(m, "sign"), strings.Contains(m, "504"), strings.Contains(m, "status code 500"):
		return ClassUpstream
	case strings.Contains(m, "one connection"):
		return ClassDuplicate
	default:
		return ClassGeneric
	}
}

// NextBackoff picks the delay before the next connect attempt.
// prev is the backoff currently in effect (used for the exponential class).
func NextBackoff(class Class, prev time.Duration, cfg Config) time.Duration {
	switch class {
	case ClassClean, ClassOffline:
		return cfg.OfflineRetry
	case ClassUpstream:
		next := prev * 2
		if next < upstreamFloor {
			next = upstreamFloor
		}
		if next > maxBackoff {
			next = maxBackoff
		}
		return next
	case ClassDuplicate:
		return duplicateRetry
	default:
		return cfg.ErrorRetry
	}
}
