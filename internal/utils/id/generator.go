// Package id mints the identifiers NutriBot hands out: chat session ids
// and per-request correlation ids.
package id

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy selects how the body of a session id is generated.
type Strategy int32

const (
	// StrategyKSUID gives ids that sort by creation time as plain strings.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 gives RFC 9562 version 7 UUIDs.
	StrategyUUIDv7
)

const sessionPrefix = "chat-"

var sessionStrategy atomic.Int32

// SetStrategy switches the algorithm used by NewSessionID.
func SetStrategy(s Strategy) {
	sessionStrategy.Store(int32(s))
}

// ParseStrategy reads server.session_id_strategy. Anything unrecognized
// means KSUID.
func ParseStrategy(name string) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "uuidv7", "uuid":
		return StrategyUUIDv7
	}
	return StrategyKSUID
}

// NewSessionID returns "chat-" followed by a time-ordered unique body.
func NewSessionID() string {
	if Strategy(sessionStrategy.Load()) == StrategyUUIDv7 {
		if v7, err := uuid.NewV7(); err == nil {
			return sessionPrefix + v7.String()
		}
	}
	return sessionPrefix + ksuid.New().String()
}

// NewRequestID returns a UUIDv7 so request ids in logs sort by arrival.
func NewRequestID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return v7.String()
	}
	return uuid.NewString()
}
