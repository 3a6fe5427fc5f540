// Package events carries identity lifecycle notifications so that auth and
// cart do not import each other.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type SessionKind int

const (
	SessionStarted SessionKind = iota
	SessionEnded
)

func (k SessionKind) String() string {
	if k == SessionStarted {
		return "session_started"
	}
	return "session_ended"
}

type SessionEvent struct {
	Kind   SessionKind
	UserID int64
}

type SessionHandler func(ctx context.Context, ev SessionEvent) error

// Bus delivers session events synchronously, in subscription order.
// A failing subscriber is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers []SessionHandler
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(h SessionHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, ev SessionEvent) {
	b.mu.RLock()
	handlers := append([]SessionHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			b.logger.Warn("Session subscriber failed",
				zap.String("event", ev.Kind.String()),
				zap.Int64("user_id", ev.UserID),
				zap.Error(err),
			)
		}
	}
}
