// Package bus carries pipeline events over in-process channels or NATS.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	// ErrTenantRequired is returned when a publish or subscribe has no tenant.
	ErrTenantRequired = errors.New("bus: tenant ID is required")

	// ErrClosed is returned by a bus after Close.
	ErrClosed = errors.New("bus: closed")
)

// New returns the bus selected by cfg.Type. An empty type means channel.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "", "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		b, err := NewNATSBus(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("bus: unsupported type %q", cfg.Type)
}

func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}
}

// deliver runs handler and logs its error. Handlers are not retried.
func deliver(ctx context.Context, handler domain.MessageHandler, msg *domain.Message) {
	if err := handler(ctx, msg); err != nil {
		slog.Warn("event handler failed",
			"tenant_id", msg.TenantID,
			"topic", msg.Topic,
			"message_id", msg.ID,
			"error", err,
		)
	}
}
