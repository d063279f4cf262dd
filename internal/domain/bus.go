package domain

import (
	"context"
	"time"
)

// EventBus carries pipeline events between the API, workers and the
// rulepack store. Every call is scoped to a tenant. A subscription under
// SystemTenant receives its topic for all tenants.
type EventBus interface {
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler handles one delivered message. Errors are logged by the
// bus and the message is not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope around an event payload.
type Message struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Topic       string    `json:"topic"`
	Payload     []byte    `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// Subscription is a live handler registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the event bus.
type EventBusConfig struct {
	// Type is "channel" or "nats".
	Type string

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Pipeline topics.
const (
	TopicCaseSubmitted       = "kestrel.case.submitted"
	TopicAssessmentCompleted = "kestrel.assessment.completed"
	TopicAssessmentEDD       = "kestrel.assessment.edd"
	TopicRulepackReloaded    = "kestrel.rulepack.reloaded"
)

// SystemTenant is the tenant under which tenant-independent events, such as
// rulepack reloads, are published. Workers without a tenant list also
// subscribe under it.
const SystemTenant = "_global"
