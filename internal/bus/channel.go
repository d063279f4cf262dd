package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultChannelBuffer = 1000

// ChannelBus is the in-process EventBus. Each subscription has a buffered
// inbox drained by its own goroutine. Publish never blocks: a message for a
// full inbox is dropped and logged.
type ChannelBus struct {
	bufferSize int

	mu     sync.RWMutex
	topics map[string][]*channelSub
	closed bool
}

type channelSub struct {
	bus      *ChannelBus
	tenantID string
	topic    string
	handler  domain.MessageHandler
	inbox    chan *domain.Message
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// NewChannelBus creates a channel bus whose subscriptions buffer up to
// bufferSize messages.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = defaultChannelBuffer
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string][]*channelSub),
	}
}

// Publish hands the message to every matching subscription.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	msg := newMessage(tenantID, topic, payload)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for _, sub := range b.topics[topic] {
		if !sub.matches(tenantID) {
			continue
		}
		select {
		case sub.inbox <- msg:
		default:
			slog.Warn("event bus subscriber full, message dropped",
				"tenant_id", tenantID,
				"topic", topic,
				"message_id", msg.ID,
			)
		}
	}
	return nil
}

// Subscribe registers handler for topic. The subscription ends when ctx is
// cancelled, on Unsubscribe, or when the bus closes.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSub{
		bus:      b,
		tenantID: tenantID,
		topic:    topic,
		handler:  handler,
		inbox:    make(chan *domain.Message, b.bufferSize),
		ctx:      subCtx,
		cancel:   cancel,
	}
	b.topics[topic] = append(b.topics[topic], sub)

	go sub.run()
	return sub, nil
}

// Ping reports whether the bus is still open.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every subscription. Later calls are no-ops.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.stop()
		}
	}
	b.topics = nil
	return nil
}

func (b *ChannelBus) remove(target *channelSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.topics[target.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	target.stop()
}

// matches reports whether a message published for tenantID reaches s.
func (s *channelSub) matches(tenantID string) bool {
	return s.tenantID == tenantID || s.tenantID == domain.SystemTenant
}

func (s *channelSub) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.inbox:
			if !ok {
				return
			}
			deliver(s.ctx, s.handler, msg)
		}
	}
}

// stop must be called with the bus lock held so no Publish is sending.
func (s *channelSub) stop() {
	s.once.Do(func() {
		s.cancel()
		close(s.inbox)
	})
}

// Unsubscribe removes the subscription from the bus.
func (s *channelSub) Unsubscribe() error {
	s.bus.remove(s)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSub) Topic() string {
	return s.topic
}
