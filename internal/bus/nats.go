package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// WorkerQueueGroup is the NATS queue group shared by every worker replica.
const WorkerQueueGroup = "kestrel-workers"

const (
	subjectRoot      = "kestrel"
	reconnectBufSize = 8 << 20
)

// workQueueTopics are delivered to one subscriber per queue group rather
// than to all of them.
var workQueueTopics = map[string]bool{
	domain.TopicCaseSubmitted: true,
}

// NATSBus is the EventBus for multi-replica deployments. The tenant becomes
// the second subject token, so topic "kestrel.case.submitted" for tenant t1
// travels on "kestrel.t1.case.submitted".
type NATSBus struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[*natsSub]struct{}
}

type natsSub struct {
	bus   *NATSBus
	topic string
	sub   *nats.Subscription
}

// NewNATSBus connects to cfg.NATSUrl, retrying up to cfg.NATSMaxReconnects
// times.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	cfg = withNATSDefaults(cfg)

	conn, err := connectNATS(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("NATS connected",
		"url", conn.ConnectedUrl(),
		"server_id", conn.ConnectedServerId(),
	)
	return &NATSBus{
		conn: conn,
		subs: make(map[*natsSub]struct{}),
	}, nil
}

func withNATSDefaults(cfg domain.EventBusConfig) domain.EventBusConfig {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects <= 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait <= 0 {
		cfg.NATSReconnectWait = 5
	}
	return cfg
}

func natsOptions(cfg domain.EventBusConfig) []nats.Option {
	opts := []nats.Option{
		nats.Name("kestrel"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.NATSReconnectWait) * time.Second),
		nats.ReconnectBufSize(reconnectBufSize),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("NATS async error", "subject", subject, "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}
	return opts
}

func connectNATS(cfg domain.EventBusConfig) (*nats.Conn, error) {
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second
	opts := natsOptions(cfg)

	var lastErr error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err := nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.Warn("NATS connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		if attempt < cfg.NATSMaxReconnects {
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("bus: connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, lastErr)
}

// Publish wraps payload in a Message envelope and publishes it on the
// tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return ErrTenantRequired
	}

	data, err := json.Marshal(newMessage(tenantID, topic, payload))
	if err != nil {
		return fmt.Errorf("bus: encode %s message: %w", topic, err)
	}
	if err := b.conn.Publish(subject(tenantID, topic), data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. Topics in workQueueTopics join
// WorkerQueueGroup so each message is handled by one replica.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	subj := subscriptionSubject(tenantID, topic)
	cb := dispatch(ctx, handler)

	var (
		ns  *nats.Subscription
		err error
	)
	if workQueueTopics[topic] {
		ns, err = b.conn.QueueSubscribe(subj, WorkerQueueGroup, cb)
	} else {
		ns, err = b.conn.Subscribe(subj, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", subj, err)
	}

	sub := &natsSub{bus: b, topic: topic, sub: ns}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

func dispatch(ctx context.Context, handler domain.MessageHandler) nats.MsgHandler {
	return func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Warn("dropping undecodable NATS message",
				"subject", m.Subject,
				"error", err,
			)
			return
		}
		deliver(ctx, handler, &msg)
	}
}

// Ping round-trips to the server.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("bus: NATS not connected (%s)", b.conn.Status())
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drops all subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	for sub := range b.subs {
		_ = sub.sub.Unsubscribe()
	}
	b.subs = make(map[*natsSub]struct{})
	b.mu.Unlock()

	b.conn.Close()
	return nil
}

// subject maps a topic to the tenant's NATS subject.
func subject(tenantID, topic string) string {
	return subjectRoot + "." + tenantID + "." + strings.TrimPrefix(topic, subjectRoot+".")
}

// subscriptionSubject is subject with a wildcard tenant token for
// SystemTenant subscriptions.
func subscriptionSubject(tenantID, topic string) string {
	if tenantID == domain.SystemTenant {
		return subject("*", topic)
	}
	return subject(tenantID, topic)
}

// Unsubscribe stops delivery and forgets the subscription.
func (s *natsSub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSub) Topic() string {
	return s.topic
}
