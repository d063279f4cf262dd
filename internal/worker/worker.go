// Package worker provides async case assessment for the Pro tier.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Worker assesses cases submitted on the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	processor *decision.Processor

	// CacheTTL bounds how long assessments stay cached. Zero uses the
	// cache default.
	CacheTTL time.Duration

	mu       sync.Mutex
	subs     map[string]domain.Subscription // by tenant
	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Config lists the tenants to serve. With none, the worker subscribes
// under domain.SystemTenant and serves every tenant.
type Config struct {
	TenantIDs []string
}

// NewWorker creates a worker. repo and cache may be nil.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, cache domain.Cache, processor *decision.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       eventBus,
		repo:      repo,
		cache:     cache,
		processor: processor,
		subs:      make(map[string]domain.Subscription),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to case submissions. A tenant that fails to subscribe
// is logged and skipped; Start fails only if no subscription succeeds.
func (w *Worker) Start(cfg Config) error {
	tenants := cfg.TenantIDs
	if len(tenants) == 0 {
		tenants = []string{domain.SystemTenant}
	}

	var firstErr error
	for _, tenantID := range tenants {
		if err := w.subscribe(tenantID); err != nil {
			slog.Error("worker subscription failed", "tenant_id", tenantID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	w.mu.Lock()
	active := len(w.subs)
	w.mu.Unlock()
	if active == 0 && firstErr != nil {
		return firstErr
	}

	slog.Info("worker started",
		"subscriptions", active,
		"all_tenants", len(cfg.TenantIDs) == 0,
	)
	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCaseSubmitted, func(ctx context.Context, msg *domain.Message) error {
		// A system subscription serves every tenant; the envelope says which.
		return w.processCase(ctx, msg.TenantID, msg)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.subs[tenantID]; ok {
		_ = old.Unsubscribe()
	}
	w.subs[tenantID] = sub
	return nil
}

// processCase evaluates one submitted case, stores the assessment and
// announces the outcome.
func (w *Worker) processCase(ctx context.Context, tenantID string, msg *domain.Message) error {
	w.inflight.Add(1)
	defer w.inflight.Done()

	start := time.Now()

	var ev bus.CaseSubmittedEvent
	if err := bus.DecodeJSON(msg, &ev); err != nil {
		slog.Error("failed to parse case message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if ev.Case == nil {
		slog.Error("case message without case",
			"message_id", msg.ID,
		)
		return errors.New("case is required")
	}

	traceID := ev.TraceID
	if traceID == "" {
		traceID = msg.ID
	}
	ctx = decision.WithTraceID(ctx, traceID)

	slog.Debug("processing case",
		"case_id", ev.Case.CaseID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	a, err := w.processor.Evaluate(ctx, tenantID, ev.Case)
	if err != nil {
		slog.Error("case evaluation failed",
			"case_id", ev.Case.CaseID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, tenantID, a); err != nil {
			slog.Error("failed to save assessment",
				"case_id", a.CaseID,
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	if w.cache != nil {
		if err := w.cache.SetAssessment(ctx, tenantID, a, w.CacheTTL); err != nil {
			slog.Warn("failed to cache assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	if err := bus.PublishAssessment(ctx, w.bus, tenantID, a); err != nil {
		slog.Error("failed to publish assessment",
			"case_id", a.CaseID,
			"assessment_id", a.ID,
			"error", err,
		)
	}

	if decision.ShouldEscalate(a) {
		slog.Warn("case routed to EDD",
			"case_id", a.CaseID,
			"tenant_id", tenantID,
			"route_reason", a.Metadata.RouteReason,
			"red_flags", a.RedFlags,
		)
	}

	slog.Info("case assessed",
		"case_id", a.CaseID,
		"tenant_id", tenantID,
		"route", a.Route,
		"risk_score", a.RiskScore,
		"risk_label", a.RiskLabel,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop unsubscribes and waits for in-flight cases to finish.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	for tenantID, sub := range w.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("worker unsubscribe failed", "tenant_id", tenantID, "error", err)
		}
	}
	clear(w.subs)
	w.mu.Unlock()

	w.inflight.Wait()
	slog.Info("worker stopped")
	return nil
}

// Stats describes the worker's live subscriptions.
type Stats struct {
	Subscriptions int      `json:"subscriptions"`
	Tenants       []string `json:"tenants"`
}

// Stats returns the tenants currently subscribed, sorted.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	tenants := make([]string, 0, len(w.subs))
	for tenantID := range w.subs {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return Stats{Subscriptions: len(tenants), Tenants: tenants}
}
