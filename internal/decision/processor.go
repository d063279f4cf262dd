// Package decision aggregates dimension results into a routed, explained
// assessment.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rulepack"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// EngineVersion is stamped into every assessment's metadata.
const EngineVersion = "kestrel-1.0"

// UnknownCaseID is used when a case arrives without an identifier.
const UnknownCaseID = "UNKNOWN"

var tracer = otel.Tracer("kestrel-decision")

// SnapshotSource supplies the active rulepack snapshot.
type SnapshotSource interface {
	Current() *rulepack.Snapshot
}

// Processor evaluates cases against the active rulepack.
type Processor struct {
	snapshots SnapshotSource
	metrics   *metrics.Metrics

	// Now is the clock used for timestamps.
	Now func() time.Time
}

// NewProcessor creates a processor. m may be nil.
func NewProcessor(snapshots SnapshotSource, m *metrics.Metrics) *Processor {
	return &Processor{
		snapshots: snapshots,
		metrics:   m,
		Now:       time.Now,
	}
}

type traceIDKey struct{}

// WithTraceID attaches a trace ID that Evaluate copies into the assessment.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func traceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// Evaluate scores a case against the snapshot that is active when the call
// starts. A reload during the call does not affect it.
func (p *Processor) Evaluate(ctx context.Context, tenantID string, in *domain.CaseInput) (*domain.Assessment, error) {
	start := time.Now()

	snap := p.snapshots.Current()
	if snap == nil {
		p.metrics.IncrementEvaluationError("no_rulepack")
		return nil, domain.ErrNoRulepack
	}

	ctx, span := tracer.Start(ctx, "decision.Evaluate",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("case.id", in.CaseID),
			attribute.String("rulepack.version", snap.Version()),
		),
	)
	defer span.End()

	a, err := p.Process(snap, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.IncrementEvaluationError("evaluation")
		return nil, err
	}

	a.TenantID = tenantID
	a.Metadata.TraceID = traceIDFromContext(ctx)
	a.Metadata.TotalMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("assessment.route", string(a.Route)),
		attribute.Int("assessment.risk_score", a.RiskScore),
	)

	for _, d := range a.DefaultsApplied {
		slog.Debug("default applied",
			"case_id", a.CaseID,
			"dimension", d.Dimension,
			"field", d.Field,
			"value", d.Value,
			"default", d.Default,
		)
	}
	p.metrics.ObserveAssessment(a, start)

	return a, nil
}

// Process runs the full pipeline for one case against snap. It performs no
// I/O and is deterministic apart from the assessment ID and timestamp.
func (p *Processor) Process(snap *rulepack.Snapshot, in *domain.CaseInput) (*domain.Assessment, error) {
	rp := snap.Rulepack
	eff := in.EffectiveThresholds(rp)

	rec := scoring.NewRecorder()
	dims, err := scoring.Evaluate(rp, in, eff, rec)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", in.CaseID, err)
	}

	total := dims.Total()
	label := Band(total, rp.Thresholds.Bands)
	route, reason := Route(&dims, in, eff, total)

	flags, err := RedFlags(snap.RedFlags, FlagInputs(rp, in, total, label, route))
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", in.CaseID, err)
	}

	caseID := in.CaseID
	if caseID == "" {
		caseID = UnknownCaseID
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	return &domain.Assessment{
		ID:                  uuid.New().String(),
		CaseID:              caseID,
		RiskScore:           total,
		RiskLabel:           label,
		Route:               route,
		Status:              domain.AssessmentStatusAssessed,
		ModelConfidence:     Confidence(in),
		Dimensions:          dims,
		RedFlags:            flags,
		PolicyRefs:          rp.PolicyRefs,
		RulepackVersion:     rp.Version,
		DecisionExplanation: Explain(&dims, label, route),
		Timestamp:           domain.NewTimestamp(now()),
		Assessor: domain.Assessor{
			Agent: rp.Assessor.Agent,
			Mode:  rp.Assessor.Mode,
		},
		DefaultsApplied: rec.Applied(),
		Metadata: domain.AssessmentMetadata{
			RouteReason:      reason,
			Thresholds:       eff,
			RulepackChecksum: snap.Checksum,
			EngineVersion:    EngineVersion,
		},
	}, nil
}

// ShouldEscalate reports whether the assessment was routed to EDD.
func ShouldEscalate(a *domain.Assessment) bool {
	return a.Route == domain.RouteEDD
}
