package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CaseSubmittedEvent asks a worker to assess a case asynchronously.
type CaseSubmittedEvent struct {
	TraceID string            `json:"trace_id,omitempty"`
	Case    *domain.CaseInput `json:"case"`
}

// AssessmentEvent announces a finished assessment. It is published on
// TopicAssessmentCompleted for every case and additionally on
// TopicAssessmentEDD when the case was routed to enhanced due diligence.
type AssessmentEvent struct {
	AssessmentID    string       `json:"assessment_id"`
	CaseID          string       `json:"case_id"`
	Route           domain.Route `json:"route"`
	RiskLabel       domain.Label `json:"risk_label"`
	RiskScore       int          `json:"risk_score"`
	RedFlags        []string     `json:"red_flags"`
	RulepackVersion string       `json:"rulepack_version"`
	TraceID         string       `json:"trace_id,omitempty"`
}

// NewAssessmentEvent summarises an assessment for subscribers.
func NewAssessmentEvent(a *domain.Assessment) AssessmentEvent {
	return AssessmentEvent{
		AssessmentID:    a.ID,
		CaseID:          a.CaseID,
		Route:           a.Route,
		RiskLabel:       a.RiskLabel,
		RiskScore:       a.RiskScore,
		RedFlags:        a.RedFlags,
		RulepackVersion: a.RulepackVersion,
		TraceID:         a.Metadata.TraceID,
	}
}

// PublishJSON encodes v and publishes it on topic.
func PublishJSON(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// DecodeJSON decodes a message payload into v.
func DecodeJSON(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", msg.Topic, err)
	}
	return nil
}

// PublishAssessment publishes the completion event and, for EDD routes, the
// escalation event.
func PublishAssessment(ctx context.Context, b domain.EventBus, tenantID string, a *domain.Assessment) error {
	ev := NewAssessmentEvent(a)
	if err := PublishJSON(ctx, b, tenantID, domain.TopicAssessmentCompleted, ev); err != nil {
		return err
	}
	if a.Route == domain.RouteEDD {
		return PublishJSON(ctx, b, tenantID, domain.TopicAssessmentEDD, ev)
	}
	return nil
}

// RulepackReloadedEvent reports one rulepack load attempt. It is published
// under domain.SystemTenant.
type RulepackReloadedEvent struct {
	RulepackVersion string    `json:"rulepack_version,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
	Source          string    `json:"source"`
	Trigger         string    `json:"trigger"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	LoadedAt        time.Time `json:"loaded_at"`
}
