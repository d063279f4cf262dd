package rulepack

import (
	"context"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// LoadRecord converts a reload event into its audit record.
func LoadRecord(ev ReloadEvent) *domain.RulepackLoad {
	load := &domain.RulepackLoad{
		Source:   ev.Source,
		Trigger:  ev.Trigger,
		Status:   domain.RulepackLoadApplied,
		LoadedAt: ev.At,
	}
	if ev.Snapshot != nil {
		load.Version = ev.Snapshot.Version()
		load.Checksum = ev.Snapshot.Checksum
	}
	if ev.Err != nil {
		load.Status = domain.RulepackLoadRejected
		load.Error = ev.Err.Error()
	}
	return load
}

// AuditHook returns an OnReload callback that counts the attempt, appends it
// to the load history and announces it on the bus. Any of repo, eventBus and
// m may be nil.
func AuditHook(repo domain.Repository, eventBus domain.EventBus, m *metrics.Metrics) func(ctx context.Context, ev ReloadEvent) {
	return func(ctx context.Context, ev ReloadEvent) {
		load := LoadRecord(ev)
		m.ObserveReload(ev.Trigger, load.Version, load.Checksum, ev.Err)

		if repo != nil {
			if err := repo.SaveRulepackLoad(ctx, load); err != nil {
				slog.Error("failed to record rulepack load",
					"trigger", ev.Trigger,
					"error", err,
				)
			}
		}

		if eventBus != nil {
			err := bus.PublishJSON(ctx, eventBus, domain.SystemTenant, domain.TopicRulepackReloaded, bus.RulepackReloadedEvent{
				RulepackVersion: load.Version,
				Checksum:        load.Checksum,
				Source:          load.Source,
				Trigger:         load.Trigger,
				Status:          load.Status,
				Error:           load.Error,
				LoadedAt:        load.LoadedAt,
			})
			if err != nil {
				slog.Warn("failed to publish rulepack reload",
					"trigger", ev.Trigger,
					"error", err,
				)
			}
		}
	}
}
