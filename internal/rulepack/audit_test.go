package rulepack

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func TestAuditHook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rulepack.yaml")
	writeRulepack(t, path, fixture(t))

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(dir, "audit.db"),
	})
	require.NoError(t, err)
	defer repo.Close()

	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	events := make(chan bus.RulepackReloadedEvent, 4)
	_, err = eventBus.Subscribe(context.Background(), domain.SystemTenant, domain.TopicRulepackReloaded,
		func(ctx context.Context, msg *domain.Message) error {
			var ev bus.RulepackReloadedEvent
			if err := bus.DecodeJSON(msg, &ev); err != nil {
				return err
			}
			events <- ev
			return nil
		})
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())

	store := NewStore(path)
	store.OnReload = AuditHook(repo, eventBus, m)

	_, err = store.Load(context.Background())
	require.NoError(t, err)

	writeRulepack(t, path, "rulepack: {}\n")
	_, err = store.Reload(context.Background(), TriggerWatch)
	require.Error(t, err)

	loads, err := repo.ListRulepackLoads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, loads, 2)

	statuses := map[string]*domain.RulepackLoad{}
	for _, l := range loads {
		statuses[l.Trigger] = l
	}
	require.Contains(t, statuses, TriggerStartup)
	assert.Equal(t, domain.RulepackLoadApplied, statuses[TriggerStartup].Status)
	assert.Equal(t, "sow-uae-2025.09", statuses[TriggerStartup].Version)
	require.Contains(t, statuses, TriggerWatch)
	assert.Equal(t, domain.RulepackLoadRejected, statuses[TriggerWatch].Status)
	assert.NotEmpty(t, statuses[TriggerWatch].Error)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulepackReloads.WithLabelValues(TriggerStartup, domain.RulepackLoadApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulepackReloads.WithLabelValues(TriggerWatch, domain.RulepackLoadRejected)))

	var received []bus.RulepackReloadedEvent
	for len(received) < 2 {
		select {
		case ev := <-events:
			received = append(received, ev)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for reload events, got %d", len(received))
		}
	}
	assert.Equal(t, domain.RulepackLoadApplied, received[0].Status)
	assert.Equal(t, domain.RulepackLoadRejected, received[1].Status)
}

func TestLoadRecord(t *testing.T) {
	snap := MustLoadFile(fixturePath)
	at := time.Date(2025, 9, 14, 6, 30, 0, 0, time.UTC)

	load := LoadRecord(ReloadEvent{Snapshot: snap, Trigger: TriggerAPI, Source: fixturePath, At: at})
	assert.Equal(t, domain.RulepackLoadApplied, load.Status)
	assert.Equal(t, snap.Checksum, load.Checksum)
	assert.Equal(t, at, load.LoadedAt)
	assert.Empty(t, load.Error)
}
