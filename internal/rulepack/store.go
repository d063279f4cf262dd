package rulepack

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Reload triggers recorded in load history and metrics.
const (
	TriggerStartup = "startup"
	TriggerAPI     = "api"
	TriggerSignal  = "signal"
	TriggerWatch   = "watch"
)

// ReloadEvent describes the outcome of one reload attempt. Snapshot is the
// new snapshot on success and nil on failure.
type ReloadEvent struct {
	Snapshot *Snapshot
	Err      error
	Trigger  string
	Source   string
	At       time.Time
	Duration time.Duration
}

// Store serves the active rulepack snapshot. Readers never block: Current
// is a single atomic load, and a reload only publishes once the replacement
// snapshot is fully validated.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	// requests counts Reload calls. A load remembers the count when it
	// starts reading, so a caller can tell whether it saw the caller's file.
	requests atomic.Uint64

	// OnReload, when set, is called after every reload attempt.
	OnReload func(ctx context.Context, ev ReloadEvent)
}

// NewStore creates a store for the rulepack file at path. Call Load before
// serving traffic.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewStaticStore creates a store that serves snap and has no file to reload from.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Path returns the rulepack file the store reloads from.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Load performs the initial load.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	return s.Reload(ctx, TriggerStartup)
}

// reloadResult is what a shared load hands to every caller that joined it.
type reloadResult struct {
	snap    *Snapshot
	startAt uint64
}

// Reload re-reads the rulepack file and atomically swaps it in. On failure
// the previous snapshot stays active. Concurrent calls share one load, but a
// caller never accepts a load that began reading before the caller arrived:
// it runs another load instead, recorded under its own trigger.
func (s *Store) Reload(ctx context.Context, trigger string) (*Snapshot, error) {
	if s.path == "" {
		return nil, &domain.ConfigError{Err: errors.New("store has no rulepack path")}
	}

	req := s.requests.Add(1)
	for {
		v, err, _ := s.group.Do("reload", func() (any, error) {
			startAt := s.requests.Load()
			snap, err := s.load(ctx, trigger)
			return reloadResult{snap: snap, startAt: startAt}, err
		})
		res := v.(reloadResult)
		if res.startAt >= req {
			if err != nil {
				return nil, err
			}
			return res.snap, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (s *Store) load(ctx context.Context, trigger string) (*Snapshot, error) {
	start := time.Now()
	snap, err := LoadFile(s.path)

	ev := ReloadEvent{
		Snapshot: snap,
		Err:      err,
		Trigger:  trigger,
		Source:   s.path,
		At:       start.UTC(),
	}

	if err != nil {
		prev := UnknownVersion
		if cur := s.current.Load(); cur != nil {
			prev = cur.Version()
		}
		slog.Error("rulepack reload rejected",
			"trigger", trigger,
			"source", s.path,
			"active_version", prev,
			"error", err,
		)
	} else {
		s.current.Store(snap)
		slog.Info("rulepack loaded",
			"trigger", trigger,
			"source", s.path,
			"rulepack_version", snap.Version(),
			"checksum", snap.Checksum,
			"red_flags", len(snap.RedFlags),
		)
	}

	ev.Duration = time.Since(start)
	if s.OnReload != nil {
		s.OnReload(ctx, ev)
	}
	return snap, err
}
