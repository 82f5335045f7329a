// Package reaper evicts sessions whose heartbeat expired, cascading the
// eviction to their command backlog and player snapshot. It is the only path
// that prunes state absent an explicit revoke.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robloxguru/gamebridge/internal/bridge/domain"
)

// Store is the persistence surface the reaper needs
type Store interface {
	StaleSessions(ctx context.Context, cutoff time.Time) ([]domain.Session, error)
	RevokeSession(ctx context.Context, jobID string) error
}

// Evictor drops expired rate-limiter entries; the sweep is co-located here
// so the limiter map stays bounded without a second timer.
type Evictor interface {
	Evict(now time.Time) int
}

// Events receives reap notifications
type Events interface {
	SessionReaped(ctx context.Context, jobID, apiKey string)
}

// Config holds reaper configuration
type Config struct {
	Logger     *slog.Logger
	Store      Store
	Evictor    Evictor
	Events     Events
	Interval   time.Duration
	StaleAfter time.Duration
}

// Reaper sweeps on a fixed interval
type Reaper struct {
	logger     *slog.Logger
	store      Store
	evictor    Evictor
	events     Events
	interval   time.Duration
	staleAfter time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	now      func() time.Time
}

// NewReaper creates a new reaper instance
func NewReaper(cfg *Config) *Reaper {
	return &Reaper{
		logger:     cfg.Logger,
		store:      cfg.Store,
		evictor:    cfg.Evictor,
		events:     cfg.Events,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
}

// Start runs the sweep loop until the context is canceled or Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("Starting stale session reaper",
		slog.Duration("interval", r.interval),
		slog.Duration("stale_after", r.staleAfter),
	)

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Reaper stopped")
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep evicts every stale session once. Each session's cascade is
// independent: a failing deletion is logged and does not block the others.
func (r *Reaper) Sweep(ctx context.Context) {
	now := r.now()
	cutoff := now.Add(-r.staleAfter)

	stale, err := r.store.StaleSessions(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to list stale sessions",
			slog.String("error", err.Error()),
		)
		return
	}

	reaped := 0
	for _, session := range stale {
		if err := r.store.RevokeSession(ctx, session.JobID); err != nil {
			r.logger.Error("Failed to reap session",
				slog.String("job_id", session.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}

		reaped++
		r.logger.Info("Reaped stale session",
			slog.String("job_id", session.JobID),
			slog.Time("last_ping", session.LastPing.Time),
		)

		if r.events != nil {
			r.events.SessionReaped(ctx, session.JobID, session.APIKey)
		}
	}

	evicted := 0
	if r.evictor != nil {
		evicted = r.evictor.Evict(now)
	}

	if reaped > 0 || evicted > 0 {
		r.logger.Debug("Sweep complete",
			slog.Int("sessions_reaped", reaped),
			slog.Int("limiter_entries_evicted", evicted),
		)
	}
}
