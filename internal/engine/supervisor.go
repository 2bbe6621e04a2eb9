package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// Supervisor owns run scheduling: it recovers interrupted runs on
	// start, re-enters listed runs on the monitoring interval, and
	// accepts manual kicks after decisions. Each item runs single
	// flight; a kick while the item's run is in flight is a no-op
	Supervisor struct {
		engine   *Engine
		store    store.Store
		interval time.Duration
		ctx      context.Context
		cancel   context.CancelFunc
		wg       sync.WaitGroup
		inflight sync.Map // map[api.ItemID]struct{}
	}
)

// NewSupervisor creates a supervisor with the given monitoring interval
func NewSupervisor(
	e *Engine, st store.Store, interval time.Duration,
) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		engine:   e,
		store:    st,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start recovers interrupted runs and begins the monitoring loop
func (s *Supervisor) Start() {
	slog.Info("Supervisor starting")

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	if err := s.recoverRuns(ctx); err != nil {
		slog.Error("Failed to recover runs",
			log.Error(err))
	}

	s.wg.Go(s.monitorLoop)
}

// Stop halts scheduling and waits for in-flight runs to settle
func (s *Supervisor) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Supervisor stopped")
}

// Kick enters an item's run unless one is already in flight
func (s *Supervisor) Kick(id api.ItemID) {
	if _, loaded := s.inflight.LoadOrStore(id, struct{}{}); loaded {
		return
	}

	s.wg.Go(func() {
		defer s.inflight.Delete(id)

		if err := s.engine.Run(s.ctx, id); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Error("Run pass failed",
				log.ItemID(id),
				log.Error(err))
		}
	})
}

// recoverRuns re-enters every run that was neither finished, parked at
// a gate, nor flagged when the process last stopped
func (s *Supervisor) recoverRuns(ctx context.Context) error {
	runs, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	var recovered int
	for _, st := range runs {
		if !runnable(st) {
			continue
		}
		s.Kick(st.ItemID)
		recovered++
	}

	if recovered > 0 {
		slog.Info("Runs recovered",
			slog.Int("count", recovered))
	}
	return nil
}

func (s *Supervisor) monitorLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.monitorPass()
		}
	}
}

// monitorPass re-enters every listed run so its deal manager can poll
// buyer activity
func (s *Supervisor) monitorPass() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	runs, err := s.store.List(ctx)
	if err != nil {
		slog.Error("Monitor pass failed",
			log.Error(err))
		return
	}

	for _, st := range runs {
		if st.Status == api.ItemListed && runnable(st) {
			s.Kick(st.ItemID)
		}
	}
}

func runnable(st *api.RunState) bool {
	return !st.Terminal() && !st.Suspended() && st.Error == ""
}
