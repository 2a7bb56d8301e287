package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/gridwatch/dayahead/internal/coordinator"
	"github.com/gridwatch/dayahead/internal/publish"
	"github.com/gridwatch/dayahead/internal/window"
)

const cycleTimeout = 2 * time.Minute

// Scheduler drives the periodic work: price fetch cycles, the retained
// publish cycle, and the cache retention sweep. It also listens to window
// events so a rollover triggers a publish cycle immediately instead of
// waiting for the next cron tick.
type Scheduler struct {
	cron          *cron.Cron
	coord         *coordinator.Coordinator
	window        *window.Store
	publisher     *publish.Controller // nil when no broker is configured
	tomorrowAfter int
	ctx           context.Context
	now           func() time.Time
}

func New(ctx context.Context, coord *coordinator.Coordinator, win *window.Store, publisher *publish.Controller, tomorrowAfterHour int) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		coord:         coord,
		window:        win,
		publisher:     publisher,
		tomorrowAfter: tomorrowAfterHour,
		ctx:           ctx,
		now:           time.Now,
	}
}

// RegisterAll registers the fetch, publish, and sweep tasks.
func (s *Scheduler) RegisterAll(fetchCron, publishCron, sweepCron string) error {
	if _, err := s.cron.AddFunc(fetchCron, s.fetchCycle); err != nil {
		return fmt.Errorf("register fetch task: %w", err)
	}
	if _, err := s.cron.AddFunc(publishCron, s.publishCycle); err != nil {
		return fmt.Errorf("register publish task: %w", err)
	}
	if _, err := s.cron.AddFunc(sweepCron, s.sweepCycle); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// Start starts the cron loop and the rollover listener.
func (s *Scheduler) Start() {
	events := s.window.Subscribe()
	go func() {
		for {
			select {
			case <-s.ctx.Done():
				s.window.Unsubscribe(events)
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Kind == window.EventDayRollover {
					s.publishCycle()
				}
			}
		}
	}()

	s.cron.Start()
	slog.Info("scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("scheduler stopped")
}

// RunStartup executes one fetch cycle immediately so the window and the
// retained surface are warm right after boot.
func (s *Scheduler) RunStartup() {
	s.fetchCycle()
}

// fetchCycle fetches today (and, in the afternoon, tomorrow) concurrently,
// ingests the results into the window, and refreshes the retained surface.
func (s *Scheduler) fetchCycle() {
	ctx, cancel := context.WithTimeout(s.ctx, cycleTimeout)
	defer cancel()

	now := s.now()
	dates := []time.Time{now}
	if now.Hour() >= s.tomorrowAfter {
		dates = append(dates, now.AddDate(0, 0, 1))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, date := range dates {
		g.Go(func() error {
			obj, err := s.coord.FetchOrRetrieve(gctx, date)
			if err != nil {
				return err
			}
			s.window.Ingest(obj)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("fetch cycle", "error", err)
		return
	}

	s.publishCycle()
}

func (s *Scheduler) publishCycle() {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, cycleTimeout)
	defer cancel()

	if err := s.publisher.RunCycle(ctx); err != nil {
		// Aborted cycles retry on the next tick; retained publishes overwrite.
		slog.Error("publish cycle", "error", err)
	}
}

func (s *Scheduler) sweepCycle() {
	ctx, cancel := context.WithTimeout(s.ctx, cycleTimeout)
	defer cancel()

	if err := s.coord.Sweep(ctx); err != nil {
		slog.Error("retention sweep", "error", err)
	}
}
