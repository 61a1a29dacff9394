// Package scheduler runs the periodic stale-stock scan.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/homestock/internal/domain/catalog"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/infra/sheets"
)

type StaleLister interface {
	Stale(ctx context.Context, horizonDays int) ([]stock.Entry, error)
}

type CategoryLister interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
}

type Reporter interface {
	StaleReport(ctx context.Context, entries []stock.Entry, horizonDays int, workbook []byte, at time.Time) error
}

type Gauge interface {
	SetStale(n int)
}

type Config struct {
	Schedule    string
	HorizonDays int
	Location    *time.Location
}

type Scheduler struct {
	cron       *cron.Cron
	cfg        Config
	stale      StaleLister
	categories CategoryLister
	reporter   Reporter
	gauge      Gauge
	log        *slog.Logger
	now        func() time.Time
}

// New builds a scheduler. categories, reporter and gauge may be nil.
func New(cfg Config, stale StaleLister, categories CategoryLister, reporter Reporter, gauge Gauge, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.HorizonDays = stock.ClampHorizon(cfg.HorizonDays)
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(cfg.Location)),
		cfg:        cfg,
		stale:      stale,
		categories: categories,
		reporter:   reporter,
		gauge:      gauge,
		log:        log,
		now:        time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.scan); err != nil {
		return fmt.Errorf("schedule stale scan %q: %w", s.cfg.Schedule, err)
	}
	s.log.Info("starting scheduler", "schedule", s.cfg.Schedule, "horizon_days", s.cfg.HorizonDays)
	s.cron.Start()
	return nil
}

// Stop waits for a running scan to finish.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("stale scan failed", "err", err)
	}
}

// RunOnce lists stale products, updates the gauge and sends the report
// with a recheck workbook. It returns the number of stale products.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	var (
		entries []stock.Entry
		names   = map[int64]string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.stale.Stale(gctx, s.cfg.HorizonDays)
		return err
	})
	if s.categories != nil && s.reporter != nil {
		g.Go(func() error {
			cats, err := s.categories.ListCategories(gctx)
			if err != nil {
				// the workbook falls back to bare category ids
				s.log.Warn("categories unavailable for workbook", "err", err)
				return nil
			}
			for _, c := range cats {
				names[c.ID] = c.Name
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if s.gauge != nil {
		s.gauge.SetStale(len(entries))
	}
	s.log.Info("stale scan", "stale", len(entries), "horizon_days", s.cfg.HorizonDays)
	if len(entries) == 0 || s.reporter == nil {
		return len(entries), nil
	}

	workbook, err := sheets.ExportRecheck(entries, names)
	if err != nil {
		// the text summary still goes out
		s.log.Warn("recheck workbook not built", "err", err)
		workbook = nil
	}
	if err := s.reporter.StaleReport(ctx, entries, s.cfg.HorizonDays, workbook, s.now().In(s.cfg.Location)); err != nil {
		return len(entries), fmt.Errorf("send stale report: %w", err)
	}
	return len(entries), nil
}
