// Package recheck drives the guided stock recheck: list what went stale,
// let the user confirm or edit it, then write back in one pass.
package recheck

import (
	"context"
	"log/slog"

	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
)

// Session is what an editor starts from.
type Session struct {
	HorizonDays int              `json:"horizon_days"`
	Entries     []stock.Entry    `json:"-"`
	Items       []reconcile.Item `json:"items"`
}

type Result struct {
	Plan    *reconcile.Plan
	Touched int64
}

type Service struct {
	ledger  *stock.Ledger
	engine  *reconcile.Engine
	horizon int
	log     *slog.Logger
}

func NewService(ledger *stock.Ledger, engine *reconcile.Engine, horizonDays int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{ledger: ledger, engine: engine, horizon: stock.ClampHorizon(horizonDays), log: log}
}

func (s *Service) HorizonDays() int { return s.horizon }

// Start lists the stale products and captures their pre-edit state.
// horizonDays <= 0 uses the configured horizon.
func (s *Service) Start(ctx context.Context, horizonDays int) (*Session, error) {
	if horizonDays <= 0 {
		horizonDays = s.horizon
	}
	horizonDays = stock.ClampHorizon(horizonDays)
	entries, err := s.ledger.Stale(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	return &Session{HorizonDays: horizonDays, Entries: entries, Items: reconcile.FromEntries(entries)}, nil
}

// Complete writes back an edit session. Edited products go through the
// reconciliation engine; the rest are touched as "still accurate". Both
// happen in one transaction, so a failed write leaves nothing touched.
func (s *Service) Complete(ctx context.Context, pre, post []reconcile.Item) (*Result, error) {
	plan, err := s.engine.Plan(pre, post)
	if err != nil {
		return nil, err
	}
	touched, err := s.engine.ApplyAndTouch(ctx, plan, plan.Skipped)
	if err != nil {
		s.log.Warn("recheck not completed", "err", err)
		return nil, err
	}
	s.log.Info("recheck completed", "written", len(plan.Writes), "touched", touched)
	return &Result{Plan: plan, Touched: touched}, nil
}
