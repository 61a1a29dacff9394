package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Spok95/homestock/internal/bot"
	"github.com/Spok95/homestock/internal/config"
	"github.com/Spok95/homestock/internal/domain/catalog"
	"github.com/Spok95/homestock/internal/domain/recheck"
	"github.com/Spok95/homestock/internal/domain/reconcile"
	"github.com/Spok95/homestock/internal/domain/stock"
	"github.com/Spok95/homestock/internal/domain/units"
	"github.com/Spok95/homestock/internal/infra/db"
	httpx "github.com/Spok95/homestock/internal/infra/http"
	"github.com/Spok95/homestock/internal/infra/logger"
	"github.com/Spok95/homestock/internal/infra/metrics"
	"github.com/Spok95/homestock/internal/infra/notify"
	"github.com/Spok95/homestock/internal/scheduler"
)

func main() {
	path := os.Getenv("APP_CONFIG")
	if path == "" {
		path = "config/example.yaml"
	}
	cfg, err := config.Load(path, ".env")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Error("bad timezone", "tz", cfg.App.Timezone, "err", err)
		return
	}

	if err := db.Migrate(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	m := metrics.New(prometheus.DefaultRegisterer)
	store := stock.NewRepo(pool)
	catalogRepo := catalog.NewRepo(pool)
	unitRepo := units.NewRepo(pool)

	ledger := stock.NewLedger(store, logger.Component(log, "ledger"), stock.WithObserver(m))
	engine := reconcile.NewEngine(store, logger.Component(log, "reconcile"), reconcile.WithObserver(m))
	rc := recheck.NewService(ledger, engine, cfg.Stale.HorizonDays, logger.Component(log, "recheck"))

	var reporter scheduler.Reporter
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		log.Info("telegram authorized", "bot", api.Self.UserName)
		reporter = notify.New(api, cfg.NotifyChats(), logger.Component(log, "notify"))

		b := bot.New(api, logger.Component(log, "bot"), ledger, rc, catalogRepo, cfg.NotifyChats())
		go func() {
			if err := b.Run(ctx, 60); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "err", err)
			}
		}()
	} else {
		log.Warn("telegram token not set, bot and stale reports disabled")
	}

	sched := scheduler.New(scheduler.Config{
		Schedule:    cfg.Stale.Schedule,
		HorizonDays: cfg.Stale.HorizonDays,
		Location:    loc,
	}, ledger, catalogRepo, reporter, m, logger.Component(log, "scheduler"))
	if err := sched.Start(); err != nil {
		log.Error("scheduler start failed", "err", err)
		return
	}
	defer sched.Stop()

	api := httpx.NewAPI(catalogRepo, unitRepo, ledger, engine, rc, logger.Component(log, "http"))
	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
