package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avykov/simex/params"
	"github.com/avykov/simex/pkg/agent"
	"github.com/avykov/simex/pkg/api"
	"github.com/avykov/simex/pkg/ledger"
	"github.com/avykov/simex/pkg/platform"
	"github.com/avykov/simex/pkg/sched"
	"github.com/avykov/simex/pkg/trade"
	"github.com/avykov/simex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.Node.LogFile, cfg.Node.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		sugar.Fatalw("data_dir_failed", "dir", cfg.Node.DataDir, "err", err)
	}

	// ---- Ledger & platform ----
	store, err := ledger.Open(filepath.Join(cfg.Node.DataDir, "ledger"))
	if err != nil {
		sugar.Fatalw("ledger_open_failed", "err", err)
	}
	defer store.Close()

	p := platform.New(store, sugar)
	defer p.Close()

	supply, err := decimal.NewFromString(cfg.Market.Supply)
	if err != nil {
		sugar.Fatalw("bad_market_supply", "supply", cfg.Market.Supply, "err", err)
	}
	if err := p.CreateMarket(cfg.Market.Symbol, supply); err != nil {
		sugar.Fatalw("market_create_failed", "symbol", cfg.Market.Symbol, "err", err)
	}

	// ---- Scheduler ----
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := sched.New(cfg.Scheduler.Concurrency, sugar)
	scheduler.Start(ctx)

	// ---- Venue registry ----
	registry := trade.NewRegistry()
	venue, err := p.Venue(cfg.Market.Symbol)
	if err != nil {
		sugar.Fatalw("venue_failed", "symbol", cfg.Market.Symbol, "err", err)
	}
	if err := registry.Register(cfg.Market.Symbol, venue); err != nil {
		sugar.Fatalw("venue_register_failed", "err", err)
	}

	// ---- API server ----
	apiServer := api.NewServer(p, scheduler, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Agent swarm (optional) ----
	if cfg.Agents.Enabled {
		fund, err := decimal.NewFromString(cfg.Agents.Fund)
		if err != nil {
			sugar.Fatalw("bad_agents_fund", "fund", cfg.Agents.Fund, "err", err)
		}
		foreman := agent.NewForeman(agent.ForemanConfig{
			Symbol:   cfg.Market.Symbol,
			Count:    cfg.Agents.Count,
			Interval: cfg.Agents.Interval,
			Fund:     fund,
			MinQty:   cfg.Agents.MinQty,
			MaxQty:   cfg.Agents.MaxQty,
		}, p, registry, scheduler, sugar)
		if err := foreman.Spawn(); err != nil {
			sugar.Fatalw("swarm_spawn_failed", "err", err)
		}
		go foreman.Run(ctx)
	} else {
		sugar.Info("agents disabled, serving API only")
	}

	sugar.Infow("simd_started",
		"symbol", cfg.Market.Symbol,
		"api", cfg.Node.APIAddr,
		"concurrency", cfg.Scheduler.Concurrency,
		"agents", cfg.Agents.Count)

	// Progress logging loop
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("api_shutdown_failed", "err", err)
			}
			scheduler.Stop()
			return
		case <-ticker.C:
			b, err := p.Book(cfg.Market.Symbol)
			if err != nil {
				continue
			}
			m := scheduler.Metrics()
			sugar.Infow("progress",
				"price", b.Price(),
				"bids", len(b.Bids()),
				"asks", len(b.Asks()),
				"processed", m.ProcessedTasks,
				"outstanding", m.TotalTasks,
				"errors", m.Errors)
		}
	}
}
