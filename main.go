package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hedgeledger/engine/analytics"
	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/chat"
	"github.com/hedgeledger/engine/classify"
	"github.com/hedgeledger/engine/config"
	"github.com/hedgeledger/engine/intake"
	"github.com/hedgeledger/engine/ledger"
	"github.com/hedgeledger/engine/logger"
	"github.com/hedgeledger/engine/optimizer"
	"github.com/hedgeledger/engine/payments"
	"github.com/hedgeledger/engine/poolcache"
	"github.com/hedgeledger/engine/positions"
	"github.com/hedgeledger/engine/pricegraph"
	"github.com/hedgeledger/engine/pricing"
	"github.com/hedgeledger/engine/redisclient"
	"github.com/hedgeledger/engine/router"
	"github.com/hedgeledger/engine/scheduler"
	"github.com/hedgeledger/engine/snapshot"
	"github.com/hedgeledger/engine/store"
	"github.com/hedgeledger/engine/waitqueue"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("hedge ledger engine starting")

	ctx := context.Background()

	// Storage is the source of truth; nothing runs without it.
	st, err := store.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	// Redis is an accelerator only.
	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without redis")
	} else if rc != nil {
		if err := rc.Ping(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// Chain clients.
	chains := chain.NewRegistry()
	clientsByName := make(map[string]*chain.Client)
	for name, chainCfg := range cfg.Chains {
		client, err := chain.Dial(chainCfg, log)
		if err != nil {
			log.Fatal().Err(err).Str("chain", name).Msg("chain dial failed")
		}
		chains.Register(client)
		clientsByName[name] = client
		log.Info().Str("chain", name).Str("rpc", chainCfg.RPCURL).Msg("registered chain")
	}
	primary := clientsByName[cfg.PrimaryChain]
	if primary == nil {
		log.Fatal().Str("chain", cfg.PrimaryChain).Msg("primary chain not configured")
	}

	healthPoller := chain.NewHealthPoller(chains, log, 30*time.Second)
	healthPoller.OnStatusChange(func(name string, healthy bool, status chain.HealthStatus) {
		if healthy {
			log.Info().Str("chain", name).Msg("chain recovered")
		} else {
			log.Error().Str("chain", name).Str("error", status.Error).Msg("chain degraded")
		}
	})
	healthPoller.Start()

	// External HTTP surfaces.
	heroAPI := chain.NewHeroAPI(cfg.HeroGraphQLURL, cfg.HeroPageSize, cfg.RPCTimeout, log)
	heroes := chain.NewCachedHeroAPI(heroAPI, rc, 5*time.Minute, log)
	explorer := chain.NewExplorer(cfg.ExplorerBaseURL, cfg.RPCTimeout, log)

	// Outbound chat.
	var sender chat.Sender
	if cfg.ChatBotURL != "" {
		sender = chat.NewBotSender(cfg.ChatBotURL, cfg.ChatBotToken, cfg.ChatMsgLimit, cfg.ChatMsgDelay, log)
	} else {
		sender = chat.NewLogSender(log)
		log.Info().Msg("chat using log sink (set CHAT_BOT_URL for production)")
	}

	// Price graph and pool analytics.
	dust, err := decimal.NewFromString(cfg.DustFloor)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid PRICE_DUST_FLOOR")
	}
	prices := pricegraph.NewBuilder(cfg.StableAnchor, cfg.EmissionToken, cfg.GasToken,
		dust, cfg.PriceGraphTTL, analytics.PairSource(chains, cfg.PrimaryChain), log)
	builder := analytics.NewBuilder(chains, prices, analytics.NewGardenerProfileStrategy(),
		cfg.DeprecatedPIDs, log)

	cache := poolcache.New(builder, cfg.PoolCachePath, cfg.PoolCacheMaxAge, log).WithRedis(rc)
	bootCtx, cancelBoot := context.WithTimeout(ctx, cfg.AnalyticsTimeout*4)
	if err := cache.Bootstrap(bootCtx); err != nil {
		log.Error().Err(err).Msg("pool cache bootstrap failed — premium work waits for first refresh")
	}
	cancelBoot()
	refresher := poolcache.NewRefresher(cache, cfg.PoolRefreshInterval, cfg.AnalyticsTimeout, log)
	refresher.Start()

	// Domain services.
	pos := positions.NewService(clientsByName, cache, log)
	pricer := pricing.NewEngine(st, log)
	ldg := ledger.NewService(st, log)

	// Payment pipeline.
	registry := payments.NewRegistry()
	if err := registry.Load(ctx, st, log); err != nil {
		log.Fatal().Err(err).Msg("payment registry load failed")
	}
	chainSources := make(map[string]payments.ChainSource, len(clientsByName))
	for name, client := range clientsByName {
		chainSources[name] = client
	}
	scanner, err := payments.NewScanner(cfg, registry, st, chainSources, explorer, healthPoller, log)
	if err != nil {
		log.Fatal().Err(err).Msg("scanner init failed")
	}
	paymentPoller := payments.NewPoller(scanner, cfg.ScanInterval, log)
	paymentPoller.Start()

	// Request intake and the cache-ready queue.
	intakeSvc := intake.NewService(st, registry, pricer, pos, primary.BlockNumber, sender,
		cfg.PrimaryChain, cfg.HouseWallet, cfg.JobTTL, log)
	queue := waitqueue.New(cache, func(ctx context.Context, e waitqueue.Entry) error {
		player, err := st.GetOrCreatePlayer(ctx, e.ChatUserID, e.DisplayName)
		if err != nil {
			return err
		}
		_, err = intakeSvc.CreatePaymentRequest(ctx, player)
		return err
	}, sender, 10*time.Second, log)
	queue.Start()

	// Optimization processor.
	processor := optimizer.NewProcessor(st, heroes, cache, ldg, sender,
		optimizer.DefaultMaxHeroes, cfg.ScanInterval, cfg.ChatMsgDelay, log)
	processor.Start()

	// Snapshot pipeline and scheduler.
	classifier := classify.NewEngine(classify.DefaultThresholds)
	snapshots := snapshot.NewService(cfg, st, clientsByName, heroes, pos, explorer, classifier, log)
	sched, err := scheduler.New(snapshots, cfg.SnapshotCron, cfg.ETLInterval, log)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init failed")
	}
	sched.Start()

	// Operator HTTP surface.
	r := router.NewRouter(cfg, log, st, cache, chains, scanner)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	// Stop background tasks in dependency order.
	sched.Stop()
	processor.Stop()
	queue.Stop()
	paymentPoller.Stop()
	refresher.Stop()
	healthPoller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("engine stopped gracefully")
	}
}
