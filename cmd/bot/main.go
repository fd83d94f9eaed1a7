package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"starbucks/internal/activity"
	"starbucks/internal/checkin"
	"starbucks/internal/config"
	"starbucks/internal/database"
	"starbucks/internal/discord"
	"starbucks/internal/httpapi"
	"starbucks/internal/logging"
	"starbucks/internal/metrics"
	"starbucks/internal/rewards"
	"starbucks/internal/timezone"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	// Initialize database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to initialize database")
	}
	defer db.Close()

	repository := database.NewRepository(db, database.LedgerPolicy{
		MaxBalanceAge: cfg.MaxBalanceAge,
		AtRiskWindow:  cfg.AtRiskWindow,
	})

	table := rewards.NewTable(cfg.PointValuesPath)
	if _, err := table.Load(); err != nil {
		logger.Fatal().Err(err).Str("path", table.Path()).Msg("failed to read point values")
	}

	zones, err := timezone.NewService(repository, cfg.DefaultTimezone, cfg.TimezoneCacheMB, cfg.TimezoneCacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize timezones")
	}

	aggregator := activity.NewAggregator(cfg.GuildID, cfg.IgnoredChannelIDs, cfg.MinVoiceConnected)

	var recorder metrics.Recorder = metrics.Noop{}
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(reg, aggregator.Counts)
		gatherer = reg
	}

	tiers, err := checkin.NewTierTable(cfg.CheckinRoleTiers)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid check-in role tiers")
	}
	tracker := checkin.NewTracker(repository, zones, table, tiers, recorder)
	if err := tracker.ValidatePricing(); err != nil {
		logger.Fatal().Err(err).Str("path", table.Path()).Msg("check-in rewards are incomplete")
	}

	scheduler := activity.NewScheduler(aggregator, table, repository, logging.Component(logger, "rewards"),
		activity.WithInterval(cfg.RewardInterval),
		activity.WithMetrics(recorder),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()

	server := httpapi.NewServer(cfg.HTTPAddr,
		httpapi.NewRouter(db.GetConnection(), aggregator, gatherer),
		logging.Component(logger, "http"))
	server.Start()

	// Initialize Discord bot
	bot, err := discord.New(cfg, discord.Deps{
		Activity: aggregator,
		Ledger:   repository,
		Checkins: tracker,
		Zones:    zones,
		Values:   table,
	}, logging.Component(logger, "discord"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create Discord bot")
	}

	if err := bot.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start bot")
	}

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	logger.Info().Msg("shutting down bot")

	if err := bot.Stop(); err != nil {
		logger.Warn().Err(err).Msg("failed to close Discord session")
	}
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to stop http server")
	}
}
