package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"git.skobk.in/skobkin/telegram-social-games-bot/bot"
	"git.skobk.in/skobkin/telegram-social-games-bot/config"
	"git.skobk.in/skobkin/telegram-social-games-bot/duel"
	"git.skobk.in/skobkin/telegram-social-games-bot/marriage"
	"git.skobk.in/skobkin/telegram-social-games-bot/metrics"
	"git.skobk.in/skobkin/telegram-social-games-bot/moderation"
	"git.skobk.in/skobkin/telegram-social-games-bot/participants"
	"git.skobk.in/skobkin/telegram-social-games-bot/storage"
	"git.skobk.in/skobkin/telegram-social-games-bot/tea"
)

func main() {
	// Parse command-line flags
	verbose := flag.Bool("v", false, "Enable verbose logging (LevelInfo)")
	veryVerbose := flag.Bool("vv", false, "Enable very verbose logging (LevelDebug)")
	flag.Parse()

	// Set up logging
	setLogLevel(*verbose, *veryVerbose)

	slog.Debug("main: Command-line flags parsed", "verbose", *verbose, "very_verbose", *veryVerbose)

	if err := run(); err != nil {
		slog.Error("main: Bot stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("main: Bot stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("main: Failed to load configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	slog.Debug("main: Initializing storage", "db_path", cfg.DatabasePath)
	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("main: Failed to initialize storage", "error", err)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("main: Failed to close storage", "error", err)
		}
	}()
	slog.Debug("main: Storage initialized successfully")

	dir := participants.NewDirectory()
	known, err := store.Participants(ctx)
	if err != nil {
		return err
	}
	dir.Load(known)
	slog.Info("main: Participants loaded", "count", len(known))

	bans := moderation.NewBanList(moderation.Config{
		Store:             store,
		BaseCtx:           ctx,
		BackgroundTimeout: cfg.BackgroundTimeout,
	})
	if err := bans.Load(ctx); err != nil {
		return err
	}
	defer bans.Wait()

	rng, err := duel.NewRand()
	if err != nil {
		slog.Error("main: Failed to seed random generator", "error", err)
		return err
	}

	api, self, err := bot.NewAPI(ctx, cfg.TelegramToken)
	if err != nil {
		return err
	}

	duels := duel.NewEngine(duel.Config{
		Directory: dir,
		Moderator: bans,
		Rand:      rng,
		BotID:     self.ID,
		Outcome:   initialOutcome(ctx, store, cfg.DuelOutcome),
	})

	marriages := marriage.NewRegistry(dir)
	restoreExtensionPrice(ctx, store, marriages)

	ledger := tea.NewLedger(tea.Config{
		Store:      store,
		Rand:       rng,
		BaseCtx:    ctx,
		JobTimeout: cfg.BackgroundTimeout,
	})

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		slog.Error("main: Failed to create scheduler", "error", err)
		return err
	}
	if err := bans.Schedule(scheduler, cfg.BanSweepInterval); err != nil {
		return err
	}
	if err := ledger.Schedule(scheduler, cfg.TeaResetCheckInterval); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Warn("main: Failed to shut down scheduler", "error", err)
		}
	}()

	m := metrics.New()

	b := bot.New(api, self, bot.Config{
		Directory:        dir,
		Marriages:        marriages,
		Duels:            duels,
		Bans:             bans,
		Tea:              ledger,
		Store:            store,
		Metrics:          m,
		Rand:             rng,
		MarriagePageSize: cfg.MarriagePageSize,
		StoreTimeout:     cfg.BackgroundTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("main: Starting bot...")
		return b.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.MetricsAddr)
		})
	}

	return g.Wait()
}

// initialOutcome prefers the outcome set by an admin over the configured default
func initialOutcome(ctx context.Context, store *storage.Storage, fallback string) duel.Outcome {
	text := fallback
	if saved, err := store.Setting(ctx, storage.SettingDuelOutcome); err == nil {
		text = saved
	} else if !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("main: Failed to read saved duel outcome", "error", err)
	}

	o, err := duel.ParseOutcome(text)
	if err != nil {
		slog.Warn("main: Invalid duel outcome, using none", "outcome", text, "error", err)
		return duel.OutcomeNone
	}
	return o
}

func restoreExtensionPrice(ctx context.Context, store *storage.Storage, marriages *marriage.Registry) {
	saved, err := store.Setting(ctx, storage.SettingMarriageExtPrice)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Warn("main: Failed to read marriage extension price", "error", err)
		return
	}

	price, err := strconv.Atoi(saved)
	if err == nil {
		err = marriages.SetExtensionPrice(price)
	}
	if err != nil {
		slog.Warn("main: Invalid saved marriage extension price", "value", saved, "error", err)
	}
}

// setLogLevel configures the logging level based on the provided flags
func setLogLevel(verbose, veryVerbose bool) {
	// Determine logging level based on flags
	logLevel := slog.LevelWarn // Default level
	if veryVerbose {
		logLevel = slog.LevelDebug
	} else if verbose {
		logLevel = slog.LevelInfo
	}

	// Configure structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Debug("main: Log level set to", "level", logLevel.String())
}
