package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tripwatch/internal/alerting"
	"tripwatch/internal/config"
	"tripwatch/internal/feed"
	"tripwatch/internal/pricing"
	"tripwatch/internal/scheduler"
	"tripwatch/internal/service"
	"tripwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFeed() *feed.Client {
	return feed.NewClient(feed.Options{
		BaseURL:   a.Config.Feed.BaseURL,
		Timeout:   a.Config.Feed.RequestTimeout,
		UserAgent: a.Config.Feed.UserAgent,
	}, a.Logger)
}

func (a *App) newAnalyzer() *pricing.Analyzer {
	return pricing.New(pricing.Options{
		BudgetMax:      decimal.NewFromFloat(a.Config.Analysis.BudgetMaxPrice),
		EconomyMax:     decimal.NewFromFloat(a.Config.Analysis.EconomyMaxPrice),
		GreatDealPct:   decimal.NewFromFloat(a.Config.Analysis.GreatDealPct),
		ExceptionalPct: decimal.NewFromFloat(a.Config.Analysis.ExceptionalPct),
		OutlierStdDevs: a.Config.Analysis.OutlierStdDevs,
	})
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newAlertService() *alerting.Service {
	return alerting.NewService(alerting.Options{
		PriceThresholdPct:   decimal.NewFromFloat(a.Config.Alerting.PriceThresholdPct),
		TempChangeThreshold: decimal.NewFromFloat(a.Config.Alerting.TempChangeThreshold),
	}, a.Logger)
}

// Run executes the long-running watch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert archive disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	alerts := a.newAlertService()
	if store != nil {
		alerts.RegisterCallback(storage.ArchiveCallback(store, a.Logger))
	}
	if a.Config.Alerting.Enabled {
		if notifier := a.newNotifier(); notifier != nil {
			alerts.RegisterCallback(notifier.Callback())
		}
	}

	svc := service.New(a.Config, sched, a.newFeed(), alerts, a.Logger)

	a.Logger.Info().Msg("starting watch service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch service stopped")
	return nil
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	InputPath string
}

// WindowOptions configure the window command.
type WindowOptions struct {
	Origin      string
	Destination string
	Center      time.Time
	Days        int
	TopN        int
	CSVPath     string
	PNGPath     string
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	Limit int
}
