// Package app wires every component into a running system: database,
// repositories, providers, calendar, checkers, alerting, workers, and the
// supervisor. It replaces the teacher's DI container with a single
// hand-wired constructor matching this system's narrower scope (one
// database, three workers, no GUI/broker/display).
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/backup"
	"github.com/canslim/sentinel/internal/calendar"
	"github.com/canslim/sentinel/internal/checkers"
	"github.com/canslim/sentinel/internal/config"
	"github.com/canslim/sentinel/internal/database"
	"github.com/canslim/sentinel/internal/events"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/regime"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/canslim/sentinel/internal/scoring"
	"github.com/canslim/sentinel/internal/supervisor"
	"github.com/canslim/sentinel/internal/workers"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// alertCooldown is the advisory in-memory cooldown window the checker
// suite applies to repeat emissions. AlertService's persisted cooldown
// is separate: it uses alerting.DefaultCooldown, since no per-rule
// windows are passed to it here.
const alertCooldown = 4 * time.Hour

// housekeepingSchedule runs once daily at 22:05 in the host's local time
// zone (the cron scheduler is created without a location), so stale
// watchlist/distribution-day rows are cleared before the next session's
// first tick.
const housekeepingSchedule = "0 5 22 * * *"

// regimeSeedLookbackDays bounds how far back the one-time regime-history
// seed reaches on a cold start.
const regimeSeedLookbackDays = 260

// defaultPortfolioValue seeds ExecutionFeasibility sizing when
// "position_sizing.portfolio_value" has never been set; overridden from
// the settings table the same way every other tunable is.
const defaultPortfolioValue = 100_000.0

// backupSchedule runs the optional S3 snapshot once daily at 23:00 in the
// host's local time zone (the cron scheduler is created without a location).
const backupSchedule = "0 0 23 * * *"

// App holds every wired component for the process lifetime.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	db         *database.DB
	supervisor *supervisor.Supervisor
	backupCron *cron.Cron
}

// New builds and wires the full dependency graph but does not yet start
// anything — that's Run's job.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	dbPath := cfg.DataDir + "/sentinel.db"
	db, err := database.New(database.Config{Path: dbPath, Name: "sentinel"})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	settings := repository.NewSettingsRepository(db.Conn(), log)
	if err := cfg.UpdateFromSettings(settings); err != nil {
		return nil, fmt.Errorf("loading settings overrides: %w", err)
	}

	positions := repository.NewPositionRepository(db.Conn(), log)
	regimes := repository.NewRegimeRepository(db.Conn(), log)
	alerts := repository.NewAlertRepository(db.Conn(), log)

	bus := events.NewBus()
	positions.SetEventBus(bus)

	cal := calendar.New(nil, log) // no live status-feed binding; falls back to the computed holiday calendar

	quotes := providers.NewGatewayQuoteProvider(cfg.IBKR, log)
	bars := providers.NewRESTBarsProvider(cfg.MarketData, 25, log)
	sentiment := providers.NewRESTSentimentProvider(cfg.MarketData.BaseURL, time.Duration(cfg.MarketData.Timeout)*time.Second, log)

	checkerCfg, err := checkers.LoadConfig(settings)
	if err != nil {
		return nil, fmt.Errorf("loading checker config: %w", err)
	}
	suite := checkers.NewSuite(log,
		checkers.NewStopChecker(checkerCfg),
		checkers.NewProfitChecker(checkerCfg),
		checkers.NewPyramidChecker(checkerCfg),
		checkers.NewMAChecker(checkerCfg),
		checkers.NewHealthChecker(checkerCfg),
		checkers.NewBreakoutChecker(checkerCfg),
		checkers.NewAltEntryChecker(checkerCfg),
	)

	notifiers := []alerting.Notifier{alerting.NewDiscordNotifier(cfg.Discord)}
	alertService := alerting.NewService(alerts, bus, nil, log)
	for _, n := range notifiers {
		alertService.AddNotifier(n)
	}

	regimeCfg := regime.DefaultConfig()
	scorer := scoring.New(scoring.DefaultConfig())
	portfolioValue, err := settings.GetFloat("position_sizing.portfolio_value", defaultPortfolioValue)
	if err != nil {
		return nil, fmt.Errorf("loading portfolio value: %w", err)
	}

	positionWorker := workers.NewPositionWorker(positions, regimes, quotes, bars, suite, alertService, cal, alertCooldown, log)
	breakoutWorker := workers.NewBreakoutWorker(positions, regimes, quotes, bars, suite, alertService, cal, alertCooldown, scorer, portfolioValue, log)
	marketWorker := workers.NewMarketWorker(regimes, bars, sentiment, regimeCfg, cal, bus, log)

	sup := supervisor.New(cfg.DataDir+"/sentinel.sock", log, positionWorker, breakoutWorker, marketWorker)
	if err := sup.EnableHousekeeping(positions, regimes, housekeepingSchedule); err != nil {
		return nil, fmt.Errorf("enabling housekeeping: %w", err)
	}

	a := &App{cfg: cfg, log: log, db: db, supervisor: sup}

	if err := a.seedRegimeHistory(context.Background(), cal, bars, regimeCfg, regimes); err != nil {
		log.Warn().Err(err).Msg("regime history seed failed; continuing with an empty history")
	}

	if cfg.Backup.Enabled {
		if err := a.enableBackups(context.Background()); err != nil {
			log.Warn().Err(err).Msg("backup scheduling disabled: setup failed")
		}
	}

	if err := quotes.Start(); err != nil {
		log.Warn().Err(err).Msg("realtime quote gateway did not connect at startup; will retry in background")
	}

	return a, nil
}

// seedRegimeHistory backfills the regime-history table for every trading
// day in the last regimeSeedLookbackDays calendar days that has no stored
// alert yet, so MarketWorker's FTD-state recovery has something to read
// on a fresh database.
func (a *App) seedRegimeHistory(ctx context.Context, cal *calendar.Calendar, bars providers.HistoricalBarsProvider, cfg regime.Config, regimes *repository.RegimeRepository) error {
	calc := regime.New(cfg)
	source := providers.RegimeBarSource{Provider: bars}
	seeder := regime.NewSeeder(calc, source, regimes, 250*time.Millisecond, a.log)

	end := time.Now()
	start := end.AddDate(0, 0, -regimeSeedLookbackDays)
	return seeder.Run(ctx, start, end, func(start, end time.Time) []time.Time {
		var days []time.Time
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if cal.IsTradingDay(d) {
				days = append(days, d)
			}
		}
		return days
	})
}

func (a *App) enableBackups(ctx context.Context) error {
	svc, err := backup.New(ctx, a.cfg.Backup, a.cfg.DataDir, a.log)
	if err != nil {
		return fmt.Errorf("building backup service: %w", err)
	}

	a.backupCron = cron.New(cron.WithSeconds())
	_, err = a.backupCron.AddFunc(backupSchedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := svc.CreateAndUpload(runCtx); err != nil {
			a.log.Error().Err(err).Msg("backup upload failed")
			return
		}
		if err := svc.RotateOldBackups(runCtx, 30); err != nil {
			a.log.Error().Err(err).Msg("backup rotation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling backup job: %w", err)
	}
	a.backupCron.Start()
	return nil
}

// Run starts the supervisor (and every worker under it) and blocks until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.supervisor.Start(); err != nil {
		return fmt.Errorf("starting supervisor: %w", err)
	}
	<-ctx.Done()
	return nil
}

// Shutdown gracefully tears the process down within timeout.
func (a *App) Shutdown(timeout time.Duration) {
	if a.backupCron != nil {
		cronCtx := a.backupCron.Stop()
		<-cronCtx.Done()
	}
	a.supervisor.Stop(timeout)
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("error closing database")
	}
}
