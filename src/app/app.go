package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"papertrader/src/database"
	"papertrader/src/engine"
	"papertrader/src/market"
	"papertrader/src/metrics"
	"papertrader/src/news"
	"papertrader/src/repository"
	"papertrader/src/scheduler"
	"papertrader/src/signal"
	"papertrader/src/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Configs struct {
	Engine    engine.Config
	Scheduler scheduler.Config
	Market    market.Config
	Signal    signal.Config
	News      news.Config
	Database  database.Config
}

// LoadConfigs reads every component configuration from the environment.
func LoadConfigs() Configs {
	return Configs{
		Engine:    engine.GetConfig(),
		Scheduler: scheduler.GetConfig(),
		Market:    market.GetConfig(),
		Signal:    signal.GetConfig(),
		News:      news.GetConfig(),
		Database:  database.GetConfig(),
	}
}

// App holds the wired services of one process.
type App struct {
	Store      *store.Store
	Engine     *engine.Engine
	Oracle     market.Oracle
	Reconciler *scheduler.Reconciler
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Metrics

	db     *gorm.DB
	logger *logrus.Entry
}

func New(cfg Configs, reg prometheus.Registerer, logger *logrus.Entry) (*App, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	st := store.New(decimal.NewFromFloat(cfg.Engine.InitialBalance), nil)
	eng := engine.NewEngine(st, cfg.Engine, logger)

	oracle, err := market.NewOracle(cfg.Market, logger)
	if err != nil {
		return nil, err
	}
	provider, err := signal.NewProvider(cfg.Signal, logger)
	if err != nil {
		return nil, err
	}
	klines, err := market.NewKlineSource(cfg.Market, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	opts := []scheduler.Option{
		scheduler.WithCandles(klines),
		scheduler.WithMetrics(m),
	}
	if cfg.Scheduler.NewsGateEnabled {
		opts = append(opts, scheduler.WithNewsGate(news.NewGate(cfg.News, news.NewClient(cfg.News.BaseURL, logger))))
	}

	a := &App{Store: st, Engine: eng, Oracle: oracle, Metrics: m, logger: logger}

	db, err := database.Open(cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		logger.Info("journal disabled, closed trades are kept in memory only")
	case err != nil:
		return nil, fmt.Errorf("open journal: %w", err)
	default:
		a.db = db
		opts = append(opts, scheduler.WithJournal(repository.NewJournalRepository(db)))
	}

	a.Reconciler = scheduler.NewReconciler(cfg.Scheduler, st, eng, oracle, provider, logger, opts...)
	if a.db != nil {
		a.Scheduler = scheduler.New(cfg.Scheduler, a.Reconciler, repository.NewExceptionRepository(a.db), m, logger)
	} else {
		a.Scheduler = scheduler.New(cfg.Scheduler, a.Reconciler, nil, m, logger)
	}

	logger.WithFields(logrus.Fields{
		"price_source":    cfg.Market.PriceSource,
		"signal_provider": cfg.Signal.Provider,
		"watch_list":      cfg.Scheduler.WatchList,
		"loop_period":     cfg.Scheduler.LoopPeriod.String(),
		"news_gate":       cfg.Scheduler.NewsGateEnabled,
		"journal":         cfg.Database.Driver,
	}).Info("papertrader wired")

	return a, nil
}

// Close stops every scheduler loop, waiting for in-flight cycles, and closes
// the journal connection.
func (a *App) Close() {
	stopped := a.Scheduler.StopAll()
	if len(stopped) > 0 {
		a.logger.WithField("users", stopped).Info("schedulers stopped")
	}

	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close journal connection")
		}
	}
}

// JournalEnabled reports whether closed trades are written to the database.
func (a *App) JournalEnabled() bool {
	return a.db != nil
}
