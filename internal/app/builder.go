package app

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"glbfolio/internal/config"
	"glbfolio/internal/notifier"
	"glbfolio/internal/portfolio"
	"glbfolio/internal/prices"
	"glbfolio/internal/runner"
	"glbfolio/internal/scheduler"
	"glbfolio/internal/scrape"
	"glbfolio/internal/store/gormstore"
	httpapi "glbfolio/internal/transport/http"
)

func build(cfg *config.Config) (*App, error) {
	store, err := gormstore.NewGormStore(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	scrapeTimeout := time.Duration(cfg.Source.TimeoutSeconds) * time.Second
	source := scrape.NewClient(cfg.Source.URL, cfg.Source.UserAgent, scrapeTimeout)
	tradingView := scrape.NewTradingView(cfg.Source.UserAgent, scrapeTimeout)

	priceSvc := &prices.Service{
		Primary:     tradingView,
		Fallback:    prices.YahooQuoter{},
		Store:       store,
		MaxParallel: cfg.Source.MaxParallel,
	}

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	run := &runner.Runner{
		Store:     store,
		Source:    source,
		Exchanges: tradingView,
		Prices:    priceSvc,
		Cooldown: &portfolio.CooldownFilter{
			Days:    cfg.Trading.ReentryCooldownDays,
			History: store,
		},
		Notifier:           notify,
		Observer:           portfolio.LogObserver{},
		PortfolioName:      "Main",
		BaseCurrency:       cfg.Trading.BaseCurrency,
		StartingCash:       decimal.NewFromFloat(cfg.Trading.StartingCash),
		StopLossMultiplier: decimal.NewFromFloat(cfg.Trading.StopLossMultiplier),
	}

	httpSrv, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:       cfg.HTTP.Addr,
		CronSecret: cfg.HTTP.CronSecret,
		Runner:     run,
		Store:      store,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	interval, ok := scheduler.ParseIntervalDuration(cfg.Schedule.Interval)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("invalid schedule.interval %q", cfg.Schedule.Interval)
	}
	offset, ok := scheduler.ParseIntervalDuration(cfg.Schedule.Offset)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("invalid schedule.offset %q", cfg.Schedule.Offset)
	}
	return &App{
		cfg:            cfg,
		store:          store,
		runner:         run,
		http:           httpSrv,
		schedInterval:  interval,
		schedOffset:    offset,
		runImmediately: cfg.Schedule.RunImmediately,
	}, nil
}
