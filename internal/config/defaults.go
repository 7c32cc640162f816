package config

import (
	"fmt"
	"strings"
)

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"

	defaultDBPath = "data/glbfolio.db"

	defaultSourceURL       = "https://www.wishingwealthblog.com/"
	defaultSourceUserAgent = "glbfolio/1.0 (+https://github.com/glbfolio)"
	defaultSourceTimeout   = 30
	defaultSourceParallel  = 4

	defaultBaseCurrency  = "USD"
	defaultStartingCash  = 10000
	defaultStopLossMult  = 0.95
	defaultCooldownDays  = 10
	defaultScheduleEvery = "1d"
	defaultScheduleShift = "30m"
	defaultHTTPAddr      = ":9980"
)

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = defaultAppEnv
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		c.DB.Path = defaultDBPath
	}
	if strings.TrimSpace(c.Source.URL) == "" {
		c.Source.URL = defaultSourceURL
	}
	if strings.TrimSpace(c.Source.UserAgent) == "" {
		c.Source.UserAgent = defaultSourceUserAgent
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
	if c.Source.MaxParallel <= 0 {
		c.Source.MaxParallel = defaultSourceParallel
	}
	if strings.TrimSpace(c.Trading.BaseCurrency) == "" {
		c.Trading.BaseCurrency = defaultBaseCurrency
	}
	if c.Trading.StartingCash <= 0 {
		c.Trading.StartingCash = defaultStartingCash
	}
	if c.Trading.StopLossMultiplier <= 0 {
		c.Trading.StopLossMultiplier = defaultStopLossMult
	}
	if c.Trading.ReentryCooldownDays <= 0 {
		c.Trading.ReentryCooldownDays = defaultCooldownDays
	}
	if strings.TrimSpace(c.Schedule.Interval) == "" {
		c.Schedule.Interval = defaultScheduleEvery
	}
	if strings.TrimSpace(c.Schedule.Offset) == "" {
		c.Schedule.Offset = defaultScheduleShift
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
}

func validate(c *Config) error {
	if c.Trading.StopLossMultiplier >= 1 {
		return fmt.Errorf("trading.stop_loss_multiplier must be below 1, got %v", c.Trading.StopLossMultiplier)
	}
	if c.Notify.Telegram.Enabled {
		if strings.TrimSpace(c.Notify.Telegram.BotToken) == "" || strings.TrimSpace(c.Notify.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
		}
	}
	return nil
}
