package config

// Config is the top-level configuration for glbfolio.
type Config struct {
	App      AppConfig      `toml:"app"`
	DB       DBConfig       `toml:"db"`
	Source   SourceConfig   `toml:"source"`
	Trading  TradingConfig  `toml:"trading"`
	Schedule ScheduleConfig `toml:"schedule"`
	HTTP     HTTPConfig     `toml:"http"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

// SourceConfig describes the scraped blog page and the per-request
// behavior of the scrape HTTP client.
type SourceConfig struct {
	URL            string `toml:"url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxParallel    int    `toml:"max_parallel"`
}

type TradingConfig struct {
	BaseCurrency        string  `toml:"base_currency"`
	StartingCash        float64 `toml:"starting_cash"`
	StopLossMultiplier  float64 `toml:"stop_loss_multiplier"`
	ReentryCooldownDays int     `toml:"reentry_cooldown_days"`
}

type ScheduleConfig struct {
	Interval       string `toml:"interval"`
	Offset         string `toml:"offset"`
	RunImmediately bool   `toml:"run_immediately"`
}

type HTTPConfig struct {
	Addr       string `toml:"addr"`
	CronSecret string `toml:"cron_secret"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
