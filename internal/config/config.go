package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	LLM        LLMConfig        `mapstructure:"llm"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig with an empty DSN selects the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Time       string `mapstructure:"time"`
	Timezone   string `mapstructure:"timezone"`
	ReportType string `mapstructure:"report_type"`
	PoolSize   int    `mapstructure:"pool_size"`

	Morning DigestTimeConfig `mapstructure:"morning"`
	Noon    DigestTimeConfig `mapstructure:"noon"`
	Evening DigestTimeConfig `mapstructure:"evening"`
}

// DigestTimeConfig is an "HH:MM" clock plus an optional weekday range such as "mon-fri".
type DigestTimeConfig struct {
	Time     string `mapstructure:"time"`
	Weekdays string `mapstructure:"weekdays"`
}

type DispatcherConfig struct {
	MaxWorkers  int           `mapstructure:"max_workers"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	HistorySize int           `mapstructure:"history_size"`
}

type AnalysisConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	ChatID          string        `mapstructure:"chat_id"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	APIServer       string        `mapstructure:"api_server"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	SendRate        float64       `mapstructure:"send_rate"`
}

type LLMConfig struct {
	Providers []string     `mapstructure:"providers"`
	Gemini    GeminiConfig `mapstructure:"gemini"`
	OpenAI    OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "Asia/Shanghai")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.time", "18:00")
	v.SetDefault("schedule.timezone", "Asia/Shanghai")
	v.SetDefault("schedule.report_type", "simple")
	v.SetDefault("schedule.pool_size", 4)
	v.SetDefault("schedule.morning.time", "9:00")
	v.SetDefault("schedule.morning.weekdays", "mon-fri")
	v.SetDefault("schedule.noon.time", "12:00")
	v.SetDefault("schedule.noon.weekdays", "mon-fri")
	v.SetDefault("schedule.evening.time", "15:30")
	v.SetDefault("schedule.evening.weekdays", "mon-fri")

	v.SetDefault("dispatcher.max_workers", 3)
	v.SetDefault("dispatcher.task_timeout", "10m")
	v.SetDefault("dispatcher.history_size", 100)

	v.SetDefault("analysis.base_url", "http://127.0.0.1:8001")
	v.SetDefault("analysis.timeout", "5m")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.api_server", "")
	v.SetDefault("telegram.timeout", "10s")
	v.SetDefault("telegram.download_timeout", "15s")
	v.SetDefault("telegram.send_rate", 20)

	v.SetDefault("llm.providers", []string{"gemini", "openai"})
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("llm.gemini.timeout", "60s")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.timeout", "60s")
}
