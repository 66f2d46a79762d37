package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cwygoda/vidrelay/internal/domain"
)

const (
	DefaultConfigFile      = "vidrelay.toml"
	DefaultEnvFile         = ".env"
	DefaultMaxConcurrent   = 8
	DefaultJobHistory      = 1000
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds application configuration.
type Config struct {
	Telegram TelegramConfig           `toml:"telegram"`
	Relay    RelayConfig              `toml:"relay"`
	YtDlp    YtDlpConfig              `toml:"ytdlp"`
	Server   ServerConfig             `toml:"server"`
	Log      LogConfig                `toml:"log"`
	Patterns map[string]PatternConfig `toml:"patterns" ignored:"true"`
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	Token       string `toml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	APIEndpoint string `toml:"api_endpoint" envconfig:"TELEGRAM_API_ENDPOINT"`
}

// RelayConfig controls how messages are turned into replies.
type RelayConfig struct {
	Verbose         bool          `toml:"verbose" envconfig:"VIDRELAY_VERBOSE"`
	MaxConcurrent   int           `toml:"max_concurrent" envconfig:"VIDRELAY_MAX_CONCURRENT"`
	WorkDir         string        `toml:"work_dir" envconfig:"VIDRELAY_WORK_DIR"`
	CaptionLength   int           `toml:"caption_length" envconfig:"VIDRELAY_CAPTION_LENGTH"`
	CaptionEllipsis string        `toml:"caption_ellipsis" envconfig:"VIDRELAY_CAPTION_ELLIPSIS"`
	QualityFlags    []string      `toml:"quality_flags" envconfig:"VIDRELAY_QUALITY_FLAGS"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" envconfig:"VIDRELAY_SHUTDOWN_TIMEOUT"`
}

// YtDlpConfig holds extraction tool settings.
type YtDlpConfig struct {
	Binary          string        `toml:"binary" envconfig:"VIDRELAY_YTDLP"`
	MetadataTimeout time.Duration `toml:"metadata_timeout" envconfig:"VIDRELAY_METADATA_TIMEOUT"`
	DownloadTimeout time.Duration `toml:"download_timeout" envconfig:"VIDRELAY_DOWNLOAD_TIMEOUT"`
	ReleaseURL      string        `toml:"release_url" envconfig:"VIDRELAY_YTDLP_RELEASE_URL"`
}

// ServerConfig holds the HTTP surface settings. An empty Addr disables it
// and an empty WebhookSecret disables POST /webhook.
type ServerConfig struct {
	Addr          string `toml:"addr" envconfig:"VIDRELAY_HTTP_ADDR"`
	WebhookSecret string `toml:"webhook_secret" envconfig:"VIDRELAY_WEBHOOK_SECRET"`
	JobHistory    int    `toml:"job_history" envconfig:"VIDRELAY_JOB_HISTORY"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `toml:"level" envconfig:"VIDRELAY_LOG_LEVEL"`
	Format string `toml:"format" envconfig:"VIDRELAY_LOG_FORMAT"`
}

// PatternConfig adds extraction flags to a built-in site pattern.
type PatternConfig struct {
	Flags []string `toml:"flags"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			MaxConcurrent:   DefaultMaxConcurrent,
			WorkDir:         filepath.Join(os.TempDir(), "vidrelay"),
			CaptionLength:   domain.DefaultCaptionLength,
			CaptionEllipsis: domain.DefaultEllipsis,
			QualityFlags:    append([]string(nil), domain.DefaultQualityFlags...),
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		YtDlp: YtDlpConfig{
			Binary:          "yt-dlp",
			MetadataTimeout: 2 * time.Minute,
			DownloadTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{
			JobHistory: DefaultJobHistory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the TOML file at path,
// then the env file, then the process environment. Later sources win. An
// empty path falls back to DefaultConfigFile and tolerates its absence;
// an explicit path must exist. The same applies to envFile.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	explicit = envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || explicit {
			return cfg, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	if c.Relay.MaxConcurrent < 0 {
		return fmt.Errorf("relay.max_concurrent must not be negative")
	}
	if c.Relay.CaptionLength < 0 {
		return fmt.Errorf("relay.caption_length must not be negative")
	}
	if c.Server.JobHistory < 0 {
		return fmt.Errorf("server.job_history must not be negative")
	}
	if c.YtDlp.Binary == "" {
		return fmt.Errorf("ytdlp.binary is required")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateServe additionally checks what the bot needs to run.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// PatternFlags returns the extra flags per pattern ID.
func (c *Config) PatternFlags() map[string][]string {
	flags := make(map[string][]string, len(c.Patterns))
	for id, p := range c.Patterns {
		if len(p.Flags) > 0 {
			flags[id] = p.Flags
		}
	}
	return flags
}

// NewLogger builds the process logger.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
