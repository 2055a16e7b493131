// Package config loads the service configuration from an optional TOML
// file, then applies environment overrides. Secrets are expected to come
// from the environment (a .env file is honored when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":3000"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultFormatModel    = "gpt-4o"
	DefaultAudioModel     = "whisper-1"
	DefaultPromptPath     = "prompts/format_prompt.txt"
	DefaultPollInterval   = 2 * time.Second
	DefaultPollTimeout    = 120 * time.Second
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "enlace"
	DefaultPGSSLMode      = "disable"
	DefaultSpoolDir       = "data/audio"
	DefaultSpoolRetention = 30 * time.Minute
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Postgres PostgresConfig `toml:"postgres"`
	Twilio   TwilioConfig   `toml:"twilio"`
	Media    MediaConfig    `toml:"media"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token" validate:"required"`
}

type OpenAIConfig struct {
	APIKey       string   `toml:"api_key" validate:"required"`
	BaseURL      string   `toml:"base_url"`
	AssistantID  string   `toml:"assistant_id" validate:"required"`
	FormatModel  string   `toml:"format_model"`
	AudioModel   string   `toml:"audio_model"`
	PromptPath   string   `toml:"prompt_path"`
	PollInterval Duration `toml:"poll_interval"`
	PollTimeout  Duration `toml:"poll_timeout"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type TwilioConfig struct {
	AccountSID string `toml:"account_sid" validate:"required"`
	AuthToken  string `toml:"auth_token" validate:"required"`
	FromNumber string `toml:"from_number" validate:"required"`
}

type MediaConfig struct {
	SpoolDir  string   `toml:"spool_dir"`
	Retention Duration `toml:"retention"`
}

// Duration is a time.Duration that decodes from TOML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads the TOML file at path (missing file is fine, defaults apply)
// and then applies environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		OpenAI: OpenAIConfig{
			BaseURL:      DefaultOpenAIBaseURL,
			FormatModel:  DefaultFormatModel,
			AudioModel:   DefaultAudioModel,
			PromptPath:   DefaultPromptPath,
			PollInterval: Duration(DefaultPollInterval),
			PollTimeout:  Duration(DefaultPollTimeout),
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Media: MediaConfig{
			SpoolDir:  DefaultSpoolDir,
			Retention: Duration(DefaultSpoolRetention),
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Telegram.BotToken, "BOT_TOKEN")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.AssistantID, "OPENAI_ASSISTANT_ID")
	setString(&cfg.Postgres.Host, "PG_HOST")
	setInt(&cfg.Postgres.Port, "PG_PORT")
	setString(&cfg.Postgres.User, "PG_USER")
	setString(&cfg.Postgres.Password, "PG_PASSWORD")
	setString(&cfg.Postgres.Database, "PG_DATABASE")
	setString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Twilio.FromNumber, "TWILIO_WHATSAPP_NUMBER")
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks that every credential the serve path needs is present.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
