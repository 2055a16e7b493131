package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Fatalf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.OpenAI.PollInterval.Std() != 2*time.Second {
		t.Fatalf("unexpected default poll interval: %v", cfg.OpenAI.PollInterval.Std())
	}
	if cfg.OpenAI.FormatModel != "gpt-4o" || cfg.OpenAI.AudioModel != "whisper-1" {
		t.Fatalf("unexpected default models: %s %s", cfg.OpenAI.FormatModel, cfg.OpenAI.AudioModel)
	}
	if cfg.Postgres.Port != 5432 {
		t.Fatalf("unexpected default pg port: %d", cfg.Postgres.Port)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[openai]
poll_interval = "500ms"
poll_timeout = "30s"

[postgres]
host = "db.internal"
port = 6432
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.OpenAI.PollInterval.Std() != 500*time.Millisecond {
		t.Fatalf("poll interval not decoded: %v", cfg.OpenAI.PollInterval.Std())
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 6432 {
		t.Fatalf("postgres section not decoded: %+v", cfg.Postgres)
	}
	// untouched sections keep defaults
	if cfg.Server.Addr != ":3000" {
		t.Fatalf("default addr lost: %s", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tg-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_ASSISTANT_ID", "asst_1")
	t.Setenv("PG_HOST", "envhost")
	t.Setenv("PG_PORT", "7777")
	t.Setenv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886")
	t.Setenv("PORT", "8088")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Telegram.BotToken != "tg-token" {
		t.Fatalf("BOT_TOKEN not applied")
	}
	if cfg.OpenAI.APIKey != "sk-test" || cfg.OpenAI.AssistantID != "asst_1" {
		t.Fatalf("openai env not applied: %+v", cfg.OpenAI)
	}
	if cfg.Postgres.Host != "envhost" || cfg.Postgres.Port != 7777 {
		t.Fatalf("postgres env not applied: %+v", cfg.Postgres)
	}
	if cfg.Twilio.FromNumber != "whatsapp:+14155238886" {
		t.Fatalf("twilio env not applied")
	}
	if cfg.Server.Addr != ":8088" {
		t.Fatalf("PORT not applied: %s", cfg.Server.Addr)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure with empty credentials")
	}

	cfg.Telegram.BotToken = "tok"
	cfg.OpenAI.APIKey = "sk"
	cfg.OpenAI.AssistantID = "asst"
	cfg.Twilio.AccountSID = "AC1"
	cfg.Twilio.AuthToken = "secret"
	cfg.Twilio.FromNumber = "whatsapp:+1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
