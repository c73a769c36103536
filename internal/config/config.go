package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type VerificationConfig struct {
	CodeTTLMinutes         int `yaml:"code_ttl_minutes"`
	ResendCooldownMinutes  int `yaml:"resend_cooldown_minutes"`
	MaxDailyAttempts       int `yaml:"max_daily_attempts"`
	MaxWrongAttempts       int `yaml:"max_wrong_attempts"`
	RestrictionDays        int `yaml:"restriction_days"`
	DispatchTimeoutSeconds int `yaml:"dispatch_timeout_seconds"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

type WhatsAppConfig struct {
	InstanceID string `yaml:"instance_id"`
	Token      string `yaml:"token"`
	DryRun     bool   `yaml:"dry_run"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AlertChatID int64  `yaml:"alert_chat_id"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Verification VerificationConfig `yaml:"verification"`
}

func LoadConfig() *Config {
	// секреты из .env перекрывают yaml; отсутствие файла — не ошибка
	_ = godotenv.Load()

	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTPPassword = v
	}
	if v := os.Getenv("GREEN_API_INSTANCE_ID"); v != "" {
		cfg.WhatsApp.InstanceID = v
	}
	if v := os.Getenv("GREEN_API_TOKEN"); v != "" {
		cfg.WhatsApp.Token = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_ALERT_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.AlertChatID = id
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	v := &cfg.Verification
	if v.CodeTTLMinutes <= 0 {
		v.CodeTTLMinutes = 10
	}
	if v.ResendCooldownMinutes <= 0 {
		v.ResendCooldownMinutes = 2
	}
	if v.MaxDailyAttempts <= 0 {
		v.MaxDailyAttempts = 5
	}
	if v.MaxWrongAttempts <= 0 {
		v.MaxWrongAttempts = 5
	}
	if v.RestrictionDays <= 0 {
		v.RestrictionDays = 4
	}
	if v.DispatchTimeoutSeconds <= 0 {
		v.DispatchTimeoutSeconds = 3
	}
	if v.CleanupIntervalMinutes <= 0 {
		v.CleanupIntervalMinutes = 60
	}
	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = 24
	}
}
