package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds every runtime option, read once at start.
type AppConfig struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev"`
	Port    int    `envconfig:"PORT" default:"3000"`
	BaseURL string `envconfig:"BASE_URL"`

	Anthropic struct {
		APIKey string `envconfig:"ANTHROPIC_API_KEY"`
		Model  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-6"`
	} `envconfig:""`

	Search struct {
		APIKey string `envconfig:"BRAVE_API_KEY"`
	} `envconfig:""`

	// DatabaseURL empty means persistence is skipped and submissions are
	// email-only.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	SMTP struct {
		Host     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		User     string `envconfig:"SMTP_USER"`
		Password string `envconfig:"SMTP_PASSWORD"`
	} `envconfig:""`

	NotifyEmail string `envconfig:"NOTIFY_EMAIL" default:"production@bmasiamusic.com"`

	Syb struct {
		APIToken string `envconfig:"SYB_API_TOKEN"`
		APIURL   string `envconfig:"SYB_API_URL" default:"https://api.soundtrackyourbrand.com/v2"`
	} `envconfig:""`

	CatalogPath string `envconfig:"CATALOG_PATH" default:"syb_playlists.json"`
}

// Load reads the configuration from the environment. A .env file is
// honored when present.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
