package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for voxreport.
type Config struct {
	// Backend rows API (required).
	APIBaseURL string `env:"VOXREPORT_API_URL"`

	// Account credentials (required).
	Email    string `env:"VOXREPORT_EMAIL"`
	Password string `env:"VOXREPORT_PASSWORD"`

	// Translation automation webhook. Translation requests fail with a
	// user-visible error when unset.
	TranslateWebhookURL string `env:"VOXREPORT_TRANSLATE_WEBHOOK"`

	// Object storage for exported PDFs. When the bucket is empty, PDFs
	// are kept inline in the report record instead.
	S3Bucket    string `env:"VOXREPORT_S3_BUCKET"`
	S3Region    string `env:"VOXREPORT_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"VOXREPORT_S3_ENDPOINT"`
	S3AccessKey string `env:"VOXREPORT_S3_ACCESS_KEY"`
	S3SecretKey string `env:"VOXREPORT_S3_SECRET_KEY"`

	// Lifetime of signed PDF references handed to the UI.
	SignedURLTTL time.Duration `env:"VOXREPORT_SIGNED_URL_TTL" envDefault:"8760h"`

	// Directory watched for dropped transcripts and recordings. The inbox
	// watcher is disabled when empty.
	InboxDir string `env:"VOXREPORT_INBOX_DIR"`

	// Device name this client registers as. Defaults to system hostname.
	DeviceName string `env:"VOXREPORT_DEVICE_NAME"`

	// Billing redirect targets passed to the checkout-session function.
	CheckoutPriceID    string `env:"VOXREPORT_CHECKOUT_PRICE_ID"`
	CheckoutSuccessURL string `env:"VOXREPORT_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `env:"VOXREPORT_CHECKOUT_CANCEL_URL"`

	// Upper bound on a full pull. The sync latch is released when this
	// deadline passes, so a stalled network cannot block syncs forever.
	SyncTimeout time.Duration `env:"VOXREPORT_SYNC_TIMEOUT" envDefault:"2m"`

	// How often the background resync runs after the initial pull.
	SyncInterval time.Duration `env:"VOXREPORT_SYNC_INTERVAL" envDefault:"5m"`

	// Override for the state database location. Defaults to
	// ~/.voxreport/state.db when empty.
	StatePath string `env:"VOXREPORT_STATE_PATH"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "voxreport"
		}

		cfg.DeviceName = hostname
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("VOXREPORT_API_URL is required")
	}

	if c.Email == "" {
		return fmt.Errorf("VOXREPORT_EMAIL is required")
	}

	if c.Password == "" {
		return fmt.Errorf("VOXREPORT_PASSWORD is required")
	}

	// S3 settings are all-or-nothing: a bucket without credentials (or
	// the reverse) points at a half-configured deployment.
	if c.S3Bucket != "" {
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("VOXREPORT_S3_ACCESS_KEY and VOXREPORT_S3_SECRET_KEY are required when VOXREPORT_S3_BUCKET is set")
		}
	} else if c.S3AccessKey != "" || c.S3SecretKey != "" {
		return fmt.Errorf("VOXREPORT_S3_BUCKET is required when S3 credentials are set")
	}

	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("VOXREPORT_SIGNED_URL_TTL must be positive")
	}

	if c.SyncTimeout <= 0 {
		return fmt.Errorf("VOXREPORT_SYNC_TIMEOUT must be positive")
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("VOXREPORT_SYNC_INTERVAL must be positive")
	}

	return nil
}

// PDFUploadsEnabled reports whether exported PDFs go to object storage.
func (c *Config) PDFUploadsEnabled() bool {
	return c.S3Bucket != ""
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
