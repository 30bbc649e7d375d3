package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Worker   WorkerConfig
	OpenAI   OpenAIConfig
	Storage  StorageConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	SoloPriceID     string
	SeasonalPriceID string
}

type WorkerConfig struct {
	URL        string
	ServiceKey string
}

type OpenAIConfig struct {
	APIKey string
}

type StorageConfig struct {
	AccessKey string
	SecretKey string
	AccountID string
	Bucket    string
}

type AppConfig struct {
	URL string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SoloPriceID:     getEnv("STRIPE_SOLO_PRICE_ID", ""),
			SeasonalPriceID: getEnv("STRIPE_SEASONAL_PRICE_ID", ""),
		},
		Worker: WorkerConfig{
			URL:        getEnv("FLY_WORKER_URL", ""),
			ServiceKey: getEnv("WORKER_SERVICE_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
		},
		Storage: StorageConfig{
			AccessKey: getEnv("R2_ACCESS_KEY", ""),
			SecretKey: getEnv("R2_SECRET_KEY", ""),
			AccountID: getEnv("R2_ACCOUNT_ID", ""),
			Bucket:    getEnv("R2_BUCKET_NAME", ""),
		},
		App: AppConfig{
			URL: getEnv("APP_URL", "http://localhost:3000"),
		},
	}
}

// Validate checks the settings the service cannot start without. Optional
// integrations (OpenAI, object storage, worker) degrade at the endpoint
// level instead.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	return nil
}

// PriceIDFor maps a plan name onto its Stripe price ID, empty if unknown.
func (c *Config) PriceIDFor(plan string) string {
	switch plan {
	case "solo":
		return c.Stripe.SoloPriceID
	case "seasonal":
		return c.Stripe.SeasonalPriceID
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
