package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/mailcast"
	"github.com/dmitrymomot/mailcast/pkg/analytics"
	"github.com/dmitrymomot/mailcast/pkg/db"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/mailer/gmail"
	"github.com/dmitrymomot/mailcast/pkg/mailer/resend"
	"github.com/dmitrymomot/mailcast/pkg/redis"
	"github.com/dmitrymomot/mailcast/pkg/storage"
)

type config struct {
	Log       logger.Config
	Engine    mailcast.Config
	DB        db.Config
	Redis     redis.Config
	Storage   storage.Config
	Analytics analytics.Config
	Resend    resend.Config
	Gmail     gmail.Config

	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxUploadSize   int64         `env:"HTTP_MAX_UPLOAD_SIZE" envDefault:"33554432"`

	ProviderMode mailer.Mode `env:"PROVIDER_MODE" envDefault:"single"`
	// PrimaryProvider defaults to the first enabled provider: resend, gmail, then log.
	PrimaryProvider string `env:"PROVIDER_PRIMARY"`

	// LogProvider registers a provider that only logs messages. Used when no real provider is configured.
	LogProviderCapacity int           `env:"LOG_PROVIDER_CAPACITY" envDefault:"10"`
	LogProviderPeriod   time.Duration `env:"LOG_PROVIDER_PERIOD" envDefault:"1s"`

	VerifyAddresses bool          `env:"VERIFY_ADDRESSES" envDefault:"true"`
	VerifyCacheTTL  time.Duration `env:"VERIFY_CACHE_TTL" envDefault:"1h"`
	JobWorkers      int           `env:"JOB_WORKERS" envDefault:"10"`
}

// loadConfig reads .env when present, then the process environment.
func loadConfig() (config, error) {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
