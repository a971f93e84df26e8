package resend

import "time"

// Config holds Resend provider configuration.
type Config struct {
	APIKey      string `env:"RESEND_API_KEY"`
	SenderEmail string `env:"RESEND_FROM_EMAIL"`
	SenderName  string `env:"RESEND_FROM_NAME"`
	ReplyTo     string `env:"RESEND_REPLY_TO"`

	// Resend's default team quota is 2 requests per second.
	RateCapacity int           `env:"RESEND_RATE_CAPACITY" envDefault:"2"`
	RateRefill   int           `env:"RESEND_RATE_REFILL" envDefault:"2"`
	RatePeriod   time.Duration `env:"RESEND_RATE_PERIOD" envDefault:"1s"`

	Timeout time.Duration `env:"RESEND_TIMEOUT" envDefault:"15s"`
}

// Enabled reports whether an API key is configured.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}
