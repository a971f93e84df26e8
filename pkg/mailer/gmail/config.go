package gmail

import "time"

// Config holds Gmail API provider configuration.
// The refresh token must carry the gmail.send scope.
type Config struct {
	ClientID     string `env:"GMAIL_CLIENT_ID"`
	ClientSecret string `env:"GMAIL_CLIENT_SECRET"`
	RefreshToken string `env:"GMAIL_REFRESH_TOKEN"`
	SenderEmail  string `env:"GMAIL_FROM_EMAIL"`
	SenderName   string `env:"GMAIL_FROM_NAME"`

	// Gmail allows roughly 250 quota units per second per user; a send costs 100.
	RateCapacity int           `env:"GMAIL_RATE_CAPACITY" envDefault:"2"`
	RateRefill   int           `env:"GMAIL_RATE_REFILL" envDefault:"2"`
	RatePeriod   time.Duration `env:"GMAIL_RATE_PERIOD" envDefault:"1s"`

	Timeout time.Duration `env:"GMAIL_TIMEOUT" envDefault:"15s"`
}

// Enabled reports whether OAuth credentials are configured.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
