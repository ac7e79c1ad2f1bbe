package mpesa

import (
	"strconv"
	"time"

	"github.com/fundilink/FundiLink/internal/pkg/env"
)

const (
	defaultAuthURL    = "https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	defaultStkPushURL = "https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"
	defaultQueryURL   = "https://api.safaricom.co.ke/mpesa/stkpushquery/v1/query"

	defaultTimeoutSeconds = 30
)

// Config carries the Daraja credentials and endpoints for one paybill.
type Config struct {
	AuthURL    string
	StkPushURL string
	QueryURL   string

	ConsumerKey    string
	ConsumerSecret string

	BusinessShortcode string
	Passkey           string
	CallbackURL       string

	Timeout time.Duration
}

// NewConfigFromEnv reads the MPESA_* variables documented in the deployment
// guide. Missing credentials are surfaced on first provider call, not here.
func NewConfigFromEnv() Config {
	timeout := defaultTimeoutSeconds
	if raw := env.GetEnv("MPESA_TIMEOUT", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeout = n
		}
	}

	return Config{
		AuthURL:           env.GetEnv("MPESA_AUTH_URL", defaultAuthURL),
		StkPushURL:        env.GetEnv("MPESA_STK_PUSH_URL", defaultStkPushURL),
		QueryURL:          env.GetEnv("MPESA_QUERY_URL", defaultQueryURL),
		ConsumerKey:       env.GetEnv("MPESA_CONSUMER_KEY", ""),
		ConsumerSecret:    env.GetEnv("MPESA_CONSUMER_SECRET", ""),
		BusinessShortcode: env.GetEnv("MPESA_BUSINESS_SHORTCODE", ""),
		Passkey:           env.GetEnv("MPESA_PASSKEY", ""),
		CallbackURL:       env.GetEnv("MPESA_CALLBACK_URL", ""),
		Timeout:           time.Duration(timeout) * time.Second,
	}
}
