package config

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	// BaseURL is the public site; payers are redirected to {base_url}/exito.
	BaseURL   string `yaml:"base_url"`
	ClientURL string `yaml:"client_url"`

	// BookingWebhookSecret authenticates booking webhooks. When empty, bookings
	// are accepted unless RequireBookingSecret is set.
	BookingWebhookSecret string `yaml:"booking_webhook_secret"`
	RequireBookingSecret bool   `yaml:"require_booking_secret"`

	Stripe StripeConfig `yaml:"stripe"`
	PayPal PayPalConfig `yaml:"paypal"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// PriceIDs overrides catalog price ids: plan -> currency -> price id.
	PriceIDs map[string]map[string]string `yaml:"price_ids"`
}

const (
	PayPalSandbox    = "sandbox"
	PayPalProduction = "production"
)

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	WebhookID    string `yaml:"webhook_id"`
	Environment  string `yaml:"environment"`
	// BaseURL overrides the API host chosen by Environment.
	BaseURL string `yaml:"base_url"`
}

// APIBase returns the PayPal REST host.
func (c PayPalConfig) APIBase() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == PayPalProduction {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}
