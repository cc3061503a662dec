package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

// Credential and extra-setting keys shared by the config layer and adapters.
const (
	KeyAPIKey         = "api_key"
	KeyPublishableKey = "publishable_key"
	KeyAccessToken    = "access_token"
	KeyApplicationID  = "application_id"
	KeyLocationID     = "location_id"
	KeySecretKey      = "secret_key"
	KeyAccountID      = "account_id"
	KeyWebhookSecret  = "webhook_secret"
	KeyAPIVersion     = "api_version"
	KeyEnvironment    = "environment"
)

// Config is one provider's configuration within an environment.
type Config struct {
	Type     domain.GatewayType
	Enabled  bool
	TestMode bool
	// Priority orders gateways for failover; lower is preferred.
	Priority       int
	Credentials    map[string]string
	WebhookSecret  string
	TransactionFee decimal.Decimal
	PercentageFee  decimal.Decimal
	// Extra holds provider quirks such as Square's location_id.
	Extra   map[string]string
	BaseURL string
	Timeout time.Duration
}

// Credential returns a credential, falling back to Extra.
func (c Config) Credential(key string) string {
	if v := c.Credentials[key]; v != "" {
		return v
	}
	return c.Extra[key]
}

// HasCredential reports whether key is set in Credentials or Extra.
func (c Config) HasCredential(key string) bool {
	return c.Credential(key) != ""
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Credentials = domain.CopyMetadata(c.Credentials)
	out.Extra = domain.CopyMetadata(c.Extra)
	return out
}

// TransactionCost returns fixed + amount * pct / 100.
func (c Config) TransactionCost(amount decimal.Decimal) decimal.Decimal {
	return c.TransactionFee.Add(amount.Mul(c.PercentageFee).Div(decimal.NewFromInt(100)))
}
