package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/square"
)

// Template describes the configuration fields a provider needs.
type Template struct {
	// Primary is the credential without which the gateway is unusable.
	Primary        string
	RequiredFields []string
	OptionalFields []string
	DefaultValues  map[string]string
}

func (t Template) clone() Template {
	out := t
	out.RequiredFields = append([]string(nil), t.RequiredFields...)
	out.OptionalFields = append([]string(nil), t.OptionalFields...)
	out.DefaultValues = domain.CopyMetadata(t.DefaultValues)
	return out
}

// DefaultTemplates returns the built-in provider templates.
func DefaultTemplates() map[domain.GatewayType]Template {
	return map[domain.GatewayType]Template{
		domain.GatewayStripe: {
			Primary:        gateway.KeyAPIKey,
			RequiredFields: []string{gateway.KeyAPIKey, gateway.KeyPublishableKey},
			OptionalFields: []string{gateway.KeyWebhookSecret, gateway.KeyAPIVersion},
			DefaultValues:  map[string]string{gateway.KeyAPIVersion: "2020-08-27"},
		},
		domain.GatewaySquare: {
			Primary:        gateway.KeyAccessToken,
			RequiredFields: []string{gateway.KeyAccessToken, gateway.KeyApplicationID, gateway.KeyLocationID},
			OptionalFields: []string{gateway.KeyWebhookSecret, gateway.KeyEnvironment, gateway.KeyAPIVersion},
			DefaultValues: map[string]string{
				gateway.KeyEnvironment: "sandbox",
				gateway.KeyAPIVersion:  square.DefaultAPIVersion,
			},
		},
		domain.GatewayTilled: {
			Primary:        gateway.KeySecretKey,
			RequiredFields: []string{gateway.KeySecretKey, gateway.KeyAccountID},
			OptionalFields: []string{gateway.KeyPublishableKey, gateway.KeyWebhookSecret, gateway.KeyEnvironment},
			DefaultValues:  map[string]string{gateway.KeyEnvironment: "sandbox"},
		},
	}
}

// ValidateGatewayConfig fills template defaults into cfg and checks that every
// required field is set. The error lists all missing fields at once. The
// returned config carries the defaults even when validation fails.
func (f *Factory) ValidateGatewayConfig(t domain.GatewayType, cfg gateway.Config) (gateway.Config, error) {
	tmpl, ok := f.Template(t)
	if !ok {
		return cfg, domain.NewGatewayError(domain.CodeGatewayNotRegistered,
			fmt.Sprintf("no configuration template for %q", t), t)
	}

	out := cfg.Clone()
	out.Type = t
	if out.Extra == nil {
		out.Extra = map[string]string{}
	}
	for k, v := range tmpl.DefaultValues {
		if !out.HasCredential(k) {
			out.Extra[k] = v
		}
	}

	var missing []string
	for _, field := range tmpl.RequiredFields {
		if !hasField(out, field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return out, &domain.GatewayError{
			Code:    domain.CodeMissingConfigFields,
			Message: fmt.Sprintf("missing required %s config fields: %s", t, strings.Join(missing, ", ")),
			Gateway: t,
			Fields:  missing,
		}
	}
	return out, nil
}

// IsCredentialed reports whether cfg carries the template's primary credential.
func (f *Factory) IsCredentialed(t domain.GatewayType, cfg gateway.Config) bool {
	tmpl, ok := f.Template(t)
	if !ok {
		return false
	}
	return tmpl.Primary == "" || cfg.HasCredential(tmpl.Primary)
}

func hasField(cfg gateway.Config, field string) bool {
	if field == gateway.KeyWebhookSecret && cfg.WebhookSecret != "" {
		return true
	}
	return cfg.HasCredential(field)
}

// MissingFields returns the fields listed by a MISSING_CONFIG_FIELDS error.
func MissingFields(err error) []string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) && gwErr.Code == domain.CodeMissingConfigFields {
		return append([]string(nil), gwErr.Fields...)
	}
	return nil
}
