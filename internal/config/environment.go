package config

import "strings"

// Environment is a deployment tier.
type Environment string

// Deployment tiers.
const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// DetectEnvironment maps an ENVIRONMENT value onto a tier. Unknown and empty
// values fall back to development.
func DetectEnvironment(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "prod", "production":
		return Production
	case "stage", "staging":
		return Staging
	default:
		return Development
	}
}

// String returns the tier name.
func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether e is the production tier.
func (e Environment) IsProduction() bool {
	return e == Production
}
