package extension

import kudos "github.com/xraph/kudos"

// Config holds the kudos extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.kudos" or "kudos" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MonthlyLimit is the number of grants a sender may give per group per
	// calendar month (default: 10).
	MonthlyLimit int64 `json:"monthly_limit" mapstructure:"monthly_limit" yaml:"monthly_limit"`

	// Timezone is the IANA location in which calendar months are resolved,
	// e.g. "Europe/Berlin". Empty means the process's local time.
	Timezone string `json:"timezone" mapstructure:"timezone" yaml:"timezone"`

	// EnableMetrics registers the Prometheus-backed metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MonthlyLimit: kudos.DefaultMonthlyLimit,
	}
}
