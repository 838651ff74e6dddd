package extension

import (
	"github.com/prometheus/client_golang/prometheus"

	kudos "github.com/xraph/kudos"
	"github.com/xraph/kudos/plugin"
	"github.com/xraph/kudos/store"
)

// Option configures the kudos Forge extension.
type Option func(*Extension)

// WithStore sets the store for the kudos engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a kudos.Option through to the underlying engine.
func WithLedgerOption(opt kudos.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a kudos plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, kudos.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMonthlyLimit sets the per-sender, per-group monthly allotment.
func WithMonthlyLimit(n int64) Option {
	return func(e *Extension) { e.config.MonthlyLimit = n }
}

// WithTimezone sets the IANA location used to resolve calendar months.
func WithTimezone(name string) Option {
	return func(e *Extension) { e.config.Timezone = name }
}

// WithMetrics enables the metrics plugin and registers its collectors with
// reg. A nil reg uses the Prometheus default registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Extension) {
		e.config.EnableMetrics = true
		e.registerer = reg
	}
}
