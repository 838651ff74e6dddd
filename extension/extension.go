// Package extension provides the Forge extension adapter for kudos.
//
// It implements the forge.Extension interface to integrate the kudos ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.kudos" or "kudos" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	kudos "github.com/xraph/kudos"
	"github.com/xraph/kudos/observability"
	"github.com/xraph/kudos/store"
	"github.com/xraph/kudos/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "kudos"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Peer-recognition ledger with monthly allotments"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the kudos ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *kudos.Ledger
	store      store.Store
	ledgerOpts []kudos.Option
	registerer prometheus.Registerer
	metrics    *observability.MetricsExtension
}

// New creates a new kudos Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying kudos ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *kudos.Ledger { return e.engine }

// Metrics returns the metrics plugin, or nil when metrics are disabled.
func (e *Extension) Metrics() *observability.MetricsExtension { return e.metrics }

// Register implements [forge.Extension]. It loads configuration,
// initializes the kudos engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*kudos.Ledger, error) {
		return e.engine, nil
	})
}

// build constructs the engine from the resolved config.
func (e *Extension) build() error {
	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}

	e.engine = kudos.New(e.store, opts...)
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("kudos: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("kudos: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs kudos.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]kudos.Option, error) {
	opts := make([]kudos.Option, 0, len(e.ledgerOpts)+4)

	if e.config.DisableMigrate {
		opts = append(opts, kudos.WithoutMigrate())
	}

	if e.config.MonthlyLimit > 0 {
		opts = append(opts, kudos.WithMonthlyLimit(e.config.MonthlyLimit))
	}

	if e.config.Timezone != "" {
		loc, err := time.LoadLocation(e.config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("kudos: invalid timezone %q: %w", e.config.Timezone, err)
		}
		opts = append(opts, kudos.WithLocation(loc))
	}

	if e.config.EnableMetrics {
		e.metrics = observability.NewMetricsExtension(observability.NewPrometheusFactory(e.registerer))
		opts = append(opts, kudos.WithPlugin(e.metrics))
	}

	// Append any pass-through kudos options.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("kudos: configuration is required but not found in config files; " +
				"ensure 'extensions.kudos' or 'kudos' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("kudos: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("monthly_limit", e.config.MonthlyLimit),
		forge.F("timezone", e.config.Timezone),
		forge.F("enable_metrics", e.config.EnableMetrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.kudos" first (namespaced pattern).
	if cm.IsSet("extensions.kudos") {
		if err := cm.Bind("extensions.kudos", &cfg); err == nil {
			e.Logger().Debug("kudos: loaded config from file",
				forge.F("key", "extensions.kudos"),
			)
			return cfg, true
		}
		e.Logger().Warn("kudos: failed to bind extensions.kudos config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "kudos" key.
	if cm.IsSet("kudos") {
		if err := cm.Bind("kudos", &cfg); err == nil {
			e.Logger().Debug("kudos: loaded config from file",
				forge.F("key", "kudos"),
			)
			return cfg, true
		}
		e.Logger().Warn("kudos: failed to bind kudos config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MonthlyLimit <= 0 {
		cfg.MonthlyLimit = defaults.MonthlyLimit
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Timezone == "" && programmaticConfig.Timezone != "" {
		yamlConfig.Timezone = programmaticConfig.Timezone
	}

	// Int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.MonthlyLimit == 0 && programmaticConfig.MonthlyLimit != 0 {
		yamlConfig.MonthlyLimit = programmaticConfig.MonthlyLimit
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
