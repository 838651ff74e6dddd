// Package observability provides a metrics extension for kudos that records
// grant lifecycle counts through a MetricFactory.
package observability

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/xraph/kudos"
	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin           = (*MetricsExtension)(nil)
	_ plugin.OnInit           = (*MetricsExtension)(nil)
	_ plugin.OnGrantRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnGrantRejected  = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExhausted = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide grant metrics.
// Register it as a kudos plugin to track recognition activity.
type MetricsExtension struct {
	factory MetricFactory

	// Grant metrics
	GrantsRecorded Counter
	MessageLength  Histogram
	DefaultMessage Counter

	// Rejection metrics
	GrantsRejected       Counter
	RejectedSelf         Counter
	RejectedIneligible   Counter
	RejectedQuota        Counter
	RejectedOther        Counter
	QuotaExhausted       Counter
	QuotaUsedAtExhausted Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Grant metrics
		GrantsRecorded: factory.Counter("kudos.grant.recorded"),
		MessageLength:  factory.Histogram("kudos.grant.message.length"),
		DefaultMessage: factory.Counter("kudos.grant.message.default"),

		// Rejection metrics
		GrantsRejected:       factory.Counter("kudos.grant.rejected"),
		RejectedSelf:         factory.Counter("kudos.grant.rejected.self"),
		RejectedIneligible:   factory.Counter("kudos.grant.rejected.ineligible"),
		RejectedQuota:        factory.Counter("kudos.grant.rejected.quota"),
		RejectedOther:        factory.Counter("kudos.grant.rejected.other"),
		QuotaExhausted:       factory.Counter("kudos.quota.exhausted"),
		QuotaUsedAtExhausted: factory.Histogram("kudos.quota.used_at_exhausted"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnGrantRecorded implements plugin.OnGrantRecorded.
func (m *MetricsExtension) OnGrantRecorded(_ context.Context, g *grant.Grant) error {
	m.GrantsRecorded.Inc()
	m.MessageLength.Observe(float64(utf8.RuneCountInString(g.Message)))
	if g.Message == grant.DefaultMessageText {
		m.DefaultMessage.Inc()
	}
	return nil
}

// OnGrantRejected implements plugin.OnGrantRejected.
func (m *MetricsExtension) OnGrantRejected(_ context.Context, _ grant.Candidate, reason error) error {
	m.GrantsRejected.Inc()

	switch {
	case errors.Is(reason, kudos.ErrSelfGrant):
		m.RejectedSelf.Inc()
	case errors.Is(reason, kudos.ErrIneligibleRecipient):
		m.RejectedIneligible.Inc()
	case errors.Is(reason, kudos.ErrQuotaExhausted):
		m.RejectedQuota.Inc()
	default:
		m.RejectedOther.Inc()
	}
	return nil
}

// OnQuotaExhausted implements plugin.OnQuotaExhausted.
func (m *MetricsExtension) OnQuotaExhausted(_ context.Context, _, _ string, used, _ int64) error {
	m.QuotaExhausted.Inc()
	m.QuotaUsedAtExhausted.Observe(float64(used))
	return nil
}
