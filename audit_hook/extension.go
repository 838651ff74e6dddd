// Package audithook bridges kudos grant events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/id"
	"github.com/xraph/kudos/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnGrantRecorded  = (*Extension)(nil)
	_ plugin.OnGrantRejected  = (*Extension)(nil)
	_ plugin.OnQuotaExhausted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.AuditEventID `json:"id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	Category   string          `json:"category"`
	ResourceID string          `json:"resource_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Outcome    string          `json:"outcome"`
	Severity   string          `json:"severity"`
	Reason     string          `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges kudos grant events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnGrantRecorded implements plugin.OnGrantRecorded.
func (e *Extension) OnGrantRecorded(ctx context.Context, g *grant.Grant) error {
	return e.record(ctx, ActionGrantRecorded, SeverityInfo, OutcomeSuccess,
		ResourceGrant, g.ID.String(), CategoryRecognition, nil,
		"sender_id", g.SenderID,
		"recipient_id", g.RecipientID,
		"group_id", g.GroupID,
		"channel_id", g.ChannelID,
	)
}

// OnGrantRejected implements plugin.OnGrantRejected.
func (e *Extension) OnGrantRejected(ctx context.Context, c grant.Candidate, reason error) error {
	return e.record(ctx, ActionGrantRejected, SeverityInfo, OutcomeFailure,
		ResourceGrant, "", CategoryRecognition, reason,
		"sender_id", c.SenderID,
		"recipient_id", c.RecipientID,
		"group_id", c.GroupID,
		"recipient_eligible", c.RecipientEligible,
	)
}

// ──────────────────────────────────────────────────
// Quota lifecycle hooks
// ──────────────────────────────────────────────────

// OnQuotaExhausted implements plugin.OnQuotaExhausted.
func (e *Extension) OnQuotaExhausted(ctx context.Context, senderID, groupID string, used, limit int64) error {
	return e.record(ctx, ActionQuotaExhausted, SeverityWarning, OutcomeFailure,
		ResourceQuota, senderID, CategoryQuota, nil,
		"sender_id", senderID,
		"group_id", groupID,
		"used", used,
		"limit", limit,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
