package kudos

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/period"
	"github.com/xraph/kudos/plugin"
	"github.com/xraph/kudos/quota"
	"github.com/xraph/kudos/store"
)

const (
	// DefaultMonthlyLimit is the number of grants a sender may give per
	// group per calendar month.
	DefaultMonthlyLimit int64 = 10

	// RecentLimit caps the recognitions listed in a ReceivedSummary.
	RecentLimit = 5

	// LeaderboardSize caps the rows returned by Leaderboard.
	LeaderboardSize = 10
)

// Ledger is the quota-and-ledger engine.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	clock       period.Clock
	location    *time.Location
	limit       int64
	skipMigrate bool

	locks keyedMutex
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		clock:    period.SystemClock,
		location: time.Local,
		limit:    DefaultMonthlyLimit,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMonthlyLimit sets the per-sender, per-group monthly allotment.
// Non-positive values are ignored.
func WithMonthlyLimit(n int64) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.limit = n
		}
	}
}

// WithLocation sets the location in which calendar months are resolved.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithClock sets the clock used to resolve the current period.
func WithClock(c period.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithoutMigrate makes Start leave the schema alone. Plugins are still
// initialized.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// Start migrates the store, unless WithoutMigrate was given, and
// initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return persistenceError("migrate", err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("kudos ledger started",
		"monthly_limit", l.limit,
		"location", l.location.String(),
		"plugins", l.plugins.Count(),
		"migrate", !l.skipMigrate,
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Store returns the backing store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// MonthlyLimit returns the configured allotment.
func (l *Ledger) MonthlyLimit() int64 { return l.limit }

// Location returns the location used to resolve calendar months.
func (l *Ledger) Location() *time.Location { return l.location }

// ──────────────────────────────────────────────────
// Quota
// ──────────────────────────────────────────────────

// CurrentPeriod returns the calendar month containing the clock's current
// instant. It is recomputed on every call.
func (l *Ledger) CurrentPeriod() period.Period {
	return period.Of(l.clock.Now().In(l.location))
}

// RemainingAllowance returns how many more grants sender may give in group
// during the current period. It never goes below zero.
func (l *Ledger) RemainingAllowance(ctx context.Context, senderID, groupID string) (int64, error) {
	b, err := l.Balance(ctx, senderID, groupID)
	if err != nil {
		return 0, err
	}
	return b.Remaining, nil
}

// Balance returns the limit, usage and remaining allowance of sender in group.
// Both ids are required.
func (l *Ledger) Balance(ctx context.Context, senderID, groupID string) (*quota.Balance, error) {
	if err := requireFields("sender_id", senderID, "group_id", groupID); err != nil {
		return nil, err
	}

	p := l.CurrentPeriod()

	used, err := l.store.CountGrants(ctx, grant.Filter{
		SenderID: senderID,
		GroupID:  groupID,
		Since:    p.Start,
	})
	if err != nil {
		return nil, persistenceError("count grants", err)
	}

	return quota.New(senderID, groupID, l.limit, used, p), nil
}

// ──────────────────────────────────────────────────
// Grants
// ──────────────────────────────────────────────────

// Validate decides whether a grant may be given. Checks run in order and
// stop at the first failure: self grant, recipient eligibility, quota.
func (l *Ledger) Validate(ctx context.Context, c grant.Candidate) error {
	_, err := l.validate(ctx, c)
	return err
}

// validate returns the remaining allowance before the grant on success.
func (l *Ledger) validate(ctx context.Context, c grant.Candidate) (int64, error) {
	if err := requireIDs(c.SenderID, c.RecipientID, c.GroupID); err != nil {
		return 0, err
	}

	if c.SenderID == c.RecipientID {
		return 0, l.reject(ctx, c, ErrSelfGrant)
	}

	if !c.RecipientEligible {
		return 0, l.reject(ctx, c, ErrIneligibleRecipient)
	}

	b, err := l.Balance(ctx, c.SenderID, c.GroupID)
	if err != nil {
		return 0, err
	}

	if b.Exhausted() {
		l.plugins.EmitQuotaExhausted(ctx, c.SenderID, c.GroupID, b.Used, b.Limit)
		return 0, l.reject(ctx, c, ErrQuotaExhausted)
	}

	return b.Remaining, nil
}

func (l *Ledger) reject(ctx context.Context, c grant.Candidate, reason error) error {
	l.logger.Debug("grant rejected",
		"sender_id", c.SenderID,
		"recipient_id", c.RecipientID,
		"group_id", c.GroupID,
		"reason", reason,
	)
	l.plugins.EmitGrantRejected(ctx, c, reason)
	return reason
}

// RecordGrant appends one grant to the ledger and returns the stored record.
// It does not re-run Validate.
func (l *Ledger) RecordGrant(ctx context.Context, in grant.Input) (*grant.Grant, error) {
	if err := requireIDs(in.SenderID, in.RecipientID, in.GroupID); err != nil {
		return nil, err
	}

	if in.Message.TooLong() {
		return nil, ErrMessageTooLong
	}

	g := in.Build()
	if err := l.store.InsertGrant(ctx, g); err != nil {
		return nil, persistenceError("insert grant", err)
	}

	l.logger.Debug("grant recorded",
		"grant_id", g.ID.String(),
		"sender_id", g.SenderID,
		"recipient_id", g.RecipientID,
		"group_id", g.GroupID,
	)

	l.plugins.EmitGrantRecorded(ctx, g)
	return g, nil
}

// GiveResult is the outcome of a successful Give.
type GiveResult struct {
	Grant *grant.Grant `json:"grant"`
	// Remaining is the sender's allowance after this grant.
	Remaining int64 `json:"remaining"`
}

// Give validates and records a grant while holding a lock on the
// (sender, group) pair, so concurrent callers in one process cannot
// overshoot the monthly limit.
func (l *Ledger) Give(ctx context.Context, in grant.Input, recipientEligible bool) (*GiveResult, error) {
	unlock := l.locks.lock(in.SenderID + "\x00" + in.GroupID)
	defer unlock()

	remaining, err := l.validate(ctx, in.Candidate(recipientEligible))
	if err != nil {
		return nil, err
	}

	g, err := l.RecordGrant(ctx, in)
	if err != nil {
		return nil, err
	}

	return &GiveResult{Grant: g, Remaining: remaining - 1}, nil
}

// ──────────────────────────────────────────────────
// Reports
// ──────────────────────────────────────────────────

// ReceivedSummary is what a recipient has been given this period.
type ReceivedSummary struct {
	Count  int64               `json:"count"`
	Recent []grant.Recognition `json:"recent"`
}

// LeaderboardEntry is one recipient's total for the period.
type LeaderboardEntry struct {
	RecipientID          string `json:"recipient_id"`
	RecipientDisplayName string `json:"recipient_display_name"`
	Count                int64  `json:"count"`
}

// ReceivedSummary returns the number of grants recipient has received in
// group this period and the most recent ones, newest first.
func (l *Ledger) ReceivedSummary(ctx context.Context, recipientID, groupID string) (*ReceivedSummary, error) {
	if err := requireFields("recipient_id", recipientID, "group_id", groupID); err != nil {
		return nil, err
	}

	p := l.CurrentPeriod()
	f := grant.Filter{
		RecipientID: recipientID,
		GroupID:     groupID,
		Since:       p.Start,
	}

	count, err := l.store.CountGrants(ctx, f)
	if err != nil {
		return nil, persistenceError("count grants", err)
	}

	f.Order = grant.OrderNewest
	f.Limit = RecentLimit
	rows, err := l.store.QueryGrants(ctx, f)
	if err != nil {
		return nil, persistenceError("query grants", err)
	}

	summary := &ReceivedSummary{
		Count:  count,
		Recent: make([]grant.Recognition, 0, len(rows)),
	}
	for _, g := range rows {
		summary.Recent = append(summary.Recent, g.Recognition())
	}
	return summary, nil
}

// Leaderboard returns the top recipients in group this period. Rows are
// ordered by count descending, then by earliest first grant, then by
// recipient id. Each row carries the recipient's latest display name.
func (l *Ledger) Leaderboard(ctx context.Context, groupID string) ([]LeaderboardEntry, error) {
	if err := requireFields("group_id", groupID); err != nil {
		return nil, err
	}

	p := l.CurrentPeriod()

	if agg, ok := l.store.(grant.RecipientAggregator); ok {
		rows, err := agg.TopRecipients(ctx, groupID, p.Start, time.Time{}, LeaderboardSize)
		switch {
		case err == nil:
			entries := make([]LeaderboardEntry, 0, len(rows))
			for _, r := range rows {
				entries = append(entries, LeaderboardEntry(r))
			}
			return entries, nil
		case !errors.Is(err, grant.ErrAggregationUnsupported):
			return nil, persistenceError("aggregate recipients", err)
		}
	}

	rows, err := l.store.QueryGrants(ctx, grant.Filter{
		GroupID: groupID,
		Since:   p.Start,
		Order:   grant.OrderOldest,
	})
	if err != nil {
		return nil, persistenceError("query grants", err)
	}

	return rankRecipients(rows, LeaderboardSize), nil
}

// rankRecipients groups oldest-first rows by recipient.
func rankRecipients(rows []*grant.Grant, limit int) []LeaderboardEntry {
	type tally struct {
		entry LeaderboardEntry
		first time.Time
	}

	index := make(map[string]int)
	tallies := make([]tally, 0)
	for _, g := range rows {
		i, ok := index[g.RecipientID]
		if !ok {
			i = len(tallies)
			index[g.RecipientID] = i
			tallies = append(tallies, tally{
				entry: LeaderboardEntry{RecipientID: g.RecipientID},
				first: g.CreatedAt,
			})
		}
		tallies[i].entry.Count++
		tallies[i].entry.RecipientDisplayName = g.RecipientDisplayName
	}

	sort.SliceStable(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.entry.Count != b.entry.Count {
			return a.entry.Count > b.entry.Count
		}
		if !a.first.Equal(b.first) {
			return a.first.Before(b.first)
		}
		return a.entry.RecipientID < b.entry.RecipientID
	})

	if len(tallies) > limit {
		tallies = tallies[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(tallies))
	for _, t := range tallies {
		entries = append(entries, t.entry)
	}
	return entries
}

// MonthlyGrants lists every grant of group in the given calendar month,
// resolved in the ledger's location, newest first.
func (l *Ledger) MonthlyGrants(ctx context.Context, groupID string, year int, month time.Month) ([]*grant.Grant, error) {
	if groupID == "" {
		return nil, ValidationError{Field: "group_id", Message: "is required"}
	}
	if month < time.January || month > time.December {
		return nil, ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}

	p := period.Month(year, month, l.location)
	rows, err := l.store.QueryGrants(ctx, grant.Filter{
		GroupID: groupID,
		Since:   p.Start,
		Until:   p.End,
		Order:   grant.OrderNewest,
	})
	if err != nil {
		return nil, persistenceError("query grants", err)
	}
	return rows, nil
}

// ──────────────────────────────────────────────────
// Locks
// ──────────────────────────────────────────────────

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
