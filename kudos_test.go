package kudos_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/kudos"
	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/period"
	"github.com/xraph/kudos/store/memory"
)

var march = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, opts ...kudos.Option) (*kudos.Ledger, *period.Fixed) {
	t.Helper()
	clock := period.NewFixed(march)
	opts = append([]kudos.Option{kudos.WithClock(clock), kudos.WithLocation(time.UTC)}, opts...)
	l := kudos.New(memory.New(memory.WithClock(clock)), opts...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l, clock
}

func input(sender, recipient, group string) grant.Input {
	return grant.Input{
		SenderID:             sender,
		SenderDisplayName:    "name-" + sender,
		RecipientID:          recipient,
		RecipientDisplayName: "name-" + recipient,
		GroupID:              group,
	}
}

func record(t *testing.T, l *kudos.Ledger, clock *period.Fixed, in grant.Input) *grant.Grant {
	t.Helper()
	g, err := l.RecordGrant(context.Background(), in)
	require.NoError(t, err)
	clock.Advance(time.Second)
	return g
}

func TestRemainingAllowance(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	for sent := int64(0); sent <= 12; sent++ {
		remaining, err := l.RemainingAllowance(ctx, "a", "g")
		require.NoError(t, err)
		assert.Equal(t, max(0, kudos.DefaultMonthlyLimit-sent), remaining, "after %d grants", sent)
		record(t, l, clock, input("a", "b", "g"))
	}
}

func TestRemainingAllowanceIsScopedBySenderAndGroup(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	record(t, l, clock, input("a", "b", "g1"))
	record(t, l, clock, input("a", "b", "g2"))
	record(t, l, clock, input("c", "b", "g1"))

	remaining, err := l.RemainingAllowance(ctx, "a", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 9, remaining)

	b, err := l.Balance(ctx, "a", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, b.Limit)
	assert.EqualValues(t, 1, b.Used)
	assert.Equal(t, l.CurrentPeriod(), b.Period)
}

func TestWithMonthlyLimit(t *testing.T) {
	l, clock := newLedger(t, kudos.WithMonthlyLimit(2))
	ctx := context.Background()

	assert.EqualValues(t, 2, l.MonthlyLimit())
	record(t, l, clock, input("a", "b", "g"))
	record(t, l, clock, input("a", "b", "g"))

	err := l.Validate(ctx, input("a", "b", "g").Candidate(true))
	assert.ErrorIs(t, err, kudos.ErrQuotaExhausted)
}

func TestValidate(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	for range 10 {
		record(t, l, clock, input("full", "b", "g"))
	}

	tests := []struct {
		name string
		c    grant.Candidate
		want error
	}{
		{"admissible", grant.Candidate{SenderID: "a", RecipientID: "b", GroupID: "g", RecipientEligible: true}, nil},
		{"self grant", grant.Candidate{SenderID: "a", RecipientID: "a", GroupID: "g", RecipientEligible: true}, kudos.ErrSelfGrant},
		{"self grant wins over ineligible", grant.Candidate{SenderID: "a", RecipientID: "a", GroupID: "g"}, kudos.ErrSelfGrant},
		{"ineligible", grant.Candidate{SenderID: "a", RecipientID: "bot", GroupID: "g"}, kudos.ErrIneligibleRecipient},
		{"ineligible wins over quota", grant.Candidate{SenderID: "full", RecipientID: "bot", GroupID: "g"}, kudos.ErrIneligibleRecipient},
		{"self wins over quota", grant.Candidate{SenderID: "full", RecipientID: "full", GroupID: "g", RecipientEligible: true}, kudos.ErrSelfGrant},
		{"quota exhausted", grant.Candidate{SenderID: "full", RecipientID: "b", GroupID: "g", RecipientEligible: true}, kudos.ErrQuotaExhausted},
		{"quota is per group", grant.Candidate{SenderID: "full", RecipientID: "b", GroupID: "other", RecipientEligible: true}, nil},
		{"missing ids", grant.Candidate{RecipientEligible: true}, kudos.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Validate(ctx, tt.c)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMissingIDsReportEveryField(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.RecordGrant(context.Background(), grant.Input{SenderID: "a"})
	require.ErrorIs(t, err, kudos.ErrInvalidInput)

	var multi kudos.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)

	var ve kudos.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "recipient_id", ve.Field)
}

func TestReadsRequireIDs(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()
	record(t, l, clock, input("a", "b", "g1"))
	record(t, l, clock, input("a", "b", "g2"))
	record(t, l, clock, input("c", "d", "g2"))

	tests := []struct {
		name   string
		call   func() error
		fields []string
	}{
		{"remaining without group", func() error {
			_, err := l.RemainingAllowance(ctx, "a", "")
			return err
		}, []string{"group_id"}},
		{"remaining without sender", func() error {
			_, err := l.RemainingAllowance(ctx, "", "g2")
			return err
		}, []string{"sender_id"}},
		{"balance without either", func() error {
			_, err := l.Balance(ctx, "", "")
			return err
		}, []string{"sender_id", "group_id"}},
		{"summary without group", func() error {
			_, err := l.ReceivedSummary(ctx, "b", "")
			return err
		}, []string{"group_id"}},
		{"summary without recipient", func() error {
			_, err := l.ReceivedSummary(ctx, "", "g2")
			return err
		}, []string{"recipient_id"}},
		{"leaderboard without group", func() error {
			_, err := l.Leaderboard(ctx, "")
			return err
		}, []string{"group_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, kudos.ErrInvalidInput)
			assert.False(t, kudos.IsPersistence(err))

			var multi kudos.MultiError
			require.ErrorAs(t, err, &multi)
			got := make([]string, 0, len(multi.Errors))
			for _, e := range multi.Errors {
				var ve kudos.ValidationError
				require.ErrorAs(t, e, &ve)
				got = append(got, ve.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}

	remaining, err := l.RemainingAllowance(ctx, "a", "g2")
	require.NoError(t, err)
	assert.Equal(t, int64(9), remaining)
}

func TestEleventhGrantIsRejected(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	in := input("a", "b", "g")
	for i := range 10 {
		require.NoError(t, l.Validate(ctx, in.Candidate(true)), "grant %d", i+1)
		record(t, l, clock, in)
	}

	err := l.Validate(ctx, in.Candidate(true))
	assert.ErrorIs(t, err, kudos.ErrQuotaExhausted)
	assert.True(t, kudos.IsRejection(err))
}

func TestRecordGrantMessage(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		message grant.Message
		want    string
		err     error
	}{
		{"default", grant.Default, grant.DefaultMessageText, nil},
		{"empty provided", grant.Provided(""), grant.DefaultMessageText, nil},
		{"provided", grant.Provided("Great work"), "Great work", nil},
		{"at limit", grant.Provided(strings.Repeat("x", 500)), strings.Repeat("x", 500), nil},
		{"multibyte at limit", grant.Provided(strings.Repeat("é", 500)), strings.Repeat("é", 500), nil},
		{"over limit", grant.Provided(strings.Repeat("x", 501)), "", kudos.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input("a", "b", "g")
			in.Message = tt.message
			g, err := l.RecordGrant(ctx, in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Message)
		})
	}
}

func TestTooLongMessageIsNotPersisted(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	in := input("a", "b", "g")
	in.Message = grant.Provided(strings.Repeat("x", 501))
	_, err := l.RecordGrant(ctx, in)
	require.ErrorIs(t, err, kudos.ErrMessageTooLong)

	remaining, err := l.RemainingAllowance(ctx, "a", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 10, remaining)
}

func TestRecordGrantMaterializesRecord(t *testing.T) {
	l, _ := newLedger(t)

	in := grant.Input{
		SenderID:          "a",
		SenderUsername:    "alice",
		RecipientID:       "b",
		RecipientUsername: "bob",
		GroupID:           "g",
		GroupName:         "Guild",
		ChannelID:         "c1",
	}
	g, err := l.RecordGrant(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, g.ID.IsNil())
	assert.Equal(t, march, g.CreatedAt)
	assert.Equal(t, "alice", g.SenderDisplayName)
	assert.Equal(t, "bob", g.RecipientDisplayName)
	assert.Equal(t, "Guild", g.GroupName)
	assert.Equal(t, "c1", g.ChannelID)
}

func TestReceivedSummaryEmpty(t *testing.T) {
	l, _ := newLedger(t)

	s, err := l.ReceivedSummary(context.Background(), "nobody", "g")
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.NotNil(t, s.Recent)
	assert.Empty(t, s.Recent)
}

func TestReceivedSummaryRecentNewestFirst(t *testing.T) {
	l, clock := newLedger(t)

	for i := range 7 {
		in := input(fmt.Sprintf("s%d", i), "r", "g")
		in.Message = grant.Provided(fmt.Sprintf("msg %d", i))
		record(t, l, clock, in)
	}
	record(t, l, clock, input("s0", "r", "other"))

	s, err := l.ReceivedSummary(context.Background(), "r", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 7, s.Count)
	require.Len(t, s.Recent, kudos.RecentLimit)
	assert.Equal(t, "msg 6", s.Recent[0].Message)
	assert.Equal(t, "name-s6", s.Recent[0].SenderDisplayName)
	assert.Equal(t, "msg 2", s.Recent[4].Message)
	for i := 1; i < len(s.Recent); i++ {
		assert.True(t, s.Recent[i-1].CreatedAt.After(s.Recent[i].CreatedAt))
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	l, _ := newLedger(t)

	board, err := l.Leaderboard(context.Background(), "g")
	require.NoError(t, err)
	assert.NotNil(t, board)
	assert.Empty(t, board)
}

func TestLeaderboardOrdering(t *testing.T) {
	l, clock := newLedger(t)

	// B is first recognized before C, A last.
	grants := []string{"B", "C", "A", "B", "C", "B", "C", "A", "B", "C", "B", "C", "A"}
	for i, r := range grants {
		record(t, l, clock, input(fmt.Sprintf("s%d", i), r, "g"))
	}

	board, err := l.Leaderboard(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, "B", board[0].RecipientID)
	assert.EqualValues(t, 5, board[0].Count)
	assert.Equal(t, "C", board[1].RecipientID)
	assert.EqualValues(t, 5, board[1].Count)
	assert.Equal(t, "A", board[2].RecipientID)
	assert.EqualValues(t, 3, board[2].Count)

	again, err := l.Leaderboard(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, board, again)
}

func TestLeaderboardTieOnSameInstantFallsBackToID(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	for _, r := range []string{"z", "y", "x"} {
		_, err := l.RecordGrant(ctx, input("s", r, "g"))
		require.NoError(t, err)
	}

	board, err := l.Leaderboard(ctx, "g")
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{board[0].RecipientID, board[1].RecipientID, board[2].RecipientID})
}

func TestLeaderboardTopTenAndLatestName(t *testing.T) {
	l, clock := newLedger(t)

	for i := range 12 {
		record(t, l, clock, input("s", fmt.Sprintf("r%02d", i), "g"))
	}
	renamed := input("s2", "r00", "g")
	renamed.RecipientDisplayName = "Renamed"
	record(t, l, clock, renamed)

	board, err := l.Leaderboard(context.Background(), "g")
	require.NoError(t, err)
	require.Len(t, board, kudos.LeaderboardSize)
	assert.Equal(t, "r00", board[0].RecipientID)
	assert.Equal(t, "Renamed", board[0].RecipientDisplayName)
	assert.EqualValues(t, 2, board[0].Count)
	assert.Equal(t, "r01", board[1].RecipientID)
}

func TestPeriodRollover(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	clock.Set(time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC))
	for range 10 {
		record(t, l, clock, input("a", "b", "g"))
	}
	require.ErrorIs(t, l.Validate(ctx, input("a", "b", "g").Candidate(true)), kudos.ErrQuotaExhausted)

	clock.Set(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-04", l.CurrentPeriod().String())

	remaining, err := l.RemainingAllowance(ctx, "a", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 10, remaining)

	s, err := l.ReceivedSummary(ctx, "b", "g")
	require.NoError(t, err)
	assert.Zero(t, s.Count)

	board, err := l.Leaderboard(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, board)

	rows, err := l.MonthlyGrants(ctx, "g", 2024, time.March)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestPeriodFollowsLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	clock := period.NewFixed(time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC))
	l := kudos.New(memory.New(memory.WithClock(clock)), kudos.WithClock(clock), kudos.WithLocation(berlin))

	assert.Equal(t, "2024-04", l.CurrentPeriod().String())
	assert.Equal(t, berlin, l.Location())
}

func TestEndToEnd(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	in := input("A", "B", "G")
	in.Message = grant.Provided("Great work")

	require.NoError(t, l.Validate(ctx, in.Candidate(true)))
	g, err := l.RecordGrant(ctx, in)
	require.NoError(t, err)

	remaining, err := l.RemainingAllowance(ctx, "A", "G")
	require.NoError(t, err)
	assert.EqualValues(t, 9, remaining)

	s, err := l.ReceivedSummary(ctx, "B", "G")
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Count)
	assert.Equal(t, []grant.Recognition{{SenderDisplayName: "name-A", Message: "Great work", CreatedAt: g.CreatedAt}}, s.Recent)

	board, err := l.Leaderboard(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, []kudos.LeaderboardEntry{{RecipientID: "B", RecipientDisplayName: "name-B", Count: 1}}, board)
}

func TestMonthlyGrants(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	clock.Set(time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC))
	record(t, l, clock, input("a", "b", "g"))
	clock.Set(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	first := record(t, l, clock, input("a", "b", "g"))
	second := record(t, l, clock, input("a", "c", "g"))
	record(t, l, clock, input("a", "c", "other"))
	clock.Set(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	record(t, l, clock, input("a", "b", "g"))

	rows, err := l.MonthlyGrants(ctx, "g", 2024, time.March)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)

	_, err = l.MonthlyGrants(ctx, "g", 2024, 13)
	assert.ErrorIs(t, err, kudos.ErrInvalidInput)
	_, err = l.MonthlyGrants(ctx, "", 2024, time.March)
	assert.ErrorIs(t, err, kudos.ErrInvalidInput)
}

func TestGive(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	res, err := l.Give(ctx, input("a", "b", "g"), true)
	require.NoError(t, err)
	assert.EqualValues(t, 9, res.Remaining)
	assert.Equal(t, "b", res.Grant.RecipientID)

	_, err = l.Give(ctx, input("a", "a", "g"), true)
	assert.ErrorIs(t, err, kudos.ErrSelfGrant)

	_, err = l.Give(ctx, input("a", "bot", "g"), false)
	assert.ErrorIs(t, err, kudos.ErrIneligibleRecipient)

	long := input("a", "b", "g")
	long.Message = grant.Provided(strings.Repeat("x", 501))
	_, err = l.Give(ctx, long, true)
	assert.ErrorIs(t, err, kudos.ErrMessageTooLong)

	remaining, err := l.RemainingAllowance(ctx, "a", "g")
	require.NoError(t, err)
	assert.EqualValues(t, 9, remaining)
}

func TestGiveConcurrentNeverExceedsLimit(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	const callers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Give(ctx, input("a", fmt.Sprintf("r%d", i), "g"), true)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, kudos.ErrQuotaExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int(kudos.DefaultMonthlyLimit), succeeded)
	assert.Equal(t, callers-int(kudos.DefaultMonthlyLimit), exhausted)

	n, err := l.Store().CountGrants(ctx, grant.Filter{SenderID: "a", GroupID: "g"})
	require.NoError(t, err)
	assert.Equal(t, kudos.DefaultMonthlyLimit, n)
}

// ──────────────────────────────────────────────────
// Store failures and plugins
// ──────────────────────────────────────────────────

var errBackend = errors.New("connection reset")

type brokenStore struct{}

func (brokenStore) InsertGrant(context.Context, *grant.Grant) error { return errBackend }
func (brokenStore) CountGrants(context.Context, grant.Filter) (int64, error) {
	return 0, errBackend
}
func (brokenStore) QueryGrants(context.Context, grant.Filter) ([]*grant.Grant, error) {
	return nil, errBackend
}
func (brokenStore) Migrate(context.Context) error { return errBackend }
func (brokenStore) Ping(context.Context) error    { return errBackend }
func (brokenStore) Close() error                  { return nil }

func TestStoreFailuresArePersistenceErrors(t *testing.T) {
	l := kudos.New(brokenStore{})
	ctx := context.Background()

	checks := map[string]error{}
	checks["start"] = l.Start(ctx)
	_, checks["remaining"] = l.RemainingAllowance(ctx, "a", "g")
	checks["validate"] = l.Validate(ctx, grant.Candidate{SenderID: "a", RecipientID: "b", GroupID: "g", RecipientEligible: true})
	_, checks["record"] = l.RecordGrant(ctx, input("a", "b", "g"))
	_, checks["summary"] = l.ReceivedSummary(ctx, "b", "g")
	_, checks["leaderboard"] = l.Leaderboard(ctx, "g")
	_, checks["monthly"] = l.MonthlyGrants(ctx, "g", 2024, time.March)
	_, checks["give"] = l.Give(ctx, input("a", "b", "g"), true)

	for name, err := range checks {
		t.Run(name, func(t *testing.T) {
			require.Error(t, err)
			assert.True(t, kudos.IsPersistence(err))
			assert.False(t, kudos.IsRejection(err))
			assert.ErrorIs(t, err, errBackend)

			var pe *kudos.PersistenceError
			require.ErrorAs(t, err, &pe)
			assert.NotEmpty(t, pe.Op)
		})
	}
}

func TestWithoutMigrateSkipsSchemaOnly(t *testing.T) {
	l := kudos.New(brokenStore{}, kudos.WithoutMigrate())
	require.NoError(t, l.Start(context.Background()))

	_, err := l.RemainingAllowance(context.Background(), "a", "g")
	assert.ErrorIs(t, err, errBackend)
}

type failingNotifier struct {
	mu       sync.Mutex
	recorded []*grant.Grant
	rejected []error
	exhaust  int
}

func (n *failingNotifier) Name() string { return "failing-notifier" }

func (n *failingNotifier) OnGrantRecorded(_ context.Context, g *grant.Grant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recorded = append(n.recorded, g)
	return errors.New("recipient has direct messages disabled")
}

func (n *failingNotifier) OnGrantRejected(_ context.Context, _ grant.Candidate, reason error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, reason)
	return nil
}

func (n *failingNotifier) OnQuotaExhausted(context.Context, string, string, int64, int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.exhaust++
	return nil
}

func TestPluginFailureDoesNotFailRecordGrant(t *testing.T) {
	n := &failingNotifier{}
	l, clock := newLedger(t, kudos.WithPlugin(n), kudos.WithMonthlyLimit(1))
	ctx := context.Background()

	g := record(t, l, clock, input("a", "b", "g"))
	require.Len(t, n.recorded, 1)
	assert.Equal(t, g.ID, n.recorded[0].ID)

	require.ErrorIs(t, l.Validate(ctx, input("a", "a", "g").Candidate(true)), kudos.ErrSelfGrant)
	require.ErrorIs(t, l.Validate(ctx, input("a", "b", "g").Candidate(true)), kudos.ErrQuotaExhausted)

	assert.Equal(t, []error{kudos.ErrSelfGrant, kudos.ErrQuotaExhausted}, n.rejected)
	assert.Equal(t, 1, n.exhaust)
}
