package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/plugin"
)

type recorder struct {
	name     string
	recorded atomic.Int32
	rejected atomic.Int32
	err      error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnGrantRecorded(_ context.Context, g *grant.Grant) error {
	g.Message = "mutated by plugin"
	r.recorded.Add(1)
	return r.err
}

func (r *recorder) OnGrantRejected(_ context.Context, _ grant.Candidate, _ error) error {
	r.rejected.Add(1)
	return r.err
}

type sleeper struct{}

func (sleeper) Name() string { return "sleeper" }

func (sleeper) OnGrantRecorded(ctx context.Context, _ *grant.Grant) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

type panicker struct{}

func (panicker) Name() string { return "panicker" }

func (panicker) OnQuotaExhausted(context.Context, string, string, int64, int64) error {
	panic("boom")
}

func TestRegisterDuplicate(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
	assert.Len(t, r.List(), 1)
}

func TestEmitDispatchesByInterface(t *testing.T) {
	r := plugin.NewRegistry()
	a := &recorder{name: "a"}
	b := &recorder{name: "b", err: errors.New("notify failed")}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	g := &grant.Grant{Message: "original"}
	r.EmitGrantRecorded(context.Background(), g)
	r.EmitGrantRejected(context.Background(), grant.Candidate{}, errors.New("no"))

	assert.EqualValues(t, 1, a.recorded.Load())
	assert.EqualValues(t, 1, b.recorded.Load())
	assert.EqualValues(t, 1, a.rejected.Load())
	assert.Equal(t, "original", g.Message, "plugins receive copies")
}

func TestEmitTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(sleeper{}))

	start := time.Now()
	r.EmitGrantRecorded(context.Background(), &grant.Grant{})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestEmitRecoversPanic(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(panicker{}))

	assert.NotPanics(t, func() {
		r.EmitQuotaExhausted(context.Background(), "s", "g", 10, 10)
	})
}
