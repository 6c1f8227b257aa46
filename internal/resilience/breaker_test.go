package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/resilience"
)

func TestBreakerMetricsFollowTransitions(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := resilience.NewBreaker(1, 0.5, time.Minute).
		WithClock(func() time.Time { return now }).
		WithTarget("prodigi")
	ctx := context.Background()
	gauge := func() float64 { return testutil.ToFloat64(resilience.BreakerState.WithLabelValues("prodigi")) }

	require.Equal(t, 0.0, gauge())
	b.Report(ctx, false)
	require.Equal(t, 1.0, gauge())

	now = now.Add(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, gauge())
	b.Report(ctx, true)
	require.Equal(t, 0.0, gauge())

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("prodigi")))
	for _, tr := range [][2]string{{"closed", "open"}, {"open", "half_open"}, {"half_open", "closed"}} {
		require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("prodigi", tr[0], tr[1])), tr)
	}
}

func TestBreakerAdmitsSingleProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := resilience.NewBreaker(1, 0.5, time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())

	now = now.Add(time.Second)
	require.True(t, b.Allow(ctx))
	require.False(t, b.Allow(ctx), "second caller must wait for the probe")

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerOldSuccessesAgeOut(t *testing.T) {
	b := resilience.NewBreaker(4, 0.5, time.Minute)
	ctx := context.Background()

	// the window holds the last 8 outcomes
	for range 8 {
		b.Report(ctx, true)
	}
	for range 3 {
		b.Report(ctx, false)
	}
	require.Equal(t, resilience.Closed, b.State())
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
}
