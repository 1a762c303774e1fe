package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
)

// scripted replays a fixed sequence of values, one per Sample call.
func scripted(values ...float64) ports.MeasurementSource {
	i := 0
	return ports.MeasurementFunc(func(ctx context.Context) (domain.Measurement, error) {
		if i >= len(values) {
			return domain.Measurement{}, errors.New("script exhausted")
		}
		m := domain.Measurement{Value: values[i], Unit: "%", Label: "conversion", TakenAt: time.Now()}
		i++
		return m, nil
	})
}

func TestControllerThresholdConvergesAtThirdSample(t *testing.T) {
	src := scripted(10, 40, 85, 90)
	ctrl := New(src, Threshold{Target: 80}, WithInterval(0))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusConverged, out.Status)
	assert.Equal(t, 3, out.Iterations)
	require.Len(t, out.History, 3)
	assert.Equal(t, 85.0, out.History[2].Value)
}

func TestControllerConsecutiveThreshold(t *testing.T) {
	// A single spike above target must not converge when three
	// consecutive samples are required.
	src := scripted(82, 70, 81, 83, 85)
	ctrl := New(src, Threshold{Target: 80, Consecutive: 3}, WithInterval(0))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusConverged, out.Status)
	assert.Equal(t, 5, out.Iterations)
}

func TestControllerTimeoutReported(t *testing.T) {
	now := time.Now()
	clock := func() time.Time {
		now = now.Add(10 * time.Minute)
		return now
	}
	src := scripted(10, 12, 11, 13, 12, 11, 10, 12)
	ctrl := New(src, Threshold{Target: 80},
		WithInterval(0), WithCeiling(time.Hour), withClock(clock))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusTimeout, out.Status)
	assert.NotZero(t, out.Iterations)
	assert.Nil(t, out.Cause)
}

func TestControllerMeasurementErrorStopsLoop(t *testing.T) {
	boom := errors.New("spectrometer offline")
	calls := 0
	src := ports.MeasurementFunc(func(ctx context.Context) (domain.Measurement, error) {
		calls++
		if calls < 3 {
			return domain.Measurement{Value: 10}, nil
		}
		return domain.Measurement{}, boom
	})
	ctrl := New(src, Threshold{Target: 80}, WithInterval(0))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusError, out.Status)
	assert.ErrorIs(t, out.Cause, boom)
	assert.Equal(t, 2, out.Iterations)
}

func TestControllerAbortBetweenIterations(t *testing.T) {
	abort := make(chan struct{})
	close(abort)
	src := scripted(10, 20, 30)
	ctrl := New(src, Threshold{Target: 80},
		WithInterval(time.Millisecond), WithAbort(abort))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusAborted, out.Status)
	assert.Zero(t, out.Iterations)
}

func TestControllerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := New(scripted(10), Threshold{Target: 80}, WithInterval(time.Millisecond))

	out := ctrl.Run(ctx)

	assert.Equal(t, StatusError, out.Status)
	assert.ErrorIs(t, out.Cause, context.Canceled)
}

func TestControllerSampleHook(t *testing.T) {
	var seen []float64
	src := scripted(10, 90)
	ctrl := New(src, Threshold{Target: 80}, WithInterval(0),
		WithSampleHook(func(m domain.Measurement, n int) {
			seen = append(seen, m.Value)
		}))

	out := ctrl.Run(context.Background())

	assert.Equal(t, StatusConverged, out.Status)
	assert.Equal(t, []float64{10, 90}, seen)
}

func TestNoiseConvergence(t *testing.T) {
	crit := NoiseConvergence{Window: 3, MaxVariance: 1.0}

	hist := func(values ...float64) []domain.Measurement {
		ms := make([]domain.Measurement, len(values))
		for i, v := range values {
			ms[i] = domain.Measurement{Value: v}
		}
		return ms
	}

	assert.False(t, crit.Evaluate(hist(50, 49)), "too few samples")
	assert.False(t, crit.Evaluate(hist(50, 30, 10)), "still decaying")
	assert.True(t, crit.Evaluate(hist(50, 30, 10, 9.5, 9.4, 9.6)), "settled tail")
}

func TestTimeBound(t *testing.T) {
	crit := TimeBound{Duration: time.Hour}
	base := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	early := []domain.Measurement{
		{TakenAt: base},
		{TakenAt: base.Add(20 * time.Minute)},
	}
	late := append(early, domain.Measurement{TakenAt: base.Add(61 * time.Minute)})

	assert.False(t, crit.Evaluate(early))
	assert.True(t, crit.Evaluate(late))
}
