package window

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/series"
)

func uniformIndex(n int, step float64) *series.TimeIndex {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * step
	}
	return series.NewTimeIndex(ts)
}

func fixedSkip(d float64, skip int) Config {
	cfg := DefaultConfig()
	cfg.Duration = d
	cfg.SkipMin = skip
	cfg.SkipMax = skip
	return cfg
}

func TestPlannerUniformScenario(t *testing.T) {
	windows, stats, err := Plan(uniformIndex(100, 1), fixedSkip(10, 5))
	require.NoError(t, err)

	require.Len(t, windows, 5)
	assert.Equal(t, Window{StartIndex: 6, EndIndex: 14, StartTime: 6, EndTime: 14}, windows[0])
	assert.Equal(t, Window{StartIndex: 21, EndIndex: 29, StartTime: 21, EndTime: 29}, windows[1])
	assert.Equal(t, 5, stats.Accepted)
	assert.Zero(t, stats.Rejected)
}

func TestPlannerDeterminism(t *testing.T) {
	idx := uniformIndex(20000, 0.5)
	cfg := DefaultConfig()

	first, _, err := Plan(idx, cfg)
	require.NoError(t, err)
	second, _, err := Plan(idx, cfg)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	cfg.Seed = 7
	third, _, err := Plan(idx, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestPlannerMonotonic(t *testing.T) {
	windows, _, err := Plan(uniformIndex(50000, 0.37), DefaultConfig())
	require.NoError(t, err)
	require.Greater(t, len(windows), 2)

	for i := 1; i < len(windows); i++ {
		assert.Greater(t, windows[i].StartTime, windows[i-1].StartTime)
		assert.Greater(t, windows[i].StartIndex, windows[i-1].EndIndex)
	}
}

func TestPlannerNoTailWindow(t *testing.T) {
	idx := uniformIndex(100, 1)
	cfg := fixedSkip(10, 5)
	windows, _, err := Plan(idx, cfg)
	require.NoError(t, err)

	limit := idx.Last() - 2*cfg.Duration
	for _, w := range windows {
		assert.LessOrEqual(t, w.StartTime, limit+cfg.Duration*cfg.StartTolerance)
	}
}

func TestEvaluate(t *testing.T) {
	gapped := []float64{}
	for i := 0; i < 50; i++ {
		gapped = append(gapped, float64(i))
	}
	for i := 100; i < 200; i++ {
		gapped = append(gapped, float64(i))
	}

	loose := fixedSkip(10, 5)
	loose.StartTolerance = 0.5
	loose.EndTolerance = 0.5

	exact := fixedSkip(10, 5)
	exact.StartTolerance = 1
	exact.EndTolerance = 1

	tests := []struct {
		name  string
		ts    []float64
		cfg   Config
		start float64
		want  Rejection
	}{
		{"contiguous", gapped, fixedSkip(10, 5), 10, Accepted},
		{"gap after start", gapped, fixedSkip(10, 5), 45, RejectEnd},
		{"gap before start", gapped, fixedSkip(10, 5), 95, RejectStart},
		{"inside gap", []float64{0, 100, 101}, fixedSkip(10, 5), 20, RejectStart},
		{"inside gap loose", []float64{0, 20, 30, 100}, exact, 20, RejectStart},
		{"past last sample", []float64{0, 100, 101}, fixedSkip(10, 5), 101, RejectNoSamples},
		{"before first sample", []float64{100, 101}, fixedSkip(10, 5), 50, RejectNoSamples},
		{"short span", []float64{0, 10, 14, 100}, loose, 9, RejectSpan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Evaluate(series.NewTimeIndex(tt.ts), tt.cfg, tt.start)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

// TestPlannerToleranceProperty builds series with random sampling gaps and
// checks that every accepted window satisfies the tolerance formulas, and that
// Evaluate agrees with a direct computation for random cursors.
func TestPlannerToleranceProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 25; trial++ {
		ts := make([]float64, 0, 6000)
		now := 0.0
		for len(ts) < cap(ts) {
			ts = append(ts, now)
			if rng.Float64() < 0.01 {
				now += rng.Float64() * 120
			} else {
				now += 0.2 + rng.Float64()
			}
		}
		idx := series.NewTimeIndex(ts)
		cfg := DefaultConfig()
		cfg.SkipMin, cfg.SkipMax = 20, 90
		cfg.Seed = uint64(trial)

		windows, _, err := Plan(idx, cfg)
		require.NoError(t, err)

		for _, w := range windows {
			assert.LessOrEqual(t, w.StartIndex, w.EndIndex)
			assert.Equal(t, ts[w.StartIndex], w.StartTime)
			assert.Equal(t, ts[w.EndIndex], w.EndTime)
			assert.GreaterOrEqual(t, math.Abs(w.StartTime-w.EndTime), cfg.Duration*cfg.MinSpan)
		}

		for i := 0; i < 200; i++ {
			start := rng.Float64() * ts[len(ts)-1]
			w, reason := Evaluate(idx, cfg, start)
			si := idx.LowerBound(start)
			ei := idx.UpperBound(start + cfg.Duration)
			if reason != Accepted {
				continue
			}
			assert.Equal(t, si, w.StartIndex)
			assert.Equal(t, ei, w.EndIndex)
			assert.LessOrEqual(t, math.Abs(start-ts[si]), cfg.Duration/4)
			assert.LessOrEqual(t, math.Abs(start+cfg.Duration-ts[ei]), cfg.Duration/4)
			assert.GreaterOrEqual(t, math.Abs(ts[si]-ts[ei]), cfg.Duration/2)
		}
	}
}

type recordingObserver struct {
	accepted []Window
	rejected map[Rejection]int
}

func (o *recordingObserver) WindowAccepted(w Window) { o.accepted = append(o.accepted, w) }

func (o *recordingObserver) WindowRejected(_ float64, r Rejection) {
	if o.rejected == nil {
		o.rejected = make(map[Rejection]int)
	}
	o.rejected[r]++
}

func TestPlannerObserver(t *testing.T) {
	// one-second sampling with a one-minute outage every 250 samples
	ts := make([]float64, 0, 3000)
	now := 0.0
	for i := 0; i < 3000; i++ {
		ts = append(ts, now)
		now++
		if i%250 == 249 {
			now += 60
		}
	}

	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.SkipMin, cfg.SkipMax = 10, 40

	windows, stats, err := Plan(series.NewTimeIndex(ts), cfg, WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, windows, obs.accepted)
	assert.Equal(t, stats.Accepted, len(obs.accepted))

	total := 0
	for r, n := range obs.rejected {
		assert.Equal(t, stats.ByReason[r], n)
		total += n
	}
	assert.Equal(t, stats.Rejected, total)
}

func TestPlannerSamplingGap(t *testing.T) {
	ts := make([]float64, 0, 150)
	for i := 0; i < 50; i++ {
		ts = append(ts, float64(i))
	}
	for i := 200; i < 300; i++ {
		ts = append(ts, float64(i))
	}

	windows, stats, err := Plan(series.NewTimeIndex(ts), fixedSkip(10, 5))
	require.NoError(t, err)

	require.Len(t, windows, 9)
	assert.Equal(t, 30, stats.Rejected)
	assert.Equal(t, 30, stats.ByReason[RejectStart])
	assert.Zero(t, stats.ByReason[RejectNoSamples])
	assert.Equal(t, 201.0, windows[3].StartTime)
	assert.Equal(t, 51, windows[3].StartIndex)
}

func TestPlannerExhausted(t *testing.T) {
	// limit 24-20=4 is below the first cursor at 5
	p, err := NewPlanner(uniformIndex(25, 1), fixedSkip(10, 5))
	require.NoError(t, err)

	_, ok := p.Next()
	assert.False(t, ok)
	_, ok = p.Next()
	assert.False(t, ok)
}

func TestPlannerRemainingWindows(t *testing.T) {
	p, err := NewPlanner(uniformIndex(100, 1), fixedSkip(10, 5))
	require.NoError(t, err)

	assert.Equal(t, 5, p.RemainingWindows())
	for want := 4; want >= 0; want-- {
		_, ok := p.Next()
		require.True(t, ok)
		assert.Equal(t, want, p.RemainingWindows())
	}
	_, ok := p.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, p.RemainingWindows())
}

func TestNewPlannerErrors(t *testing.T) {
	_, err := NewPlanner(series.NewTimeIndex(nil), DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = NewPlanner(uniformIndex(10, 1), Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero duration", func(c *Config) { c.Duration = 0 }, false},
		{"inverted skips", func(c *Config) { c.SkipMin, c.SkipMax = 10, 5 }, false},
		{"no progress", func(c *Config) { c.SkipMin, c.SkipMax = 0, 0 }, false},
		{"negative tolerance", func(c *Config) { c.StartTolerance = -1 }, false},
		{"tolerance above one", func(c *Config) { c.MinSpan = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestWindowHelpers(t *testing.T) {
	w := Window{StartIndex: 10, EndIndex: 70, StartTime: 100, EndTime: 130}
	assert.Equal(t, 60, w.Rows())
	assert.Equal(t, 30.0, w.Span())
	assert.InDelta(t, 0.5, w.SecondsPerRow(), 1e-12)
	assert.Equal(t, DefaultConfig().Key(), DefaultConfig().Key())
}
