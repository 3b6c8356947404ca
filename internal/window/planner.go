package window

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"spectrumlabel/internal/series"
)

// Rejection says why a candidate window was discarded.
type Rejection int

const (
	// Accepted means the candidate passed every check.
	Accepted Rejection = iota
	// RejectNoSamples means the candidate ends at or before the first sample or starts
	// at or after the last one.
	RejectNoSamples
	// RejectStart means the first row is too far from the cursor.
	RejectStart
	// RejectEnd means the last row is too far from cursor + duration.
	RejectEnd
	// RejectSpan means the realized span is too short.
	RejectSpan
)

func (r Rejection) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectNoSamples:
		return "no_samples"
	case RejectStart:
		return "start_gap"
	case RejectEnd:
		return "end_gap"
	case RejectSpan:
		return "short_span"
	default:
		return "unknown"
	}
}

// Observer is notified of planner decisions.
type Observer interface {
	WindowAccepted(w Window)
	WindowRejected(cursor float64, reason Rejection)
}

// Stats counts planner decisions so far.
type Stats struct {
	Accepted int
	Rejected int
	ByReason map[Rejection]int
}

// Planner hands out windows in strictly increasing time order.
type Planner struct {
	idx      *series.TimeIndex
	cfg      Config
	rng      *rand.Rand
	cursor   float64
	limit    float64
	done     bool
	stats    Stats
	observer Observer
	log      *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithObserver reports every decision to o.
func WithObserver(o Observer) Option {
	return func(p *Planner) { p.observer = o }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// NewPlanner creates a planner over idx. The first cursor position is the
// first timestamp plus one random skip.
func NewPlanner(idx *series.TimeIndex, cfg Config, opts ...Option) (*Planner, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Planner{
		idx:   idx,
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		limit: idx.Last() - 2*cfg.Duration,
		stats: Stats{ByReason: make(map[Rejection]int)},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cursor = idx.First() + p.skip()
	return p, nil
}

// skip draws a forward skip uniformly from [SkipMin, SkipMax].
func (p *Planner) skip() float64 {
	return float64(p.cfg.SkipMin + p.rng.IntN(p.cfg.SkipMax-p.cfg.SkipMin+1))
}

// Next returns the next accepted window. It returns false once the cursor has
// passed the last full window, which leaves any tail shorter than two window
// durations unreviewed.
func (p *Planner) Next() (Window, bool) {
	if p.done {
		return Window{}, false
	}
	for p.cursor < p.limit {
		w, reason := Evaluate(p.idx, p.cfg, p.cursor)
		if reason != Accepted {
			p.stats.Rejected++
			p.stats.ByReason[reason]++
			p.log.Debug("window rejected",
				"window_start", p.cursor,
				"reason", reason.String(),
			)
			if p.observer != nil {
				p.observer.WindowRejected(p.cursor, reason)
			}
			p.cursor += p.skip()
			continue
		}

		p.stats.Accepted++
		if p.observer != nil {
			p.observer.WindowAccepted(w)
		}
		p.cursor += p.cfg.Duration + p.skip()
		return w, true
	}
	p.done = true
	return Window{}, false
}

// Cursor returns the start time of the next candidate.
func (p *Planner) Cursor() float64 {
	return p.cursor
}

// RemainingWindows estimates how many more windows Next can return, assuming
// every remaining candidate is accepted and skips average out.
func (p *Planner) RemainingWindows() int {
	if p.done || p.cursor >= p.limit {
		return 0
	}
	step := p.cfg.Duration + float64(p.cfg.SkipMin+p.cfg.SkipMax)/2
	return int(math.Ceil((p.limit - p.cursor) / step))
}

// Stats returns a copy of the decision counters.
func (p *Planner) Stats() Stats {
	out := Stats{
		Accepted: p.stats.Accepted,
		Rejected: p.stats.Rejected,
		ByReason: make(map[Rejection]int, len(p.stats.ByReason)),
	}
	for k, v := range p.stats.ByReason {
		out.ByReason[k] = v
	}
	return out
}

// Evaluate realizes the candidate window starting at start and checks it
// against the tolerances in cfg.
func Evaluate(idx *series.TimeIndex, cfg Config, start float64) (Window, Rejection) {
	end := start + cfg.Duration
	si := idx.LowerBound(start)
	ei := idx.UpperBound(end)
	if si >= idx.Len() || ei < 0 {
		return Window{}, RejectNoSamples
	}

	// si > ei means the candidate lies inside a sampling gap: the first sample
	// after start is already past end, so it counts as a start gap.
	ts, te := idx.At(si), idx.At(ei)
	switch {
	case si > ei || math.Abs(start-ts) > cfg.Duration*cfg.StartTolerance:
		return Window{}, RejectStart
	case math.Abs(end-te) > cfg.Duration*cfg.EndTolerance:
		return Window{}, RejectEnd
	case math.Abs(ts-te) < cfg.Duration*cfg.MinSpan:
		return Window{}, RejectSpan
	}

	return Window{StartIndex: si, EndIndex: ei, StartTime: ts, EndTime: te}, Accepted
}

// Plan runs a planner to exhaustion and returns every window.
func Plan(idx *series.TimeIndex, cfg Config, opts ...Option) ([]Window, Stats, error) {
	p, err := NewPlanner(idx, cfg, opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	var out []Window
	for {
		w, ok := p.Next()
		if !ok {
			break
		}
		out = append(out, w)
	}
	return out, p.Stats(), nil
}
