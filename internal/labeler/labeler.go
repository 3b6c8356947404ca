// Package labeler runs the labeling loop: it loads a recording, plans windows,
// hands each one to a Presenter for annotation and commits the results to the
// label file and the journal.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/config"
	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/logging"
	"spectrumlabel/internal/metrics"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/store"
	"spectrumlabel/internal/window"
)

// ErrUnfinished is returned when a presenter returns while a drag is still open.
var ErrUnfinished = errors.New("labeler: window left with a drag in progress")

// View is everything a presenter needs to display one window.
type View struct {
	// Recording is the path of the recording being labeled.
	Recording string
	// Ordinal is the window's position in the plan, starting at 0.
	Ordinal int
	Window  window.Window
	// Rows are the window's measurement rows, oldest first.
	Rows [][]float64
	// Min and Max are the recording-wide extremes for color scaling.
	Min, Max float64
	// Remaining estimates how many windows are left after this one.
	Remaining int
	Summary   store.Summary
}

// Presenter shows a window and drives the annotator until the user is done.
// Returning nil commits the window; returning an error stops the run.
type Presenter interface {
	Annotate(ctx context.Context, v View, a *Annotator) error
}

// Options configures a Labeler.
type Options struct {
	Planner window.Config
	Load    series.LoadOptions

	OutputDir string
	Prefix    string
	// FlushEachWindow rewrites the label file after every committed window.
	FlushEachWindow bool

	// Journal enables resume. Nil disables it.
	Journal *store.Store
	// Metrics may be nil.
	Metrics *metrics.LabelerMetrics
	// Logger defaults to logging.Default().
	Logger *logging.Logger
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Planner:         cfg.WindowConfig(),
		Load:            cfg.LoadOptions(),
		OutputDir:       cfg.Output.Directory,
		Prefix:          cfg.Output.Prefix,
		FlushEachWindow: cfg.Output.Flush == config.FlushWindow,
	}
}

// Result summarizes a labeled recording.
type Result struct {
	Recording string
	Output    string
	RunID     string
	Windows   int
	Resumed   int
	Events    int
	Stats     window.Stats
}

// Labeler labels recordings one after another.
type Labeler struct {
	opts      Options
	presenter Presenter
	log       *logging.Logger
}

// New creates a Labeler.
func New(p Presenter, opts Options) (*Labeler, error) {
	if p == nil {
		return nil, errors.New("labeler: nil presenter")
	}
	if err := opts.Planner.Validate(); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "out_"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Labeler{opts: opts, presenter: p, log: log}, nil
}

// Run labels each recording in order and stops at the first error.
func (l *Labeler) Run(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		res, err := l.RunFile(ctx, p)
		if err != nil {
			return results, fmt.Errorf("%s: %w", p, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunFile labels a single recording.
func (l *Labeler) RunFile(ctx context.Context, path string) (Result, error) {
	res := Result{
		Recording: path,
		Output:    labels.OutputPath(l.opts.OutputDir, l.opts.Prefix, path),
	}
	log := l.log.With("recording", path)

	log.Info("loading recording")
	started := time.Now()
	s, err := series.Load(ctx, path, l.opts.Load)
	if err != nil {
		return res, err
	}
	defer s.Close()
	log.Info("recording loaded",
		"samples", s.Len(),
		"channels", s.Channels,
		"min", s.Min,
		"max", s.Max,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	j, err := l.openJournal(path, s)
	if err != nil {
		return res, err
	}
	if j != nil {
		res.RunID = j.run.ID
		ctx = logging.ContextWithRunID(ctx, j.run.ID)
		log = l.log.WithContext(ctx).With("recording", path)
	}

	err = l.label(ctx, s, j, &res, log)
	if j != nil {
		status := store.RunComplete
		if err != nil {
			status = store.RunAborted
		}
		if ferr := l.opts.Journal.FinishRun(j.run.ID, status); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return res, err
	}

	log.Info("recording done",
		"windows", res.Windows,
		"resumed", res.Resumed,
		"events", res.Events,
		"rejected", res.Stats.Rejected,
		"output", res.Output,
	)
	return res, nil
}

// ResumeKey names the window sequence journaled for a recording. origin is the
// recording's first timestamp; it changes with the time layout and zone, and
// with it every window time.
func ResumeKey(planner window.Config, origin float64) string {
	return fmt.Sprintf("%s origin=%.6f", planner.Key(), origin)
}

type journal struct {
	datasetID int64
	run       *store.Run
	committed map[int]store.WindowRecord
}

func (l *Labeler) openJournal(path string, s *series.Series) (*journal, error) {
	if l.opts.Journal == nil {
		return nil, nil
	}
	fp, err := store.FingerprintFile(path)
	if err != nil {
		return nil, err
	}
	idx := s.Index()
	dsID, err := l.opts.Journal.UpsertDataset(&store.Dataset{
		Fingerprint: fp,
		Path:        path,
		Samples:     s.Len(),
		Channels:    s.Channels,
		FirstTime:   idx.First(),
		LastTime:    idx.Last(),
		Min:         s.Min,
		Max:         s.Max,
	})
	if err != nil {
		return nil, err
	}

	key := ResumeKey(l.opts.Planner, idx.First())
	prior, err := l.opts.Journal.CommittedWindows(dsID, key)
	if err != nil {
		return nil, err
	}
	run, err := l.opts.Journal.BeginRun(dsID, key)
	if err != nil {
		return nil, err
	}

	j := &journal{datasetID: dsID, run: run, committed: make(map[int]store.WindowRecord, len(prior))}
	for _, w := range prior {
		j.committed[w.Window.StartIndex] = w
	}
	return j, nil
}

func (l *Labeler) label(ctx context.Context, s *series.Series, j *journal, res *Result, log *slog.Logger) error {
	idx := s.Index()
	popts := []window.Option{window.WithLogger(log)}
	if l.opts.Metrics != nil {
		popts = append(popts, window.WithObserver(l.opts.Metrics.PlannerObserver(res.Recording)))
	}
	planner, err := window.NewPlanner(idx, l.opts.Planner, popts...)
	if err != nil {
		return err
	}

	committed := labels.NewStore()
	for ordinal := 0; ; ordinal++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, ok := planner.Next()
		if !ok {
			break
		}
		res.Stats = planner.Stats()

		if j != nil {
			if prev, ok := j.committed[w.StartIndex]; ok && prev.Window.EndIndex == w.EndIndex {
				if err := committed.Commit(w, prev.Records); err != nil {
					return err
				}
				res.Resumed++
				res.Events += len(prev.Records)
				if l.opts.Metrics != nil {
					l.opts.Metrics.RecordResumed()
				}
				log.Debug("window already labeled", "ordinal", ordinal, "window", w.String())
				continue
			}
		}

		records, summary, elapsed, err := l.present(ctx, s, w, ordinal, planner.RemainingWindows(), log)
		if err != nil {
			return err
		}
		if err := committed.Commit(w, records); err != nil {
			return err
		}
		if j != nil {
			if _, err := l.opts.Journal.CommitWindow(&store.WindowRecord{
				DatasetID:  j.datasetID,
				PlannerKey: j.run.PlannerKey,
				RunID:      j.run.ID,
				Ordinal:    ordinal,
				Window:     w,
				Summary:    summary,
				Records:    records,
			}); err != nil {
				return err
			}
		}
		res.Windows++
		res.Events += len(records)
		if l.opts.Metrics != nil {
			l.opts.Metrics.RecordWindow(len(records), elapsed)
			l.opts.Metrics.SetRemaining(planner.RemainingWindows())
		}
		log.Info("window committed",
			"ordinal", ordinal,
			"window_start", w.StartTime,
			"start_index", w.StartIndex,
			"events", len(records),
			"seconds_left", idx.Last()-w.StartTime,
		)

		if l.opts.FlushEachWindow {
			if err := labels.WriteFile(res.Output, committed.Entries()); err != nil {
				return err
			}
		}
	}
	res.Stats = planner.Stats()
	log.Info("no more windows", "accepted", res.Stats.Accepted, "rejected", res.Stats.Rejected)

	if committed.Len() == 0 {
		log.Warn("recording produced no windows")
	}
	return labels.WriteFile(res.Output, committed.Entries())
}

func (l *Labeler) present(ctx context.Context, s *series.Series, w window.Window, ordinal, remaining int, log *slog.Logger) ([]labels.Record, store.Summary, time.Duration, error) {
	rows, err := s.Matrix.Read(w.StartIndex, w.EndIndex)
	if err != nil {
		return nil, store.Summary{}, 0, err
	}
	summary := Summarize(rows)
	idx := s.Index()

	sopts := []annotation.SessionOption{
		annotation.WithTimestamps(idx.At),
		annotation.WithLogger(log),
	}
	if ov, ok := l.presenter.(annotation.Overlay); ok {
		sopts = append(sopts, annotation.WithOverlay(ov))
	}
	session := annotation.NewSession(annotation.Bounds{
		Offset:   w.StartIndex,
		Rows:     w.Rows(),
		Channels: s.Channels,
	}, sopts...)
	a := &Annotator{Session: session, metrics: l.opts.Metrics}

	view := View{
		Recording: s.Path,
		Ordinal:   ordinal,
		Window:    w,
		Rows:      rows,
		Min:       s.Min,
		Max:       s.Max,
		Remaining: remaining,
		Summary:   summary,
	}
	log.Info("presenting window",
		"ordinal", ordinal,
		"window", w.String(),
		"seconds_per_row", w.SecondsPerRow(),
		"remaining", remaining,
	)

	started := time.Now()
	if err := l.presenter.Annotate(ctx, view, a); err != nil {
		return nil, summary, 0, err
	}
	elapsed := time.Since(started)

	events, err := a.Done()
	if err != nil {
		if errors.Is(err, annotation.ErrDragInProgress) {
			return nil, summary, 0, ErrUnfinished
		}
		return nil, summary, 0, err
	}
	records, err := labels.Resolve(events, idx)
	if err != nil {
		return nil, summary, 0, err
	}
	return records, summary, elapsed, nil
}
