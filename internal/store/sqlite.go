package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"spectrumlabel/internal/labels"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrRunFinished is returned when committing to or finishing a closed run.
	ErrRunFinished = errors.New("store: run already finished")
)

// DefaultBusyTimeout is how long a connection waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Store represents the SQLite labeling journal.
type Store struct {
	db *sql.DB
}

// Option configures Open.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout overrides DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if err := ValidateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("validate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpsertDataset registers d by fingerprint and returns its ID. An existing
// dataset keeps its statistics but has its path refreshed.
func (s *Store) UpsertDataset(d *Dataset) (int64, error) {
	if d.Fingerprint == "" {
		return 0, fmt.Errorf("upsert dataset: empty fingerprint")
	}
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO datasets (fingerprint, path, samples, channels, first_time, last_time, min_value, max_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			path = excluded.path,
			first_time = excluded.first_time,
			last_time = excluded.last_time`,
		d.Fingerprint, d.Path, d.Samples, d.Channels, d.FirstTime, d.LastTime, d.Min, d.Max, created.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert dataset: %w", err)
	}

	var id int64
	if err := s.db.QueryRow("SELECT id FROM datasets WHERE fingerprint = ?", d.Fingerprint).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup dataset id: %w", err)
	}
	d.ID = id
	return id, nil
}

const datasetColumns = `id, fingerprint, path, samples, channels, first_time, last_time, min_value, max_value, created_at`

func scanDataset(row interface{ Scan(...any) error }) (*Dataset, error) {
	var d Dataset
	var created int64
	if err := row.Scan(&d.ID, &d.Fingerprint, &d.Path, &d.Samples, &d.Channels,
		&d.FirstTime, &d.LastTime, &d.Min, &d.Max, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(0, created)
	return &d, nil
}

// GetDataset looks a dataset up by fingerprint.
func (s *Store) GetDataset(fingerprint string) (*Dataset, error) {
	row := s.db.QueryRow("SELECT "+datasetColumns+" FROM datasets WHERE fingerprint = ?", fingerprint)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	return d, nil
}

// Datasets lists every known dataset, oldest first.
func (s *Store) Datasets() ([]Dataset, error) {
	rows, err := s.db.Query("SELECT " + datasetColumns + " FROM datasets ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// BeginRun opens a new run for the dataset and planner configuration.
func (s *Store) BeginRun(datasetID int64, plannerKey string) (*Run, error) {
	r := &Run{
		ID:         uuid.NewString(),
		DatasetID:  datasetID,
		PlannerKey: plannerKey,
		StartedAt:  time.Now(),
		Status:     RunActive,
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, dataset_id, planner_key, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.DatasetID, r.PlannerKey, r.StartedAt.UnixNano(), string(r.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// FinishRun closes an active run with the given terminal status.
func (s *Store) FinishRun(id string, status RunStatus) error {
	if status == RunActive {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}
	res, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, status = ?
		WHERE id = ? AND status = ?`,
		time.Now().UnixNano(), string(status), id, string(RunActive),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		if _, err := s.getRun(id); err != nil {
			return err
		}
		return ErrRunFinished
	}
	return nil
}

func (s *Store) getRun(id string) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	var status string
	err := s.db.QueryRow(`
		SELECT id, dataset_id, planner_key, started_at, finished_at, status
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.DatasetID, &r.PlannerKey, &started, &finished, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	r.Status = RunStatus(status)
	return &r, nil
}

// Runs lists the runs recorded against a dataset, oldest first.
func (s *Store) Runs(datasetID int64) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id FROM runs WHERE dataset_id = ? ORDER BY started_at, rowid`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.getRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// CommitWindow stores a window and its records atomically and returns the
// window row ID. The owning run must still be active.
func (s *Store) CommitWindow(w *WindowRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow("SELECT status FROM runs WHERE id = ?", w.RunID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("check run: %w", err)
	}
	if RunStatus(status) != RunActive {
		return 0, ErrRunFinished
	}

	committed := w.CommittedAt
	if committed.IsZero() {
		committed = time.Now()
	}

	res, err := tx.Exec(`
		INSERT INTO windows (dataset_id, planner_key, run_id, ordinal, start_index, end_index,
			start_time, end_time, committed_at, peak_channel, centroid, flatness, mean_power)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.DatasetID, w.PlannerKey, w.RunID, w.Ordinal,
		w.Window.StartIndex, w.Window.EndIndex, w.Window.StartTime, w.Window.EndTime,
		committed.UnixNano(),
		w.Summary.PeakChannel, w.Summary.Centroid, w.Summary.Flatness, w.Summary.MeanPower,
	)
	if err != nil {
		return 0, fmt.Errorf("insert window: %w", err)
	}
	windowID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("window id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (window_id, ordinal, start_channel, end_channel, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range w.Records {
		if _, err := stmt.Exec(windowID, i, r.StartChannel, r.EndChannel, r.StartTime, r.EndTime); err != nil {
			return 0, fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit window: %w", err)
	}
	w.ID = windowID
	w.CommittedAt = committed
	return windowID, nil
}

// CommittedWindows returns every window committed for a dataset under a
// planner configuration, across all runs, ordered by start time.
func (s *Store) CommittedWindows(datasetID int64, plannerKey string) ([]WindowRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, dataset_id, planner_key, run_id, ordinal, start_index, end_index,
			start_time, end_time, committed_at, peak_channel, centroid, flatness, mean_power
		FROM windows
		WHERE dataset_id = ? AND planner_key = ?
		ORDER BY start_time, id`, datasetID, plannerKey)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}

	var out []WindowRecord
	for rows.Next() {
		var w WindowRecord
		var committed int64
		if err := rows.Scan(&w.ID, &w.DatasetID, &w.PlannerKey, &w.RunID, &w.Ordinal,
			&w.Window.StartIndex, &w.Window.EndIndex, &w.Window.StartTime, &w.Window.EndTime,
			&committed, &w.Summary.PeakChannel, &w.Summary.Centroid, &w.Summary.Flatness, &w.Summary.MeanPower,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan window: %w", err)
		}
		w.CommittedAt = time.Unix(0, committed)
		out = append(out, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate windows: %w", err)
	}

	for i := range out {
		recs, err := s.windowRecords(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Records = recs
	}
	return out, nil
}

func (s *Store) windowRecords(windowID int64) ([]labels.Record, error) {
	rows, err := s.db.Query(`
		SELECT start_channel, end_channel, start_time, end_time
		FROM events WHERE window_id = ? ORDER BY ordinal`, windowID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	recs := []labels.Record{}
	for rows.Next() {
		var r labels.Record
		if err := rows.Scan(&r.StartChannel, &r.EndChannel, &r.StartTime, &r.EndTime); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Counts reports how many windows and events are journaled for a dataset.
func (s *Store) Counts(datasetID int64) (windows, events int, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE((
			SELECT COUNT(*) FROM events e JOIN windows w2 ON e.window_id = w2.id
			WHERE w2.dataset_id = ?), 0)
		FROM windows WHERE dataset_id = ?`, datasetID, datasetID,
	).Scan(&windows, &events)
	if err != nil {
		return 0, 0, fmt.Errorf("count windows: %w", err)
	}
	return windows, events, nil
}
