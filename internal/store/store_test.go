package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/labels"
	"spectrumlabel/internal/window"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDataset(fp string) *Dataset {
	return &Dataset{
		Fingerprint: fp,
		Path:        "/data/" + fp + ".jsonl",
		Samples:     100,
		Channels:    8,
		FirstTime:   0,
		LastTime:    99,
		Min:         -120,
		Max:         -30,
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "subdir", "nested", "journal.db"), WithBusyTimeout(0))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, ValidateSchema(s.DB()))
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestMigrationStatus(t *testing.T) {
	s := openTestStore(t)

	status, err := GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Equal(t, 2, status.LatestVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, 2)

	require.NoError(t, MigrateDB(s.DB()))
	status, err = GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Len(t, status.Applied, 2)
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.UpsertDataset(testDataset("abc"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ds, err := s.Datasets()
	require.NoError(t, err)
	assert.Len(t, ds, 1)
}

func TestUpsertDataset(t *testing.T) {
	s := openTestStore(t)

	d := testDataset("abc")
	id, err := s.UpsertDataset(d)
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)

	moved := testDataset("abc")
	moved.Path = "/elsewhere/rec.jsonl"
	moved.Samples = 1
	moved.FirstTime = 3600
	moved.LastTime = 3699
	id2, err := s.UpsertDataset(moved)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err := s.GetDataset("abc")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/rec.jsonl", got.Path)
	assert.Equal(t, 100, got.Samples, "statistics are kept from the first registration")
	assert.Equal(t, 8, got.Channels)
	assert.InDelta(t, -120.0, got.Min, 1e-9)
	assert.Equal(t, 3600.0, got.FirstTime, "time base follows the latest load")
	assert.Equal(t, 3699.0, got.LastTime)

	_, err = s.GetDataset("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpsertDataset(&Dataset{})
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	dsID, err := s.UpsertDataset(testDataset("abc"))
	require.NoError(t, err)

	run, err := s.BeginRun(dsID, "key")
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, RunActive, run.Status)

	require.NoError(t, s.FinishRun(run.ID, RunComplete))
	assert.ErrorIs(t, s.FinishRun(run.ID, RunAborted), ErrRunFinished)
	assert.ErrorIs(t, s.FinishRun("nope", RunAborted), ErrNotFound)
	assert.Error(t, s.FinishRun(run.ID, RunActive))

	runs, err := s.Runs(dsID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunComplete, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestCommitWindowRoundTrip(t *testing.T) {
	s := openTestStore(t)
	dsID, err := s.UpsertDataset(testDataset("abc"))
	require.NoError(t, err)
	run, err := s.BeginRun(dsID, "key")
	require.NoError(t, err)

	second := &WindowRecord{
		DatasetID:  dsID,
		PlannerKey: "key",
		RunID:      run.ID,
		Ordinal:    1,
		Window:     window.Window{StartIndex: 21, EndIndex: 29, StartTime: 21, EndTime: 29},
		Summary:    Summary{PeakChannel: 3, Centroid: 0.25, Flatness: 0.5, MeanPower: 1e-9},
		Records: []labels.Record{
			{StartChannel: 1, EndChannel: 3, StartTime: 22, EndTime: 25},
			{StartChannel: 0, EndChannel: 7, StartTime: 26, EndTime: 27},
		},
	}
	first := &WindowRecord{
		DatasetID:  dsID,
		PlannerKey: "key",
		RunID:      run.ID,
		Ordinal:    0,
		Window:     window.Window{StartIndex: 6, EndIndex: 14, StartTime: 6, EndTime: 14},
	}

	_, err = s.CommitWindow(second)
	require.NoError(t, err)
	_, err = s.CommitWindow(first)
	require.NoError(t, err)

	got, err := s.CommittedWindows(dsID, "key")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.Window, got[0].Window)
	assert.Empty(t, got[0].Records)
	assert.NotNil(t, got[0].Records)
	assert.Equal(t, second.Window, got[1].Window)
	assert.Equal(t, second.Records, got[1].Records)
	assert.Equal(t, second.Summary, got[1].Summary)
	assert.Equal(t, run.ID, got[1].RunID)

	other, err := s.CommittedWindows(dsID, "other-key")
	require.NoError(t, err)
	assert.Empty(t, other)

	windows, events, err := s.Counts(dsID)
	require.NoError(t, err)
	assert.Equal(t, 2, windows)
	assert.Equal(t, 2, events)
}

func TestCommitWindowRejects(t *testing.T) {
	s := openTestStore(t)
	dsID, err := s.UpsertDataset(testDataset("abc"))
	require.NoError(t, err)
	run, err := s.BeginRun(dsID, "key")
	require.NoError(t, err)

	w := &WindowRecord{
		DatasetID:  dsID,
		PlannerKey: "key",
		RunID:      run.ID,
		Window:     window.Window{StartIndex: 6, EndIndex: 14, StartTime: 6, EndTime: 14},
	}
	_, err = s.CommitWindow(w)
	require.NoError(t, err)

	dup := *w
	_, err = s.CommitWindow(&dup)
	require.Error(t, err, "same window twice under one plan")

	missing := *w
	missing.RunID = "missing"
	_, err = s.CommitWindow(&missing)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.FinishRun(run.ID, RunAborted))
	late := *w
	late.Window.StartIndex = 21
	_, err = s.CommitWindow(&late)
	assert.ErrorIs(t, err, ErrRunFinished)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(strings.NewReader("spectrum"))
	require.NoError(t, err)
	b, err := Fingerprint(strings.NewReader("spectrum"))
	require.NoError(t, err)
	c, err := Fingerprint(strings.NewReader("spectrum!"))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = FingerprintFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
