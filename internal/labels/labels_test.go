package labels

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrumlabel/internal/annotation"
	"spectrumlabel/internal/series"
	"spectrumlabel/internal/window"
)

func sampleEntries() []Entry {
	return []Entry{
		{
			Window: window.Window{StartIndex: 6, EndIndex: 14, StartTime: 1496739606.25, EndTime: 1496739614.5},
			Records: []Record{
				{StartChannel: 1, EndChannel: 3, StartTime: 1496739607.125, EndTime: 1496739610.0},
				{StartChannel: 40, EndChannel: 52, StartTime: 1496739611.75, EndTime: 1496739613.0},
			},
		},
		{
			Window:  window.Window{StartIndex: 21, EndIndex: 29, StartTime: 1496740321.0, EndTime: 1496740329.0},
			Records: []Record{},
		},
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleEntries()))

	want := "1496739606.250000 1496739614.500000\n" +
		`{"StartChannel":1,"EndChannel":3,"StartTime":1496739607.125,"EndTime":1496739610}` + "\n" +
		`{"StartChannel":40,"EndChannel":52,"StartTime":1496739611.75,"EndTime":1496739613}` + "\n" +
		"\n" +
		"1496740321.000000 1496740329.000000\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestRoundTrip(t *testing.T) {
	entries := sampleEntries()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))

	sections, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, sections, len(entries))

	for i, sec := range sections {
		assert.InDelta(t, entries[i].Window.StartTime, sec.StartTime, 1e-6)
		assert.InDelta(t, entries[i].Window.EndTime, sec.EndTime, 1e-6)
		require.Len(t, sec.Records, len(entries[i].Records))
		for j, r := range sec.Records {
			want := entries[i].Records[j]
			assert.Equal(t, want.StartChannel, r.StartChannel)
			assert.Equal(t, want.EndChannel, r.EndChannel)
			assert.InDelta(t, want.StartTime, r.StartTime, 1e-6)
			assert.InDelta(t, want.EndTime, r.EndTime, 1e-6)
		}
	}
}

func TestParseLegacyRecords(t *testing.T) {
	input := "100.000000 130.000000\n" +
		"{'StartChannel': 2, 'EndChannel': 9, 'StartTime': 101.5, 'EndTime': 104.0}\n" +
		"\n" +
		"900.500000 930.250000\n"

	sections, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, []Record{{StartChannel: 2, EndChannel: 9, StartTime: 101.5, EndTime: 104}}, sections[0].Records)
	assert.Empty(t, sections[1].Records)
	assert.Equal(t, 930.25, sections[1].EndTime)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"record before header", `{"StartChannel":1,"EndChannel":2,"StartTime":1,"EndTime":2}` + "\n"},
		{"bad header", "1.0\n"},
		{"non-numeric header", "a b\n"},
		{"bad record", "1 2\n{\"StartChannel\": \"x\"}\n"},
		{"unknown field", "1 2\n{\"Channel\": 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestStoreCommit(t *testing.T) {
	s := NewStore()
	w1 := window.Window{StartIndex: 1, EndIndex: 5, StartTime: 10, EndTime: 14}
	w2 := window.Window{StartIndex: 9, EndIndex: 12, StartTime: 20, EndTime: 24}

	require.NoError(t, s.Commit(w1, []Record{{StartChannel: 1, EndChannel: 1, StartTime: 11, EndTime: 12}}))
	require.NoError(t, s.Commit(w2, nil))

	assert.ErrorIs(t, s.Commit(w1, nil), ErrOutOfOrder)
	assert.ErrorIs(t, s.Commit(window.Window{StartTime: 30}, []Record{{StartChannel: 3, EndChannel: 1}}), ErrBadRecord)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.EventCount())
	assert.NotNil(t, s.Entries()[1].Records)
}

func TestResolve(t *testing.T) {
	idx := series.NewTimeIndex([]float64{100, 100.5, 101, 101.5, 102})
	recs, err := Resolve([]annotation.Event{
		{StartChannel: 1, EndChannel: 3, StartTimeIndex: 1, EndTimeIndex: 3},
	}, idx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{StartChannel: 1, EndChannel: 3, StartTime: 100.5, EndTime: 101.5}}, recs)

	_, err = Resolve([]annotation.Event{{StartTimeIndex: 2, EndTimeIndex: 5}}, idx)
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := OutputPath(filepath.Join(dir, "out"), "out_", "/data/ws_traffic_20170606")
	assert.Equal(t, filepath.Join(dir, "out", "out_ws_traffic_20170606"), path)

	require.NoError(t, WriteFile(path, sampleEntries()[:1]))
	require.NoError(t, WriteFile(path, sampleEntries()))

	sections, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files should not be left behind")
}
