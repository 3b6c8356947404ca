package series

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultTimeLayout matches the recorder's "Time" field, e.g. 2017-06-06T10:00:00.123456.
const DefaultTimeLayout = "2006-01-02T15:04:05.999999"

// maxLineSize bounds a single JSON line. Wide sweeps carry thousands of bins.
const maxLineSize = 16 * 1024 * 1024

// recordSchema describes one recording line.
const recordSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["Time", "Measurements"],
	"properties": {
		"Time": {"type": "string", "minLength": 1},
		"Measurements": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "number"}
		}
	}
}`

// LoadOptions controls how a recording file is parsed.
type LoadOptions struct {
	// TimeLayout is the Go time layout of the "Time" field.
	TimeLayout string

	// Location is used for timestamps without zone information. Defaults to
	// time.Local.
	Location *time.Location

	// ScratchDir holds the memory-mapped sample matrix. Defaults to os.TempDir().
	ScratchDir string

	// ValidateSchema checks the first line against the record schema.
	ValidateSchema bool

	// InMemory skips the memory-mapped scratch file.
	InMemory bool
}

// DefaultLoadOptions returns the options used by the labeler.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		TimeLayout:     DefaultTimeLayout,
		Location:       time.Local,
		ValidateSchema: true,
	}
}

type record struct {
	Time         string    `json:"Time"`
	Measurements []float64 `json:"Measurements"`
}

// Load reads a JSON-lines recording into a Series. The file is read twice: once
// to size the matrix and once to fill it.
func Load(ctx context.Context, path string, opts LoadOptions) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	rows, cols, err := scanShape(f, opts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind recording: %w", err)
	}

	var m *Matrix
	if opts.InMemory {
		m = NewMatrix(rows, cols)
	} else {
		m, err = NewMappedMatrix(opts.ScratchDir, rows, cols)
		if err != nil {
			return nil, err
		}
	}

	s, err := fill(ctx, f, m, opts)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Decode reads a recording from r into an in-memory Series.
func Decode(ctx context.Context, r io.Reader, opts LoadOptions) (*Series, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	rows, cols, err := scanShape(bytes.NewReader(data), opts)
	if err != nil {
		return nil, err
	}
	return fill(ctx, bytes.NewReader(data), NewMatrix(rows, cols), opts)
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return sc
}

// scanShape counts non-empty lines and takes the channel count from the first.
func scanShape(r io.Reader, opts LoadOptions) (rows, cols int, err error) {
	sc := newScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if rows == 0 {
			if opts.ValidateSchema {
				if err := validateLine([]byte(line)); err != nil {
					return 0, 0, err
				}
			}
			var rec record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return 0, 0, fmt.Errorf("%w: line 1: %v", ErrInvalidRecord, err)
			}
			cols = len(rec.Measurements)
			if cols == 0 {
				return 0, 0, fmt.Errorf("%w: line 1 has no measurements", ErrInvalidRecord)
			}
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	if rows == 0 {
		return 0, 0, ErrEmpty
	}
	return rows, cols, nil
}

func fill(ctx context.Context, r io.Reader, m *Matrix, opts LoadOptions) (*Series, error) {
	layout := opts.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	ts := make([]float64, 0, m.Rows())
	lo, hi := math.Inf(1), math.Inf(-1)
	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(ts)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(ts) == m.Rows() {
			return nil, fmt.Errorf("%w: recording grew while loading", ErrInvalidRecord)
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRecord, lineNo, err)
		}
		t, err := time.ParseInLocation(layout, rec.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRecord, lineNo, err)
		}
		sec := float64(t.UnixNano()) / 1e9
		if n := len(ts); n > 0 && sec < ts[n-1] {
			return nil, fmt.Errorf("%w: line %d", ErrUnsorted, lineNo)
		}
		if err := m.SetRow(len(ts), rec.Measurements); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		for _, v := range rec.Measurements {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		ts = append(ts, sec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(ts) != m.Rows() {
		return nil, fmt.Errorf("%w: expected %d rows, read %d", ErrInvalidRecord, m.Rows(), len(ts))
	}

	return &Series{
		Timestamps: ts,
		Matrix:     m,
		Channels:   m.Cols(),
		Min:        lo,
		Max:        hi,
	}, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func recordValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("recording-line.json", strings.NewReader(recordSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("recording-line.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

func validateLine(line []byte) error {
	schema, err := recordValidator()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(line, &instance); err != nil {
		return fmt.Errorf("%w: line 1: %v", ErrInvalidRecord, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: line 1: %v", ErrInvalidRecord, err)
	}
	return nil
}
