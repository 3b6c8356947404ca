package labels

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Section is one parsed window block. Only times survive serialization.
type Section struct {
	StartTime float64
	EndTime   float64
	Records   []Record
}

// Write serializes entries to w.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%f %f\n", e.Window.StartTime, e.Window.EndTime); err != nil {
			return err
		}
		for _, r := range e.Records {
			line, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			bw.Write(line)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFile writes entries to path through a temporary file and a rename, so a
// crash never leaves a truncated label file behind.
func WriteFile(path string, entries []Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, entries); err != nil {
		tmp.Close()
		return fmt.Errorf("write labels: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync labels: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// OutputPath returns the label file name for a recording: dir/prefix+basename.
func OutputPath(dir, prefix, recording string) string {
	return filepath.Join(dir, prefix+filepath.Base(recording))
}

// Parse reads a label file. Records written as Python dict literals by older
// tooling are accepted as well.
func Parse(r io.Reader) ([]Section, error) {
	var (
		out     []Section
		current *Section
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			if current != nil {
				out = append(out, *current)
				current = nil
			}
		case strings.HasPrefix(line, "{"):
			if current == nil {
				return nil, fmt.Errorf("%w: line %d: record outside a window", ErrMalformed, lineNo)
			}
			rec, err := parseRecord(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			current.Records = append(current.Records, rec)
		default:
			if current != nil {
				out = append(out, *current)
			}
			start, end, err := parseHeader(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			current = &Section{StartTime: start, EndTime: end, Records: []Record{}}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, nil
}

// ParseFile reads the label file at path.
func ParseFile(path string) ([]Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func parseHeader(line string) (float64, float64, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("want two window times, got %q", line)
	}
	start, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseRecord(line string) (Record, error) {
	if strings.Contains(line, "'") {
		line = strings.ReplaceAll(line, "'", `"`)
	}
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
