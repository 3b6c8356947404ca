package labels

import (
	"errors"
	"fmt"
)

// headerSlack absorbs the microsecond rounding of window headers.
const headerSlack = 1e-6

// Verify checks the structure of a parsed label file: windows advance, every
// record is well ordered, and records lie inside their window. All problems
// are returned joined.
func Verify(sections []Section) error {
	var errs []error
	for i, s := range sections {
		if s.StartTime > s.EndTime {
			errs = append(errs, fmt.Errorf("%w: window %d ends before it starts", ErrMalformed, i))
		}
		if i > 0 && s.StartTime <= sections[i-1].StartTime {
			errs = append(errs, fmt.Errorf("%w: window %d at %f", ErrOutOfOrder, i, s.StartTime))
		}
		for j, r := range s.Records {
			if err := r.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("window %d record %d: %w", i, j, err))
				continue
			}
			if r.StartTime < s.StartTime-headerSlack || r.EndTime > s.EndTime+headerSlack {
				errs = append(errs, fmt.Errorf("%w: window %d record %d outside %f-%f",
					ErrBadRecord, i, j, s.StartTime, s.EndTime))
			}
		}
	}
	return errors.Join(errs...)
}

// Stats counts windows and records in a parsed label file.
func Stats(sections []Section) (windows, records, empty int) {
	for _, s := range sections {
		records += len(s.Records)
		if len(s.Records) == 0 {
			empty++
		}
	}
	return len(sections), records, empty
}
