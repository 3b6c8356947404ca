package labeler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"spectrumlabel/internal/annotation"
)

// Script is a recorded labeling session: gesture steps per window ordinal.
// Windows without an entry are committed with no events.
//
//	windows:
//	  - ordinal: 0
//	    steps:
//	      - {op: drag, channel: 3, time: 6, to_channel: 1, to_time: 9}
//	      - {op: undo}
type Script struct {
	// Strict makes any rejected gesture fail the run.
	Strict  bool           `yaml:"strict"`
	Windows []ScriptWindow `yaml:"windows"`
}

// ScriptWindow lists the steps applied to one window.
type ScriptWindow struct {
	Ordinal int    `yaml:"ordinal"`
	Steps   []Step `yaml:"steps"`
}

// Step is one scripted gesture. Op is press, release, drag, undo or cancel.
// Button defaults to primary.
type Step struct {
	Op        string `yaml:"op"`
	Channel   int    `yaml:"channel"`
	Time      int    `yaml:"time"`
	ToChannel int    `yaml:"to_channel"`
	ToTime    int    `yaml:"to_time"`
	Button    string `yaml:"button,omitempty"`
}

// ParseScript decodes a YAML script.
func ParseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	seen := make(map[int]bool, len(s.Windows))
	for i, w := range s.Windows {
		if seen[w.Ordinal] {
			return nil, fmt.Errorf("script window %d: duplicate ordinal %d", i, w.Ordinal)
		}
		seen[w.Ordinal] = true
		for j, st := range w.Steps {
			if _, err := st.button(); err != nil {
				return nil, fmt.Errorf("script window %d step %d: %w", w.Ordinal, j, err)
			}
			switch st.Op {
			case "press", "release", "drag", "undo", "cancel":
			default:
				return nil, fmt.Errorf("script window %d step %d: unknown op %q", w.Ordinal, j, st.Op)
			}
		}
	}
	return &s, nil
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseScript(f)
}

// ParseButton resolves a button name.
func ParseButton(name string) (annotation.Button, error) {
	switch strings.ToLower(name) {
	case "", "primary", "left":
		return annotation.ButtonPrimary, nil
	case "middle":
		return annotation.ButtonMiddle, nil
	case "secondary", "right":
		return annotation.ButtonSecondary, nil
	default:
		return annotation.ButtonNone, fmt.Errorf("unknown button %q", name)
	}
}

func (st Step) button() (annotation.Button, error) {
	return ParseButton(st.Button)
}

// ScriptPresenter replays a Script without a display.
type ScriptPresenter struct {
	script *Script
	byOrd  map[int][]Step
	log    *slog.Logger
}

// NewScriptPresenter creates a presenter for s. A nil script commits every
// window empty.
func NewScriptPresenter(s *Script, log *slog.Logger) *ScriptPresenter {
	if s == nil {
		s = &Script{}
	}
	if log == nil {
		log = slog.Default()
	}
	p := &ScriptPresenter{script: s, byOrd: make(map[int][]Step, len(s.Windows)), log: log}
	for _, w := range s.Windows {
		p.byOrd[w.Ordinal] = w.Steps
	}
	return p
}

// Annotate applies the steps recorded for v.Ordinal.
func (p *ScriptPresenter) Annotate(ctx context.Context, v View, a *Annotator) error {
	for i, st := range p.byOrd[v.Ordinal] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.apply(st, a); err != nil {
			if p.script.Strict {
				return fmt.Errorf("window %d step %d: %w", v.Ordinal, i, err)
			}
			p.log.Debug("scripted gesture rejected", "ordinal", v.Ordinal, "step", i, "error", err)
		}
	}
	// An unterminated drag is dropped rather than blocking the commit.
	if _, dragging := a.Pending(); dragging && !p.script.Strict {
		a.Cancel()
	}
	return nil
}

func (p *ScriptPresenter) apply(st Step, a *Annotator) error {
	b, err := st.button()
	if err != nil {
		return err
	}
	from := annotation.Gesture{Channel: st.Channel, Time: st.Time, Button: b}
	switch st.Op {
	case "press":
		return a.Press(from)
	case "release":
		return a.Release(from)
	case "drag":
		if err := a.Press(from); err != nil {
			return err
		}
		return a.Release(annotation.Gesture{Channel: st.ToChannel, Time: st.ToTime, Button: b})
	case "undo":
		_, err := a.Undo()
		return err
	case "cancel":
		a.Cancel()
		return nil
	}
	return fmt.Errorf("unknown op %q", st.Op)
}
