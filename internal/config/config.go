package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/inview/internal/inview"
	"github.com/dshills/inview/internal/script"
	"github.com/dshills/inview/internal/watch"
)

// FileName is the default configuration file name.
const FileName = "inview.toml"

// Duration is a time.Duration read from strings such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Offset holds per-side offsets.
type Offset struct {
	Top    float64 `toml:"top" env:"INVIEW_OFFSET_TOP"`
	Right  float64 `toml:"right" env:"INVIEW_OFFSET_RIGHT"`
	Bottom float64 `toml:"bottom" env:"INVIEW_OFFSET_BOTTOM"`
	Left   float64 `toml:"left" env:"INVIEW_OFFSET_LEFT"`
}

// Settings is the complete inview configuration.
type Settings struct {
	// Layout is the TOML layout document to track.
	Layout string `toml:"layout" env:"INVIEW_LAYOUT"`

	// Predicate is an optional Lua script replacing the default visibility test.
	Predicate string `toml:"predicate" env:"INVIEW_PREDICATE"`

	// Queries are the selectors tracked by the watch and check commands.
	Queries []string `toml:"queries" env:"INVIEW_QUERIES" envSeparator:","`

	Interval  Duration `toml:"interval" env:"INVIEW_INTERVAL"`
	Threshold float64  `toml:"threshold" env:"INVIEW_THRESHOLD"`
	Offset    Offset   `toml:"offset"`

	// Watch reloads the layout when its file changes.
	Watch    bool     `toml:"watch" env:"INVIEW_WATCH"`
	Debounce Duration `toml:"debounce" env:"INVIEW_DEBOUNCE"`

	ScriptTimeout Duration `toml:"script_timeout" env:"INVIEW_SCRIPT_TIMEOUT"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Queries:       []string{"*"},
		Interval:      Duration{inview.DefaultInterval},
		Debounce:      Duration{watch.DefaultDelay},
		ScriptTimeout: Duration{script.DefaultTimeout},
	}
}

// fileSettings mirrors Settings with optional fields so that only keys
// present in the file override the defaults.
type fileSettings struct {
	Layout        *string     `toml:"layout"`
	Predicate     *string     `toml:"predicate"`
	Queries       *[]string   `toml:"queries"`
	Interval      *Duration   `toml:"interval"`
	Threshold     *float64    `toml:"threshold"`
	Offset        *fileOffset `toml:"offset"`
	Watch         *bool       `toml:"watch"`
	Debounce      *Duration   `toml:"debounce"`
	ScriptTimeout *Duration   `toml:"script_timeout"`
}

type fileOffset struct {
	Top    *float64 `toml:"top"`
	Right  *float64 `toml:"right"`
	Bottom *float64 `toml:"bottom"`
	Left   *float64 `toml:"left"`
}

// Load returns the defaults overlaid with the file at path. Relative layout
// and predicate paths in the file are resolved against the file's directory.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("reading config file %s: %w", path, err)
	}

	f, err := parse(path, data)
	if err != nil {
		return s, err
	}
	s.merge(f, filepath.Dir(path))
	return s, nil
}

func parse(source string, data []byte) (*fileSettings, error) {
	var f fileSettings
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return &f, nil
}

func (s *Settings) merge(f *fileSettings, dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	if f.Layout != nil {
		s.Layout = resolve(*f.Layout)
	}
	if f.Predicate != nil {
		s.Predicate = resolve(*f.Predicate)
	}
	if f.Queries != nil {
		s.Queries = *f.Queries
	}
	if f.Interval != nil {
		s.Interval = *f.Interval
	}
	if f.Threshold != nil {
		s.Threshold = *f.Threshold
	}
	if o := f.Offset; o != nil {
		setIf(&s.Offset.Top, o.Top)
		setIf(&s.Offset.Right, o.Right)
		setIf(&s.Offset.Bottom, o.Bottom)
		setIf(&s.Offset.Left, o.Left)
	}
	if f.Watch != nil {
		s.Watch = *f.Watch
	}
	if f.Debounce != nil {
		s.Debounce = *f.Debounce
	}
	if f.ScriptTimeout != nil {
		s.ScriptTimeout = *f.ScriptTimeout
	}
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ApplyEnv overrides settings from INVIEW_* variables. A nil environ reads
// the process environment.
func (s *Settings) ApplyEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(s, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
// Each problem is a *FieldError wrapping ErrInvalid.
func (s *Settings) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if math.IsNaN(s.Threshold) || s.Threshold < 0 || s.Threshold > 1 {
		fail("threshold", "must be between 0 and 1, got %v", s.Threshold)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"offset.top", s.Offset.Top},
		{"offset.right", s.Offset.Right},
		{"offset.bottom", s.Offset.Bottom},
		{"offset.left", s.Offset.Left},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			fail(f.name, "must be finite")
		}
	}
	for _, f := range []struct {
		name string
		d    Duration
	}{
		{"interval", s.Interval},
		{"debounce", s.Debounce},
		{"script_timeout", s.ScriptTimeout},
	} {
		if f.d.Duration <= 0 {
			fail(f.name, "must be positive, got %s", f.d)
		}
	}
	if len(s.Queries) == 0 {
		fail("queries", "at least one query is required")
	}
	for i, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			fail(fmt.Sprintf("queries[%d]", i), "must not be empty")
		}
	}
	return errors.Join(errs...)
}

// ControllerOptions returns the controller options derived from the settings.
func (s *Settings) ControllerOptions() []inview.Option {
	return []inview.Option{inview.WithInterval(s.Interval.Duration)}
}

// Apply copies the offsets and threshold onto a controller.
func (s *Settings) Apply(c *inview.Controller) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.SetOffset(inview.Offset{
		Top:    s.Offset.Top,
		Right:  s.Offset.Right,
		Bottom: s.Offset.Bottom,
		Left:   s.Offset.Left,
	})
	c.SetThreshold(s.Threshold)
	return nil
}
