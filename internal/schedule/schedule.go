package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"

	"github.com/brandon/mailsweep/pkg/types"
)

// DefaultDaysBack is the scan window used when an entry sets none
const DefaultDaysBack = 30

// Frequency is how often an entry runs
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

// File is the on-disk list of cleanup schedules.
type File struct {
	Schedules []Entry `yaml:"schedules"`
}

// Entry describes one recurring cleanup of an account.
type Entry struct {
	Account   string     `yaml:"account"`
	Enabled   bool       `yaml:"enabled"`
	Frequency Frequency  `yaml:"frequency"`
	EveryDays int        `yaml:"every_days,omitempty"`
	Time      string     `yaml:"time"` // "HH:MM" in the reference zone
	DaysBack  int        `yaml:"days_back,omitempty"`
	Targets   []string   `yaml:"targets"`
	Permanent bool       `yaml:"permanent"`
	LastRun   *time.Time `yaml:"last_run,omitempty"`
}

// Load reads and parses a schedule file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule file: %w", err)
	}
	return f, nil
}

// Save writes the file atomically next to path.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode schedule file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".schedules-*.yaml")
	if err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write schedule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	return nil
}

func (f *File) validate() error {
	for i := range f.Schedules {
		e := &f.Schedules[i]
		if e.Account == "" {
			return fmt.Errorf("schedule %d: account is required", i)
		}
		if _, _, err := e.clock(); err != nil {
			return fmt.Errorf("schedule %d: %w", i, err)
		}
		if _, err := e.Categories(); err != nil {
			return fmt.Errorf("schedule %d: %w", i, err)
		}
		switch e.Frequency {
		case Daily, Weekly, Monthly:
		case Custom:
			if e.EveryDays < 1 {
				return fmt.Errorf("schedule %d: custom frequency needs every_days >= 1", i)
			}
		default:
			return fmt.Errorf("schedule %d: unknown frequency %q", i, e.Frequency)
		}
	}
	return nil
}

// GetDaysBack returns the scan window, defaulting to 30 days.
func (e *Entry) GetDaysBack() int {
	if e.DaysBack <= 0 {
		return DefaultDaysBack
	}
	return e.DaysBack
}

// Categories maps the entry's targets onto categories. "all" means every
// bucket.
func (e *Entry) Categories() ([]types.Category, error) {
	if len(e.Targets) == 0 {
		return nil, fmt.Errorf("no targets")
	}

	var out []types.Category
	seen := make(map[types.Category]bool)
	add := func(c types.Category) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, t := range e.Targets {
		if strings.EqualFold(strings.TrimSpace(t), "all") {
			add(types.CategoryInbox)
			add(types.CategorySpam)
			add(types.CategoryTrash)
			continue
		}
		c, err := types.ParseCategory(t)
		if err != nil || c == types.CategoryOther {
			return nil, fmt.Errorf("unknown target %q", t)
		}
		add(c)
	}
	return out, nil
}

// IncludesTrash reports whether the trash bucket must be scanned
func (e *Entry) IncludesTrash() bool {
	cats, _ := e.Categories()
	for _, c := range cats {
		if c == types.CategoryTrash {
			return true
		}
	}
	return false
}

func (e *Entry) clock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(e.Time))
	if err != nil {
		return 0, 0, fmt.Errorf("time must be HH:MM, got %q", e.Time)
	}
	return t.Hour(), t.Minute(), nil
}

func (e *Entry) next(last time.Time) time.Time {
	switch e.Frequency {
	case Weekly:
		return last.AddDate(0, 0, 7)
	case Monthly:
		return last.AddDate(0, 1, 0)
	case Custom:
		return last.AddDate(0, 0, e.EveryDays)
	}
	return last.AddDate(0, 0, 1)
}

// Due reports whether the entry should run at now: it is enabled, the
// wall-clock minute in loc equals Time, and a full interval has passed
// since LastRun. Entries that never ran are due at their minute.
func (e *Entry) Due(now time.Time, loc *time.Location) bool {
	if !e.Enabled {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	hour, minute, err := e.clock()
	if err != nil {
		return false
	}

	local := now.In(loc)
	if local.Hour() != hour || local.Minute() != minute {
		return false
	}
	if e.LastRun == nil {
		return true
	}

	next := e.next(e.LastRun.In(loc)).Truncate(time.Minute)
	return !local.Truncate(time.Minute).Before(next)
}
