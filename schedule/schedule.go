/*
Package schedule provides availability configuration for the booking engine.

PURPOSE:
  Converts a JSON schedule definition into normalized Go structures: weekly
  open hours, per-date overrides, and explicitly blocked slots. The salon
  admin edits the JSON; the engine only ever sees the normalized form.

JSON SCHEMA:
  {
    "slot_interval_minutes": 60,
    "week": {
      "monday":  [{"start": "09:00", "end": "17:00"}],
      "tuesday": []
    },
    "overrides": [
      {"date": "2025-12-24", "enabled": false},                      // legacy
      {"date": "2025-12-26", "enabled": true,
       "startTime": "10:00", "endTime": "14:00"},                    // legacy
      {"date": "2025-12-31", "type": "custom",
       "timeBlocks": [{"start": "09:00", "end": "12:00"}]}           // current
    ],
    "blocked": [{"date": "2025-11-03", "time": "14:00"}]
  }

OVERRIDE NORMALIZATION:
  Two formats exist in the wild: the legacy {enabled, startTime, endTime}
  shape and the current {type, timeBlocks} shape. Both are accepted, and both
  are normalized into DateOverride exactly once at parse time. Use sites
  never branch on the input format.

VERSIONED REPLACE:
  The active config lives in a Registry and is swapped wholesale via
  Replace(), never mutated in place, so readers can't observe a half-written
  schedule. Each replace bumps the version.

SEE ALSO:
  - api/handlers.go: GET /slots/{date} merges this with holds and bookings
  - store/sqlite/sqlite.go: Persists the raw JSON alongside its version
*/
package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// =============================================================================
// NORMALIZED MODEL
// =============================================================================

// TimeBlock is a half-open window of open hours within a day.
type TimeBlock struct {
	Start string `json:"start"` // "15:04"
	End   string `json:"end"`
}

type OverrideType string

const (
	OverrideClosed OverrideType = "closed"
	OverrideCustom OverrideType = "custom"
)

// DateOverride is the single normalized form of a per-date schedule change.
type DateOverride struct {
	Date   string
	Type   OverrideType
	Blocks []TimeBlock // empty when Type == OverrideClosed
}

// Config is an immutable, normalized schedule. Build one with Parse and
// publish it through a Registry; never mutate a published Config.
type Config struct {
	Version      int
	SlotInterval time.Duration
	Week         map[time.Weekday][]TimeBlock
	Overrides    map[string]DateOverride // keyed by date
	Blocked      map[booking.SlotKey]bool
}

// BlocksFor returns the open-hour blocks for a date, override-aware.
func (c *Config) BlocksFor(date string) ([]TimeBlock, error) {
	day, err := time.Parse(booking.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if ov, ok := c.Overrides[date]; ok {
		if ov.Type == OverrideClosed {
			return nil, nil
		}
		return ov.Blocks, nil
	}
	return c.Week[day.Weekday()], nil
}

// SlotsFor generates the bookable slot times for a date at SlotInterval
// steps, excluding explicitly blocked slots.
func (c *Config) SlotsFor(date string) ([]string, error) {
	blocks, err := c.BlocksFor(date)
	if err != nil {
		return nil, err
	}
	if c.SlotInterval <= 0 {
		return nil, nil
	}
	var out []string
	for _, b := range blocks {
		start, err := time.Parse(booking.TimeLayout, b.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid block start %q: %w", b.Start, err)
		}
		end, err := time.Parse(booking.TimeLayout, b.End)
		if err != nil {
			return nil, fmt.Errorf("invalid block end %q: %w", b.End, err)
		}
		for t := start; t.Before(end); t = t.Add(c.SlotInterval) {
			slot := booking.SlotKey{Date: date, Time: t.Format(booking.TimeLayout)}
			if c.Blocked[slot] {
				continue
			}
			out = append(out, slot.Time)
		}
	}
	sort.Strings(out)
	return out, nil
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type configJSON struct {
	SlotIntervalMinutes int                    `json:"slot_interval_minutes"`
	Week                map[string][]TimeBlock `json:"week"`
	Overrides           []overrideJSON         `json:"overrides,omitempty"`
	Blocked             []blockedJSON          `json:"blocked,omitempty"`
}

// overrideJSON accepts both override formats. Exactly one shape should be
// populated; Normalize decides which.
type overrideJSON struct {
	Date string `json:"date"`

	// Legacy shape
	Enabled   *bool  `json:"enabled,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`

	// Current shape
	Type       string      `json:"type,omitempty"`
	TimeBlocks []TimeBlock `json:"timeBlocks,omitempty"`
}

type blockedJSON struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// normalize converts either override shape into the single DateOverride form.
func (o overrideJSON) normalize() (DateOverride, error) {
	if o.Date == "" {
		return DateOverride{}, fmt.Errorf("override missing date")
	}
	if _, err := time.Parse(booking.DateLayout, o.Date); err != nil {
		return DateOverride{}, fmt.Errorf("override date %q: %w", o.Date, err)
	}

	switch {
	case o.Type != "":
		switch OverrideType(o.Type) {
		case OverrideClosed:
			return DateOverride{Date: o.Date, Type: OverrideClosed}, nil
		case OverrideCustom:
			if len(o.TimeBlocks) == 0 {
				return DateOverride{}, fmt.Errorf("custom override %s has no timeBlocks", o.Date)
			}
			return DateOverride{Date: o.Date, Type: OverrideCustom, Blocks: o.TimeBlocks}, nil
		default:
			return DateOverride{}, fmt.Errorf("unknown override type %q", o.Type)
		}

	case o.Enabled != nil:
		if !*o.Enabled {
			return DateOverride{Date: o.Date, Type: OverrideClosed}, nil
		}
		if o.StartTime == "" || o.EndTime == "" {
			return DateOverride{}, fmt.Errorf("enabled override %s missing startTime/endTime", o.Date)
		}
		return DateOverride{
			Date:   o.Date,
			Type:   OverrideCustom,
			Blocks: []TimeBlock{{Start: o.StartTime, End: o.EndTime}},
		}, nil

	default:
		return DateOverride{}, fmt.Errorf("override %s matches neither format", o.Date)
	}
}

// =============================================================================
// PARSER
// =============================================================================

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Parse converts JSON into a normalized Config. All override-format handling
// happens here, once.
func Parse(data []byte) (*Config, error) {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule json: %w", err)
	}

	interval := raw.SlotIntervalMinutes
	if interval <= 0 {
		interval = 60
	}

	cfg := &Config{
		SlotInterval: time.Duration(interval) * time.Minute,
		Week:         make(map[time.Weekday][]TimeBlock),
		Overrides:    make(map[string]DateOverride),
		Blocked:      make(map[booking.SlotKey]bool),
	}

	for name, blocks := range raw.Week {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		cfg.Week[wd] = blocks
	}

	for _, o := range raw.Overrides {
		ov, err := o.normalize()
		if err != nil {
			return nil, err
		}
		cfg.Overrides[ov.Date] = ov
	}

	for _, b := range raw.Blocked {
		key, err := booking.NewSlotKey(b.Date, b.Time)
		if err != nil {
			return nil, fmt.Errorf("blocked slot: %w", err)
		}
		cfg.Blocked[key] = true
	}

	return cfg, nil
}

// =============================================================================
// REGISTRY - Versioned replace, no in-place mutation
// =============================================================================

// Registry holds the active Config. Readers get a stable snapshot; writers
// swap the whole config under the lock.
type Registry struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewRegistry(cfg *Config) *Registry {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	return &Registry{cfg: cfg}
}

// Current returns the active config snapshot. Callers must not mutate it.
func (r *Registry) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Replace swaps in a new config and returns its version.
func (r *Registry) Replace(cfg *Config) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.Version = r.cfg.Version + 1
	r.cfg = cfg
	return cfg.Version
}
