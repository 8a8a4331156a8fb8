/*
Package config provides the hot-reloadable daycare settings.

PURPOSE:
  One settings file controls closing time, the daily hour cap, both
  surcharge rates, the timezone and the display name. The provider keeps a
  compiled snapshot behind a lock: readers get a consistent value set, and
  staff updates (or an explicit Reload) swap the snapshot atomically so the
  next billing computation picks up the new rates without a restart.

FILE FORMAT:
  YAML, with every field optional. Missing fields keep their defaults:

    closing_time: "16:30:00"
    max_hours_per_day: 8.5
    overage_rate_per_minute: 1.00
    late_pickup_rate_per_minute: 1.00
    timezone: America/Denver
    daycare_name: Little Pine Daycare

  A missing file is not an error; the defaults apply until the first
  Update persists one.

SEE ALSO:
  - billing/engine.go: Config, the compiled billing snapshot
  - attendance/service.go: ConfigSource, the consuming interface
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/littlepine/timekeeper/billing"
)

// =============================================================================
// SETTINGS - The raw, file-shaped value set
// =============================================================================

type Settings struct {
	ClosingTime             string  `yaml:"closing_time" json:"closing_time"`
	MaxHoursPerDay          float64 `yaml:"max_hours_per_day" json:"max_hours_per_day"`
	OverageRatePerMinute    float64 `yaml:"overage_rate_per_minute" json:"overage_rate_per_minute"`
	LatePickupRatePerMinute float64 `yaml:"late_pickup_rate_per_minute" json:"late_pickup_rate_per_minute"`
	Timezone                string  `yaml:"timezone" json:"timezone"`
	DaycareName             string  `yaml:"daycare_name" json:"daycare_name"`
}

func DefaultSettings() Settings {
	return Settings{
		ClosingTime:             "16:30:00",
		MaxHoursPerDay:          8.5,
		OverageRatePerMinute:    1.00,
		LatePickupRatePerMinute: 1.00,
		Timezone:                "America/Denver",
		DaycareName:             "Little Pine Daycare",
	}
}

// =============================================================================
// PROVIDER - Compiled snapshot with atomic swap
// =============================================================================

type snapshot struct {
	settings Settings
	billing  billing.Config
	location *time.Location
}

// Provider serves compiled settings snapshots. Safe for concurrent use.
type Provider struct {
	path string

	mu  sync.RWMutex
	cur snapshot
}

// Load creates a provider backed by the given settings file. A missing
// file yields the defaults; a malformed or invalid file is an error.
func Load(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the settings file and swaps the snapshot.
func (p *Provider) Reload() error {
	settings := DefaultSettings()

	data, err := os.ReadFile(p.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults apply until the first Update writes the file.
	case err != nil:
		return fmt.Errorf("reading settings file: %w", err)
	default:
		// Unmarshal over the defaults so missing fields keep them.
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing settings file: %w", err)
		}
	}

	snap, err := compile(settings)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cur = snap
	p.mu.Unlock()
	return nil
}

// Update validates, persists and applies new settings. Changes take effect
// on the next computation; records written earlier are untouched until
// they are recomputed.
func (p *Provider) Update(settings Settings) error {
	snap, err := compile(settings)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}

	p.mu.Lock()
	p.cur = snap
	p.mu.Unlock()
	return nil
}

// Billing returns the compiled billing config in effect right now.
func (p *Provider) Billing() billing.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur.billing
}

// Settings returns the raw value set in effect right now.
func (p *Provider) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur.settings
}

// Location returns the configured timezone.
func (p *Provider) Location() *time.Location {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur.location
}

// =============================================================================
// VALIDATION / COMPILATION
// =============================================================================

func compile(s Settings) (snapshot, error) {
	closing, err := billing.ParseTimeOfDay(s.ClosingTime)
	if err != nil {
		return snapshot{}, fmt.Errorf("closing_time: %w", err)
	}
	if s.MaxHoursPerDay <= 0 {
		return snapshot{}, fmt.Errorf("max_hours_per_day must be positive, got %v", s.MaxHoursPerDay)
	}
	if s.OverageRatePerMinute < 0 || s.LatePickupRatePerMinute < 0 {
		return snapshot{}, errors.New("surcharge rates must not be negative")
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return snapshot{}, fmt.Errorf("timezone: %w", err)
	}

	return snapshot{
		settings: s,
		location: loc,
		billing: billing.Config{
			ClosingTime:             closing,
			MaxHoursPerDay:          decimal.NewFromFloat(s.MaxHoursPerDay),
			OverageRatePerMinute:    decimal.NewFromFloat(s.OverageRatePerMinute),
			LatePickupRatePerMinute: decimal.NewFromFloat(s.LatePickupRatePerMinute),
		},
	}, nil
}
