package config

import (
	"fmt"

	"lens-tracker/internal/sheets"
)

// SyncSource is one per-area log the synchronizer copies into the canonical status log.
type SyncSource struct {
	Sheet   string `json:"sheet"`
	Area    string `json:"area"`
	Range   string `json:"range"`
	Enabled bool   `json:"enabled"`
	// StatusTransforms maps a raw label written by the area to the canonical status.
	// Matching is case- and accent-insensitive.
	StatusTransforms map[string]string `json:"status_transforms,omitempty"`
}

// Config holds application settings (in-memory representation).
// Persistence is handled by internal/db package.
type Config struct {
	Port        int    `json:"port"`
	DBPath      string `json:"db_path"`
	StoreDriver string `json:"store_driver"` // sqlite | postgres | memory
	PostgresDSN string `json:"postgres_dsn"`

	CanonicalSheet   string `json:"canonical_sheet"`
	CanonicalRange   string `json:"canonical_range"`
	TransactionSheet string `json:"transaction_sheet"`
	TransactionRange string `json:"transaction_range"`

	SyncSources         []SyncSource `json:"sync_sources"`
	SyncIntervalMinutes int          `json:"sync_interval_minutes"`
	SyncStartHour       int          `json:"sync_start_hour"` // inclusive
	SyncEndHour         int          `json:"sync_end_hour"`   // exclusive
	SyncOverlapMinutes  int          `json:"sync_overlap_minutes"`

	StatusCacheTTLSeconds int    `json:"status_cache_ttl_seconds"`
	DisplayTimezone       string `json:"display_timezone"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:             13380,
		DBPath:           "lens-tracker.db",
		StoreDriver:      "sqlite",
		CanonicalSheet:   "Estados",
		CanonicalRange:   "A2:F",
		TransactionSheet: "Transacciones",
		TransactionRange: "A2:D",
		SyncSources: []SyncSource{
			{Sheet: "Bodega", Area: "Bodega", Range: "A2:E", Enabled: true},
			{Sheet: "Laboratorio", Area: "Laboratorio", Range: "A2:E", Enabled: true},
			{Sheet: "Montaje", Area: "Montaje", Range: "A2:E", Enabled: true},
			{Sheet: "Calidad", Area: "Calidad", Range: "A2:E", Enabled: true},
			{
				Sheet: "Despacho", Area: "Despacho", Range: "A2:E", Enabled: true,
				StatusTransforms: map[string]string{
					"Italoptic":   "Despachado",
					"Trento":      "Despachado",
					"Sin Asignar": "En despacho",
				},
			},
			{Sheet: "Comercial", Area: "Comercial", Range: "A2:E", Enabled: false},
		},
		SyncIntervalMinutes:   60,
		SyncStartHour:         8,
		SyncEndHour:           18,
		SyncOverlapMinutes:    60,
		StatusCacheTTLSeconds: 300,
		DisplayTimezone:       "America/Santiago",
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.CanonicalSheet == "" {
		return fmt.Errorf("canonical_sheet is empty")
	}
	if c.TransactionSheet == "" {
		return fmt.Errorf("transaction_sheet is empty")
	}
	if c.SyncStartHour < 0 || c.SyncEndHour > 24 || c.SyncStartHour >= c.SyncEndHour {
		return fmt.Errorf("sync window [%d, %d) is invalid", c.SyncStartHour, c.SyncEndHour)
	}
	if c.SyncIntervalMinutes <= 0 {
		return fmt.Errorf("sync_interval_minutes must be positive")
	}
	if c.SyncOverlapMinutes < 0 || c.StatusCacheTTLSeconds < 0 {
		return fmt.Errorf("sync_overlap_minutes and status_cache_ttl_seconds must not be negative")
	}
	if _, err := sheets.ParseRange(c.CanonicalRange); err != nil {
		return fmt.Errorf("canonical_range: %w", err)
	}
	if _, err := sheets.ParseRange(c.TransactionRange); err != nil {
		return fmt.Errorf("transaction_range: %w", err)
	}
	seen := make(map[string]bool, len(c.SyncSources))
	for _, src := range c.SyncSources {
		if src.Sheet == "" || src.Area == "" {
			return fmt.Errorf("sync source needs sheet and area: %+v", src)
		}
		if seen[src.Sheet] {
			return fmt.Errorf("duplicate sync source sheet %q", src.Sheet)
		}
		if _, err := sheets.ParseRange(src.Range); err != nil {
			return fmt.Errorf("sync source %q range: %w", src.Sheet, err)
		}
		if src.Sheet == c.CanonicalSheet {
			return fmt.Errorf("sync source %q is the canonical sheet", src.Sheet)
		}
		seen[src.Sheet] = true
	}
	return nil
}

// Clone returns a deep copy; sources and their transform maps are not shared.
func (c *Config) Clone() *Config {
	out := *c
	out.SyncSources = make([]SyncSource, len(c.SyncSources))
	for i, src := range c.SyncSources {
		if src.StatusTransforms != nil {
			m := make(map[string]string, len(src.StatusTransforms))
			for k, v := range src.StatusTransforms {
				m[k] = v
			}
			src.StatusTransforms = m
		}
		out.SyncSources[i] = src
	}
	return &out
}

// EnabledSources returns the sync allow-list in configured order.
func (c *Config) EnabledSources() []SyncSource {
	var out []SyncSource
	for _, src := range c.SyncSources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// SourceForArea finds the configured log for an area (enabled or not).
func (c *Config) SourceForArea(area string) (SyncSource, bool) {
	for _, src := range c.SyncSources {
		if src.Area == area {
			return src, true
		}
	}
	return SyncSource{}, false
}
