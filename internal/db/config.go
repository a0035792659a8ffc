package db

import (
	"encoding/json"
	"fmt"
	"strconv"

	"lens-tracker/internal/config"
	"lens-tracker/internal/logger"
)

// LoadConfig reads config from SQLite. If empty, returns defaults.
// Bootstrap settings (port, store driver, paths) are not persisted; they
// come from flags and the environment.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["canonical_sheet"]; ok && v != "" {
		cfg.CanonicalSheet = v
	}
	if v, ok := m["canonical_range"]; ok && v != "" {
		cfg.CanonicalRange = v
	}
	if v, ok := m["transaction_sheet"]; ok && v != "" {
		cfg.TransactionSheet = v
	}
	if v, ok := m["transaction_range"]; ok && v != "" {
		cfg.TransactionRange = v
	}
	if v, ok := m["sync_sources"]; ok {
		var sources []config.SyncSource
		if err := json.Unmarshal([]byte(v), &sources); err == nil {
			cfg.SyncSources = sources
		} else {
			logger.Warn("DB", fmt.Sprintf("Ignoring stored sync_sources: %v", err))
		}
	}
	if v, ok := m["sync_interval_minutes"]; ok {
		cfg.SyncIntervalMinutes, _ = strconv.Atoi(v)
	}
	if v, ok := m["sync_start_hour"]; ok {
		cfg.SyncStartHour, _ = strconv.Atoi(v)
	}
	if v, ok := m["sync_end_hour"]; ok {
		cfg.SyncEndHour, _ = strconv.Atoi(v)
	}
	if v, ok := m["sync_overlap_minutes"]; ok {
		cfg.SyncOverlapMinutes, _ = strconv.Atoi(v)
	}
	if v, ok := m["status_cache_ttl_seconds"]; ok {
		cfg.StatusCacheTTLSeconds, _ = strconv.Atoi(v)
	}
	if v, ok := m["display_timezone"]; ok && v != "" {
		cfg.DisplayTimezone = v
	}

	return cfg
}

// SaveConfig writes config to SQLite (upsert all persisted fields).
func (d *DB) SaveConfig(cfg *config.Config) error {
	sourcesJSON := "[]"
	if b, err := json.Marshal(cfg.SyncSources); err == nil {
		sourcesJSON = string(b)
	}

	pairs := map[string]string{
		"canonical_sheet":          cfg.CanonicalSheet,
		"canonical_range":          cfg.CanonicalRange,
		"transaction_sheet":        cfg.TransactionSheet,
		"transaction_range":        cfg.TransactionRange,
		"sync_sources":             sourcesJSON,
		"sync_interval_minutes":    strconv.Itoa(cfg.SyncIntervalMinutes),
		"sync_start_hour":          strconv.Itoa(cfg.SyncStartHour),
		"sync_end_hour":            strconv.Itoa(cfg.SyncEndHour),
		"sync_overlap_minutes":     strconv.Itoa(cfg.SyncOverlapMinutes),
		"status_cache_ttl_seconds": strconv.Itoa(cfg.StatusCacheTTLSeconds),
		"display_timezone":         cfg.DisplayTimezone,
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
