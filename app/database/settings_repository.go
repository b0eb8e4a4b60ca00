package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (r *settingsRepository) SetMany(values map[string]string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for key, value := range values {
		_, err := tx.Exec(`
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now)
		if err != nil {
			return fmt.Errorf("failed to set setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

func (r *settingsRepository) GetInt(key string, def int) int {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func (r *settingsRepository) GetFloat(key string, def float64) float64 {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return f
}

func (r *settingsRepository) GetBool(key string, def bool) bool {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return b
}

// GetIntMap reads a JSON object of string keys to integer values, such as the
// per-type max-age ceilings. A missing key yields an empty map.
func (r *settingsRepository) GetIntMap(key string) (map[string]int, error) {
	value, ok, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]int{}, nil
	}

	var m map[string]int
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil, fmt.Errorf("failed to parse setting %q as map: %w", key, err)
	}
	return m, nil
}
