package database

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"
	"time"
)

// Setting keys used by folio.
const (
	SettingTrashRetentionDays = "trash_retention_days"
	SettingWallpaperAssetID   = "wallpaper_asset_id"
)

// MaxTrashRetentionDays is the longest retention period a time.Duration
// can hold.
const MaxTrashRetentionDays = int(math.MaxInt64 / int64(24*time.Hour))

// GetSettings returns every stored setting.
func (d *Database) GetSettings(ctx context.Context) (map[string]string, error) {
	done := observeQuery("get_settings")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		done(err)
		return nil, storageErr("get settings", err)
	}
	defer func() { _ = rows.Close() }()

	settings := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			done(err)
			return nil, storageErr("get settings", err)
		}
		settings[k] = v
	}
	err = rows.Err()
	done(err)
	if err != nil {
		return nil, storageErr("get settings", err)
	}
	return settings, nil
}

// GetSetting returns one setting. The boolean is false when it is unset.
func (d *Database) GetSetting(ctx context.Context, key string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get setting", err)
	}
	return value, true, nil
}

// SetSetting upserts a single setting.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	return d.UpdateSettings(ctx, map[string]string{key: value})
}

// UpdateSettings upserts all given settings in one transaction.
func (d *Database) UpdateSettings(ctx context.Context, settings map[string]string) error {
	done := observeQuery("update_settings")

	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for k, v := range settings {
			if _, err := stmt.ExecContext(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	done(err)
	return err
}

// GetIntSetting returns a setting parsed as an integer, or def when unset or
// malformed.
func (d *Database) GetIntSetting(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := d.GetSetting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		return def, nil
	}
	return n, nil
}
