package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Keys for the settings table. The values are the operator's last-used
// choices, offered back as defaults on the next run.
const (
	SettingSourceDir     = "last_source_dir"
	SettingTargetDir     = "last_target_dir"
	SettingITCTemplate   = "last_itc_template"
	SettingSalesTemplate = "last_sales_template"
)

// SetSetting stores or replaces one settings value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the stored value for key, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// LastUsedPaths bundles the path settings for one save or load.
type LastUsedPaths struct {
	SourceDir     string
	TargetDir     string
	ITCTemplate   string
	SalesTemplate string
}

// SaveLastUsed persists the paths of a completed session. Empty fields are
// skipped so a partial run does not erase prior choices.
func (s *Store) SaveLastUsed(ctx context.Context, paths LastUsedPaths) error {
	entries := map[string]string{
		SettingSourceDir:     paths.SourceDir,
		SettingTargetDir:     paths.TargetDir,
		SettingITCTemplate:   paths.ITCTemplate,
		SettingSalesTemplate: paths.SalesTemplate,
	}
	for key, value := range entries {
		if value == "" {
			continue
		}
		if err := s.SetSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// LastUsed loads the previously saved paths. Missing keys yield empty fields.
func (s *Store) LastUsed(ctx context.Context) (LastUsedPaths, error) {
	var paths LastUsedPaths
	var err error
	if paths.SourceDir, err = s.Setting(ctx, SettingSourceDir); err != nil {
		return paths, err
	}
	if paths.TargetDir, err = s.Setting(ctx, SettingTargetDir); err != nil {
		return paths, err
	}
	if paths.ITCTemplate, err = s.Setting(ctx, SettingITCTemplate); err != nil {
		return paths, err
	}
	if paths.SalesTemplate, err = s.Setting(ctx, SettingSalesTemplate); err != nil {
		return paths, err
	}
	return paths, nil
}
