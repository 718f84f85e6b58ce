package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/service/settings"
)

// SettingsRepo implements settings.Repository against PostgreSQL.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

func scanSetting(row rowScanner) (*domain.Setting, error) {
	var s domain.Setting
	var kind, raw string
	if err := row.Scan(&s.Key, &raw, &kind, &s.Description, &s.IsPublic); err != nil {
		return nil, err
	}
	v, err := domain.DecodeSetting(domain.SettingKind(kind), raw)
	if err != nil {
		return nil, fmt.Errorf("decode setting %s: %w", s.Key, err)
	}
	s.Value = v
	return &s, nil
}

const settingColumns = `key, value, type, COALESCE(description, ''), is_public`

func (r *SettingsRepo) Get(ctx context.Context, key string) (*domain.Setting, error) {
	s, err := scanSetting(r.db.QueryRowContext(ctx,
		`SELECT `+settingColumns+` FROM system_settings WHERE key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.Setting) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_settings (key, value, type, description, is_public, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
		    is_public = EXCLUDED.is_public, updated_at = NOW()
	`, s.Key, s.Value.Encode(), string(s.Value.Kind), nullString(s.Description), s.IsPublic)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (r *SettingsRepo) List(ctx context.Context, publicOnly bool) ([]domain.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+settingColumns+` FROM system_settings
		WHERE (NOT $1 OR is_public)
		ORDER BY key
	`, publicOnly)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []domain.Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
