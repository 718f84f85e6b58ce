// Package settings stores typed runtime settings that operators can change
// without a redeploy.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/ignite/mailcore/internal/domain"
)

// Known setting keys.
const (
	KeyWarmupEnabled  = "warmup_enabled"
	KeyCleanupEnabled = "cleanup_enabled"
	KeyRetentionDays  = "retention_days"
	KeyBlacklistZones = "blacklist_zones"
)

var (
	ErrNotFound     = errors.New("setting not found")
	ErrInvalidKey   = errors.New("setting key must be lowercase letters, digits, dots or underscores")
	ErrInvalidValue = errors.New("invalid setting value")
)

var keyRe = regexp.MustCompile(`^[a-z0-9_.]{1,100}$`)

// Repository defines the data access contract for settings. Values are
// decoded to their kind at this boundary.
type Repository interface {
	// Get returns a setting. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (*domain.Setting, error)

	// Upsert creates or replaces a setting.
	Upsert(ctx context.Context, s *domain.Setting) error

	// List returns settings, optionally only public ones.
	List(ctx context.Context, publicOnly bool) ([]domain.Setting, error)
}

// Service reads and writes settings.
type Service struct {
	repo Repository
}

// NewService creates a settings service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the setting for key.
func (s *Service) Get(ctx context.Context, key string) (*domain.Setting, error) {
	return s.repo.Get(ctx, key)
}

// Set stores raw under key after decoding it as kind.
func (s *Service) Set(ctx context.Context, key string, kind domain.SettingKind, raw, description string, public bool) (*domain.Setting, error) {
	if !keyRe.MatchString(key) {
		return nil, ErrInvalidKey
	}
	v, err := domain.DecodeSetting(kind, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if v.Kind == domain.KindArray {
		var arr []any
		if err := json.Unmarshal(v.JSON, &arr); err != nil {
			return nil, fmt.Errorf("%w: array value must be a JSON array", ErrInvalidValue)
		}
	}
	st := &domain.Setting{Key: key, Value: v, Description: description, IsPublic: public}
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("save setting: %w", err)
	}
	return st, nil
}

// List returns every setting, or only public ones.
func (s *Service) List(ctx context.Context, publicOnly bool) ([]domain.Setting, error) {
	return s.repo.List(ctx, publicOnly)
}

// lookup returns the value for key and whether it exists with the wanted kind.
// Lookup failures other than ErrNotFound are returned.
func (s *Service) lookup(ctx context.Context, key string, kind domain.SettingKind) (domain.SettingValue, bool, error) {
	st, err := s.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return domain.SettingValue{}, false, nil
	}
	if err != nil {
		return domain.SettingValue{}, false, err
	}
	return st.Value, st.Value.Kind == kind, nil
}

// Bool returns a boolean setting or def when absent or of another kind.
func (s *Service) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.lookup(ctx, key, domain.KindBoolean)
	if err != nil || !ok {
		return def, err
	}
	return v.Bool, nil
}

// Int returns an integer setting or def when absent or of another kind.
func (s *Service) Int(ctx context.Context, key string, def int64) (int64, error) {
	v, ok, err := s.lookup(ctx, key, domain.KindInteger)
	if err != nil || !ok {
		return def, err
	}
	return v.Int, nil
}

// Float returns a float setting or def when absent or of another kind.
func (s *Service) Float(ctx context.Context, key string, def float64) (float64, error) {
	v, ok, err := s.lookup(ctx, key, domain.KindFloat)
	if err != nil || !ok {
		return def, err
	}
	return v.Float, nil
}

// String returns a string setting or def when absent or of another kind.
func (s *Service) String(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.lookup(ctx, key, domain.KindString)
	if err != nil || !ok {
		return def, err
	}
	return v.String, nil
}

// Strings returns an array setting of strings or def when absent, of another
// kind, or not an array of strings.
func (s *Service) Strings(ctx context.Context, key string, def []string) ([]string, error) {
	v, ok, err := s.lookup(ctx, key, domain.KindArray)
	if err != nil || !ok {
		return def, err
	}
	var out []string
	if err := json.Unmarshal(v.JSON, &out); err != nil {
		return def, nil
	}
	return out, nil
}

// JSON decodes a json or array setting into dst. It reports whether the
// setting existed.
func (s *Service) JSON(ctx context.Context, key string, dst any) (bool, error) {
	st, err := s.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if st.Value.Kind != domain.KindJSON && st.Value.Kind != domain.KindArray {
		return false, fmt.Errorf("setting %s is %s, not json", key, st.Value.Kind)
	}
	return true, json.Unmarshal(st.Value.JSON, dst)
}
