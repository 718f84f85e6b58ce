package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SettingKind tags which field of SettingValue is populated.
type SettingKind string

const (
	KindString  SettingKind = "string"
	KindBoolean SettingKind = "boolean"
	KindInteger SettingKind = "integer"
	KindFloat   SettingKind = "float"
	KindJSON    SettingKind = "json"
	KindArray   SettingKind = "array"
)

// SettingValue is a typed system setting value.
type SettingValue struct {
	Kind   SettingKind     `json:"kind"`
	String string          `json:"string,omitempty"`
	Bool   bool            `json:"bool,omitempty"`
	Int    int64           `json:"int,omitempty"`
	Float  float64         `json:"float,omitempty"`
	JSON   json.RawMessage `json:"json,omitempty"`
}

// Setting is a named system setting.
type Setting struct {
	Key         string       `json:"key" db:"key"`
	Value       SettingValue `json:"value"`
	Description string       `json:"description,omitempty" db:"description"`
	IsPublic    bool         `json:"is_public" db:"is_public"`
}

// DecodeSetting resolves a raw stored string into a typed value.
func DecodeSetting(kind SettingKind, raw string) (SettingValue, error) {
	v := SettingValue{Kind: kind}
	switch kind {
	case KindBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			v.Bool = true
		case "0", "false", "no", "off", "":
		default:
			return v, fmt.Errorf("setting: invalid boolean %q", raw)
		}
	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return v, fmt.Errorf("setting: invalid integer %q: %w", raw, err)
		}
		v.Int = n
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return v, fmt.Errorf("setting: invalid float %q: %w", raw, err)
		}
		v.Float = f
	case KindJSON, KindArray:
		if !json.Valid([]byte(raw)) {
			return v, fmt.Errorf("setting: invalid %s value", kind)
		}
		v.JSON = json.RawMessage(raw)
	case KindString, "":
		v.Kind = KindString
		v.String = raw
	default:
		return v, fmt.Errorf("setting: unknown kind %q", kind)
	}
	return v, nil
}

// Encode renders the value back to its stored string form.
func (v SettingValue) Encode() string {
	switch v.Kind {
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindJSON, KindArray:
		return string(v.JSON)
	}
	return v.String
}
