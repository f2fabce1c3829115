package bls

import (
	"encoding/json"
	"fmt"

	"bls-go/internal/model"
)

// Per-book config files are encoded as a diff against the caller-supplied
// global defaults: a field equal to its default is omitted, and decoding
// re-applies defaults for omitted fields. This keeps {hash}/config.json
// small when a user never touches the reading preferences.

// ReaderDefaults are the global defaults a BookConfig is diffed against.
type ReaderDefaults struct {
	FontScale   float64 `toml:"font_scale"`
	Theme       string  `toml:"theme"`
	SearchScope string  `toml:"search_scope"`
	CaseMatch   bool    `toml:"case_match"`
}

// DefaultReaderDefaults matches a fresh install.
func DefaultReaderDefaults() ReaderDefaults {
	return ReaderDefaults{
		FontScale:   1.0,
		Theme:       "light",
		SearchScope: "book",
	}
}

// configDiff is the persisted shape: identity and progress fields are
// always present, preference fields only when they differ from defaults.
type configDiff struct {
	BookHash    string           `json:"book_hash"`
	Location    string           `json:"location,omitempty"`
	Percent     float64          `json:"percent,omitempty"`
	FontScale   *float64         `json:"font_scale,omitempty"`
	Theme       *string          `json:"theme,omitempty"`
	SearchScope *string          `json:"search_scope,omitempty"`
	CaseMatch   *bool            `json:"case_match,omitempty"`
	UpdatedAt   int64            `json:"updated_at"`
	Notes       []model.BookNote `json:"notes,omitempty"`
}

// EncodeConfig serializes cfg, omitting fields equal to defaults.
func EncodeConfig(cfg *model.BookConfig, defaults ReaderDefaults) ([]byte, error) {
	d := configDiff{
		BookHash:  cfg.BookHash,
		Location:  cfg.Location,
		Percent:   cfg.Percent,
		UpdatedAt: cfg.UpdatedAt,
		Notes:     cfg.Notes,
	}
	if cfg.FontScale != defaults.FontScale {
		d.FontScale = &cfg.FontScale
	}
	if cfg.Theme != defaults.Theme {
		d.Theme = &cfg.Theme
	}
	if cfg.SearchScope != defaults.SearchScope {
		d.SearchScope = &cfg.SearchScope
	}
	if cfg.CaseMatch != defaults.CaseMatch {
		d.CaseMatch = &cfg.CaseMatch
	}

	data, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding book config: %w", err)
	}
	return data, nil
}

// DecodeConfig deserializes data, re-applying defaults for omitted
// fields.
func DecodeConfig(data []byte, defaults ReaderDefaults) (*model.BookConfig, error) {
	var d configDiff
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding book config: %w", err)
	}

	cfg := &model.BookConfig{
		BookHash:    d.BookHash,
		Location:    d.Location,
		Percent:     d.Percent,
		FontScale:   defaults.FontScale,
		Theme:       defaults.Theme,
		SearchScope: defaults.SearchScope,
		CaseMatch:   defaults.CaseMatch,
		UpdatedAt:   d.UpdatedAt,
		Notes:       d.Notes,
	}
	if d.FontScale != nil {
		cfg.FontScale = *d.FontScale
	}
	if d.Theme != nil {
		cfg.Theme = *d.Theme
	}
	if d.SearchScope != nil {
		cfg.SearchScope = *d.SearchScope
	}
	if d.CaseMatch != nil {
		cfg.CaseMatch = *d.CaseMatch
	}
	return cfg, nil
}
