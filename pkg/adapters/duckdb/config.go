package duckdb

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific source configuration.
// Decoded from core.SourceConfig.Params using mapstructure.
type Params struct {
	// Extensions to install and load, e.g. "json" or "httpfs".
	Extensions []string `mapstructure:"extensions"`

	// Secrets for reading remote files (s3, gcs, r2).
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings applied to every connection, e.g. memory_limit or threads.
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret. Scope is a string or a list of strings.
type SecretConfig struct {
	Type     string `mapstructure:"type"`
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region,omitempty"`
	Scope    any    `mapstructure:"scope,omitempty"`
	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`
	URLStyle string `mapstructure:"url_style,omitempty"`
	UseSSL   *bool  `mapstructure:"use_ssl,omitempty"`
}

// parseParams decodes the free-form params map.
func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           params,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode duckdb params: %w", err)
	}
	return params, nil
}

// buildCreateSecretSQL renders a CREATE SECRET statement.
func buildCreateSecretSQL(s SecretConfig) string {
	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	if s.Region != "" {
		opts = append(opts, "REGION "+quote(s.Region))
	}
	if scope := scopeSQL(s.Scope); scope != "" {
		opts = append(opts, "SCOPE "+scope)
	}
	if s.KeyID != "" {
		opts = append(opts, "KEY_ID "+quote(s.KeyID))
	}
	if s.Secret != "" {
		opts = append(opts, "SECRET "+quote(s.Secret))
	}
	if s.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+quote(s.Endpoint))
	}
	if s.URLStyle != "" {
		opts = append(opts, "URL_STYLE "+quote(s.URLStyle))
	}
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(opts, ",\n    ") + "\n)"
}

func scopeSQL(scope any) string {
	var items []string
	switch v := scope.(type) {
	case string:
		return quote(v)
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	}
	if len(items) == 0 {
		return ""
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quote(item)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
