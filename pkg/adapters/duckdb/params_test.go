package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{
			name: "empty",
			want: &Params{},
		},
		{
			name: "weakly typed settings",
			input: map[string]any{
				"extensions": []any{"json"},
				"settings":   map[string]any{"threads": 2, "memory_limit": "1GB"},
			},
			want: &Params{
				Extensions: []string{"json"},
				Settings:   map[string]string{"threads": "2", "memory_limit": "1GB"},
			},
		},
		{
			name: "secret scope list",
			input: map[string]any{
				"secrets": []any{map[string]any{"type": "s3", "scope": []any{"s3://a", "s3://b"}, "use_ssl": false}},
			},
			want: &Params{
				Secrets: []SecretConfig{{Type: "s3", Scope: []any{"s3://a", "s3://b"}, UseSSL: new(bool)}},
			},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"extension": []any{"json"}},
			wantErr: "extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingStatements(t *testing.T) {
	got := settingStatements(map[string]string{
		"threads":      "2",
		"memory_limit": "1GB",
		"search_path":  "it's",
	})
	assert.Equal(t, []string{
		"SET memory_limit = '1GB'",
		"SET search_path = 'it''s'",
		"SET threads = '2'",
	}, got)
	assert.Empty(t, settingStatements(nil))
}

func TestBuildCreateSecretSQL(t *testing.T) {
	ssl := true
	tests := []struct {
		name   string
		secret SecretConfig
		want   string
	}{
		{
			name:   "credential chain",
			secret: SecretConfig{Type: "s3", Provider: "credential_chain"},
			want:   "CREATE SECRET (\n    TYPE s3,\n    PROVIDER credential_chain\n)",
		},
		{
			name:   "single scope",
			secret: SecretConfig{Type: "gcs", Scope: "gs://bucket"},
			want:   "CREATE SECRET (\n    TYPE gcs,\n    SCOPE 'gs://bucket'\n)",
		},
		{
			name: "keys and endpoint",
			secret: SecretConfig{
				Type: "r2", KeyID: "k", Secret: "s'x", Endpoint: "http://minio:9000",
				URLStyle: "path", UseSSL: &ssl, Scope: []string{"r2://a", "r2://b"},
			},
			want: "CREATE SECRET (\n    TYPE r2,\n    SCOPE ('r2://a', 'r2://b'),\n    KEY_ID 'k',\n    SECRET 's''x',\n" +
				"    ENDPOINT 'http://minio:9000',\n    URL_STYLE 'path',\n    USE_SSL true\n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.secret))
		})
	}
}
