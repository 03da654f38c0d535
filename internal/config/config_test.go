package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/collector")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 6, cfg.CollectHour)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 8*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 700*time.Millisecond, cfg.Pacing)
	assert.Equal(t, 40, cfg.MaxPerSource)
	assert.Equal(t, 5, cfg.MaxPages)
	assert.Equal(t, 500, cfg.MinWords)
	assert.Equal(t, 3, cfg.MinScore)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/collector")
	t.Setenv("PORT", "9090")
	t.Setenv("COLLECT_HOUR", "23")
	t.Setenv("PACING_MS", "0")
	t.Setenv("MAX_PER_SOURCE", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 23, cfg.CollectHour)
	assert.Equal(t, time.Duration(0), cfg.Pacing)
	assert.Equal(t, 10, cfg.MaxPerSource)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"hour out of range", "COLLECT_HOUR", "24"},
		{"hour not a number", "COLLECT_HOUR", "noon"},
		{"negative pacing", "PACING_MS", "-1"},
		{"zero cap", "MAX_PER_SOURCE", "0"},
		{"zero timeout", "REQUEST_TIMEOUT_SEC", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/collector")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSourcesDefaultPlan(t *testing.T) {
	sources, err := Sources("")
	require.NoError(t, err)
	require.NotEmpty(t, sources)

	for _, s := range sources {
		assert.NotEmpty(t, s.URL)
		assert.NotEmpty(t, s.Agency)
		assert.NotEmpty(t, s.Keywords)
	}
}

func TestSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	data := `sources:
  - url: https://fapx.example.org/editais
    agency: FAPX
    keywords: [edital, chamada, call]
  - url: https://fapy.example.org/
    agency: FAPY
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	sources, err := Sources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "FAPX", sources[0].Agency)
	assert.Equal(t, []string{"edital", "chamada", "call"}, sources[0].Keywords)
	// Keywords fall back to the defaults when omitted.
	assert.Equal(t, []string{"edital", "chamada"}, sources[1].Keywords)
}

func TestSourcesFileValidation(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty list", "sources: []"},
		{"missing url", "sources:\n  - agency: FAPX"},
		{"missing agency", "sources:\n  - url: https://fapx.example.org/"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.data), 0o644))

			_, err := Sources(path)
			assert.Error(t, err)
		})
	}
}

func TestSourcesMissingFile(t *testing.T) {
	_, err := Sources(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
