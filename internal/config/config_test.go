package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/ccs/pkg/source"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlConfig = `
refresh_interval: 60s
cache:
  max_age: 5m
sources:
  - name: garage
    type: file
    path: vehicles.yaml
  - name: fleet
    type: http
    url: https://example.invalid/state
writable:
  - path: /garage/vehicle1/climatization/target_temperature
    type: float
    rule: "value >= 15.5 && value <= 30.0"
  - path: /garage/vehicle1/mode
    choices: [eco, sport]
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "ccs.yaml", yamlConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.MaxAge)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "garage", cfg.Sources[0].Name)
	assert.Equal(t, SourceHTTP, cfg.Sources[1].Type)
	require.Len(t, cfg.Writable, 2)
	assert.Equal(t, []string{"eco", "sport"}, cfg.Writable[1].Choices)
	assert.Equal(t, filepath.Dir(path), cfg.Dir)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "ccs.yaml", "sources:\n  - name: a\n    type: file\n    path: a.yaml\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MaxAge)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CCS_REFRESH_INTERVAL", "15s")
	path := writeConfig(t, "ccs.yaml", "refresh_interval: 60s\nsources:\n  - name: a\n    type: file\n    path: a.yaml\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval)
}

func TestLoadJSONWithComments(t *testing.T) {
	path := writeConfig(t, "ccs.json", `{
  // local garage
  "sources": [
    {"name": "garage", "type": "file", "path": "/tmp/vehicles.json",},
  ],
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "/tmp/vehicles.json", cfg.Sources[0].Path)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "ccs.toml", "refresh_interval = \"2m\"\n\n[[sources]]\nname = \"garage\"\ntype = \"file\"\npath = \"v.toml\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval)
	require.Len(t, cfg.Sources, 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	require.ErrorIs(t, err, ErrLoad)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrLoad)

	_, err = Load(writeConfig(t, "bad.yaml", "sources: [\n"))
	require.ErrorIs(t, err, ErrLoad)
}

func TestValidate(t *testing.T) {
	file := SourceConfig{Name: "a", Type: SourceFile, Path: "a.yaml"}
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"no sources", Config{}, "sources"},
		{"missing name", Config{Sources: []SourceConfig{{Type: SourceFile, Path: "x"}}}, "sources[0].name"},
		{"duplicate", Config{Sources: []SourceConfig{file, file}}, "sources[1].name"},
		{"unknown type", Config{Sources: []SourceConfig{{Name: "a", Type: "ftp"}}}, "sources[0].type"},
		{"file without path", Config{Sources: []SourceConfig{{Name: "a", Type: SourceFile}}}, "sources[0].path"},
		{"bad format", Config{Sources: []SourceConfig{{Name: "a", Type: SourceFile, Path: "x", Format: "xml"}}}, "sources[0].format"},
		{"http without url", Config{Sources: []SourceConfig{{Name: "a", Type: SourceHTTP}}}, "sources[0].url"},
		{"negative interval", Config{RefreshInterval: -time.Second, Sources: []SourceConfig{file}}, "refresh_interval"},
		{"empty writable path", Config{Sources: []SourceConfig{file}, Writable: []WritableConfig{{Path: "/"}}}, "writable[0].path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestBuildSources(t *testing.T) {
	cfg := &Config{
		Dir: "/etc/ccs",
		Sources: []SourceConfig{
			{Name: "garage", Type: SourceFile, Path: "vehicles.yaml"},
			{Name: "fleet", Type: SourceHTTP, URL: "https://example.invalid"},
		},
	}
	srcs, err := cfg.BuildSources("/tmp/token")
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.IsType(t, &source.File{}, srcs[0])
	assert.IsType(t, &source.HTTP{}, srcs[1])
	assert.Equal(t, "fleet", srcs[1].Name())
}

func TestBuildWritables(t *testing.T) {
	cfg := &Config{Writable: []WritableConfig{
		{Path: "/a/temp", Type: "float", Rule: "value <= 30.0"},
		{Path: "/a/mode", Choices: []string{"eco"}},
	}}
	ws, err := cfg.BuildWritables()
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, tree.TypeFloat, ws[0].Type)
	require.NotNil(t, ws[0].Validate)
	require.NoError(t, ws[0].Validate(21.0))
	require.Error(t, ws[0].Validate(31.0))
	assert.Equal(t, tree.TypeString, ws[1].Type)
	assert.Nil(t, ws[1].Validate)
}

func TestBuildWritablesErrors(t *testing.T) {
	tests := []struct {
		name  string
		w     WritableConfig
		field string
	}{
		{"bad type", WritableConfig{Path: "/a", Type: "date"}, "writable[0].type"},
		{"bad rule", WritableConfig{Path: "/a", Rule: "value >"}, "writable[0].rule"},
		{"non bool rule", WritableConfig{Path: "/a", Rule: "1 + 1"}, "writable[0].rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Writable: []WritableConfig{tt.w}}
			_, err := cfg.BuildWritables()
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestTreeOptions(t *testing.T) {
	path := writeConfig(t, "ccs.yaml", yamlConfig)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "vehicles.yaml"), []byte("garage:\n  vehicle1:\n    mode: eco\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Sources = cfg.Sources[:1]

	opts, err := cfg.TreeOptions("")
	require.NoError(t, err)
	tr := tree.New(opts...)
	require.NoError(t, tr.Refresh(t.Context()))

	n, ok := tr.Lookup("/garage/vehicle1/mode")
	require.True(t, ok)
	attr := n.(tree.Attribute)
	assert.True(t, attr.Writable())
	require.NoError(t, attr.SetValue(t.Context(), "sport"))
	assert.Equal(t, "sport", attr.Value())
}
