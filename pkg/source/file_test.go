package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/ccs/pkg/loader"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileFetch(t *testing.T) {
	path := writeFile(t, "state.yaml", "vehicle1:\n  mileage: 1234\n")
	f := NewFile("garage", path, loader.FormatAuto)

	data, format, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loader.FormatYAML, format)
	assert.Equal(t, "vehicle1:\n  mileage: 1234\n", string(data))
	assert.Equal(t, "garage", f.Name())
}

func TestFileFetchSniffsUnknownExtension(t *testing.T) {
	path := writeFile(t, "state.txt", `{"vehicle1": {"mileage": 1}}`)
	_, format, err := NewFile("garage", path, loader.FormatAuto).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loader.FormatJSON, format)
}

func TestFileFetchMissing(t *testing.T) {
	_, _, err := NewFile("garage", filepath.Join(t.TempDir(), "nope.yaml"), loader.FormatAuto).Fetch(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileWriteValueYAMLKeepsComments(t *testing.T) {
	path := writeFile(t, "state.yaml", `# garage state
vehicle1:
  climatization:
    target_temperature: 21.5 # celsius
  mileage: 1234
`)
	f := NewFile("garage", path, loader.FormatAuto)
	require.NoError(t, f.WriteValue(context.Background(), []string{"vehicle1", "climatization", "target_temperature"}, 23.0))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "# garage state")
	assert.Contains(t, string(out), "target_temperature: 23")
	assert.Contains(t, string(out), "# celsius")

	doc, err := loader.Decode(out, loader.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"vehicle1": map[string]any{
			"climatization": map[string]any{"target_temperature": int64(23)},
			"mileage":       int64(1234),
		},
	}, loader.Plain(doc))
}

func TestFileWriteValueReservedValueKey(t *testing.T) {
	path := writeFile(t, "state.yaml", "vehicle1:\n  mode:\n    _value: eco\n    _unit: \"\"\n")
	f := NewFile("garage", path, loader.FormatAuto)
	require.NoError(t, f.WriteValue(context.Background(), []string{"vehicle1", "mode"}, "sport"))

	doc, err := loader.DecodeFile(path, loader.FormatAuto)
	require.NoError(t, err)
	mode, _ := doc.(loader.Map).Get("vehicle1")
	v, _ := mode.(loader.Map).Get("mode")
	got, _ := v.(loader.Map).Get("_value")
	assert.Equal(t, "sport", got)
}

func TestFileWriteValueJSON(t *testing.T) {
	path := writeFile(t, "state.json", `{"vehicle1": {"mileage": 1, "doors": ["open", "closed"]}}`)
	f := NewFile("garage", path, loader.FormatAuto)
	require.NoError(t, f.WriteValue(context.Background(), []string{"vehicle1", "doors", "1"}, "open"))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := loader.Decode(out, loader.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"vehicle1": map[string]any{"mileage": int64(1), "doors": []any{"open", "open"}},
	}, loader.Plain(doc))
}

func TestFileWriteValueTOML(t *testing.T) {
	path := writeFile(t, "state.toml", "[vehicle1]\nmileage = 1\nlocked = true\n")
	f := NewFile("garage", path, loader.FormatAuto)
	require.NoError(t, f.WriteValue(context.Background(), []string{"vehicle1", "locked"}, false))

	doc, err := loader.DecodeFile(path, loader.FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"vehicle1": map[string]any{"mileage": int64(1), "locked": false},
	}, loader.Plain(doc))
}

func TestFileWriteValueMissingPath(t *testing.T) {
	path := writeFile(t, "state.yaml", "vehicle1:\n  mileage: 1\n")
	f := NewFile("garage", path, loader.FormatAuto)

	err := f.WriteValue(context.Background(), []string{"vehicle1", "range"}, int64(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/vehicle1/range not found")

	err = NewFile("garage", writeFile(t, "s.json", `{"a": {}}`), loader.FormatAuto).
		WriteValue(context.Background(), []string{"a", "b"}, int64(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/a/b not found")
}
