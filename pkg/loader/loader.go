// Package loader decodes vehicle state documents into ordered values and
// encodes tree values for export.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a user supplied format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatYAML, FormatJSON, FormatTOML, FormatCBOR:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q: valid values are auto, yaml, json, toml, cbor", s)
	}
}

// FormatFromPath derives the format from a file extension, falling back to auto.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSON
	case ".toml":
		return FormatTOML
	case ".cbor":
		return FormatCBOR
	default:
		return FormatAuto
	}
}

// Sniff guesses the format of raw document bytes.
// JSON is recognised by a leading brace or bracket, TOML by a section header
// or a top-level "key = value" line; everything else is treated as YAML.
func Sniff(data []byte) Format {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}
	if isLikelyTOML(trimmed) {
		return FormatTOML
	}
	if strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	return FormatYAML
}

func isLikelyTOML(input string) bool {
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[[") {
			return true
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inner := strings.Trim(line, "[]")
			return inner != "" && !strings.ContainsAny(inner, "\",{} ")
		}
		key, _, ok := strings.Cut(line, "=")
		if !ok {
			return false
		}
		return !strings.ContainsAny(strings.TrimSpace(key), " :{[\"")
	}
	return false
}

// Decode parses a document. Mappings become Map, sequences []any, and
// scalars keep their natural Go type (string, int64, float64, bool, time.Time).
func Decode(data []byte, format Format) (any, error) {
	if format == FormatAuto || format == "" {
		format = Sniff(data)
	}
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatJSON:
		return decodeJSON(data)
	case FormatTOML:
		return decodeTOML(data)
	case FormatCBOR:
		return decodeCBOR(data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

// DecodeFile reads and decodes a document, using the extension to pick a format
// when format is auto.
func DecodeFile(path string, format Format) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format == FormatAuto || format == "" {
		format = FormatFromPath(path)
	}
	return Decode(data, format)
}

func decodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Map{}, nil
	}
	return FromYAMLNode(doc.Content[0])
}

// FromYAMLNode converts a decoded yaml.Node into ordered values.
func FromYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.MappingNode:
		m := make(Map, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			// last one wins on duplicate keys
			m = m.Set(n.Content[i].Value, val)
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := FromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return FromYAMLNode(n.Alias)
	case yaml.ScalarNode:
		var val any
		if err := n.Decode(&val); err != nil {
			return n.Value, nil
		}
		if i, ok := val.(int); ok {
			return int64(i), nil
		}
		return val, nil
	default:
		return nil, nil
	}
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := readJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("json: unexpected data after top-level value")
	}
	return val, nil
}

// readJSONValue walks the token stream so object keys keep their order.
// yaml.v3 is not used here: it rejects the JSON escapes "\/" and UTF-16
// surrogate pairs.
func readJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := Map{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m = m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return t, nil
	}
}

// TOML tables carry no reliable order once decoded, so keys are sorted.
func decodeTOML(data []byte) (any, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("toml: %w", err)
	}
	return fromPlain(raw), nil
}
