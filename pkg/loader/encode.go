package loader

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// cborEnc uses Core Deterministic Encoding so the same subtree always
// produces identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() { //nolint:gochecknoinits // CBOR modes are immutable after construction
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("loader: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("loader: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a value (usually an exported subtree) in the given format.
// TOML requires a table at the top level, so scalars and sequences are
// rejected and callers wrap them first.
func Encode(v any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return append(out, '\n'), nil
	case FormatYAML, FormatAuto, "":
		out, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		return out, nil
	case FormatTOML:
		plain := Plain(v)
		if _, ok := plain.(map[string]any); !ok {
			return nil, fmt.Errorf("toml: top-level value must be a table, got %T", v)
		}
		out, err := toml.Marshal(plain)
		if err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
		return out, nil
	case FormatCBOR:
		out, err := cborEnc.Marshal(Plain(v))
		if err != nil {
			return nil, fmt.Errorf("cbor: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

func decodeCBOR(data []byte) (any, error) {
	var raw any
	if err := cborDec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	return fromPlain(normalizeCBOR(raw)), nil
}

// normalizeCBOR folds CBOR integer types onto int64 like the other decoders.
func normalizeCBOR(v any) any {
	switch t := v.(type) {
	case uint64:
		if t <= 1<<63-1 {
			return int64(t)
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeCBOR(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeCBOR(val)
		}
		return t
	default:
		return v
	}
}
