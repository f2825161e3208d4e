package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry is a single key/value pair of an ordered mapping.
type Entry struct {
	Key   string
	Value any
}

// Map is a mapping that remembers the order its keys were declared in.
// Source documents decode into Map so the tree can keep insertion order.
type Map []Entry

// Get returns the value stored under key.
func (m Map) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, appending a new entry when key is absent.
func (m Map) Set(key string, value any) Map {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, Entry{Key: key, Value: value})
}

// Keys returns the keys in declaration order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// MarshalJSON keeps declaration order in the encoded object.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML keeps declaration order in the encoded mapping.
func (m Map) MarshalYAML() (interface{}, error) {
	return toYAMLNode(m)
}

func toYAMLNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range t {
			val, err := toYAMLNode(e.Value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", e.Key, err)
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
				val,
			)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range t {
			val, err := toYAMLNode(elem)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, val)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return node, nil
	}
}

// Plain converts ordered maps into map[string]any recursively, for encoders
// that have no notion of key order.
func Plain(v any) any {
	switch t := v.(type) {
	case Map:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = Plain(elem)
		}
		return out
	default:
		return v
	}
}

// fromPlain converts decoded map[string]any values into Map with sorted keys.
func fromPlain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, 0, len(keys))
		for _, k := range keys {
			out = append(out, Entry{Key: k, Value: fromPlain(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = fromPlain(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = fromPlain(elem)
		}
		return out
	default:
		return v
	}
}
