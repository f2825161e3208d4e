package config

import (
	"fmt"
	"path/filepath"

	"github.com/oakwood-commons/ccs/internal/cel"
	"github.com/oakwood-commons/ccs/pkg/loader"
	"github.com/oakwood-commons/ccs/pkg/source"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

// BuildSources instantiates the configured sources. defaultTokenFile is used
// by http sources that do not name their own token file.
func (c *Config) BuildSources(defaultTokenFile string) ([]tree.Source, error) {
	out := make([]tree.Source, 0, len(c.Sources))
	for i, s := range c.Sources {
		switch s.Type {
		case SourceFile:
			format, err := loader.ParseFormat(s.Format)
			if err != nil {
				return nil, &ConfigurationError{Field: fmt.Sprintf("sources[%d].format", i), Reason: err.Error()}
			}
			out = append(out, source.NewFile(s.Name, c.resolve(s.Path), format))
		case SourceHTTP:
			token := s.TokenFile
			if token == "" {
				token = defaultTokenFile
			} else {
				token = c.resolve(token)
			}
			out = append(out, source.NewHTTP(s.Name, s.URL, token))
		default:
			return nil, &ConfigurationError{Field: fmt.Sprintf("sources[%d].type", i), Reason: fmt.Sprintf("unknown source type %q", s.Type)}
		}
	}
	return out, nil
}

// BuildWritables compiles the writable declarations, including their rules.
func (c *Config) BuildWritables() ([]tree.Writable, error) {
	if len(c.Writable) == 0 {
		return nil, nil
	}
	eval, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	out := make([]tree.Writable, 0, len(c.Writable))
	for i, w := range c.Writable {
		field := fmt.Sprintf("writable[%d]", i)
		vt, err := tree.ParseValueType(w.Type)
		if err != nil {
			return nil, &ConfigurationError{Field: field + ".type", Reason: err.Error()}
		}
		spec := tree.Writable{Path: w.Path, Type: vt, Choices: w.Choices}
		if w.Rule != "" {
			rule, err := eval.Compile(w.Rule)
			if err != nil {
				return nil, &ConfigurationError{Field: field + ".rule", Reason: err.Error()}
			}
			spec.Validate = rule.Check
		}
		out = append(out, spec)
	}
	return out, nil
}

// TreeOptions turns the configuration into options for tree.New.
func (c *Config) TreeOptions(defaultTokenFile string) ([]tree.Option, error) {
	sources, err := c.BuildSources(defaultTokenFile)
	if err != nil {
		return nil, err
	}
	writables, err := c.BuildWritables()
	if err != nil {
		return nil, err
	}
	opts := make([]tree.Option, 0, len(sources)+len(writables)+1)
	for _, s := range sources {
		opts = append(opts, tree.WithSource(s))
	}
	for _, w := range writables {
		opts = append(opts, tree.WithWritable(w))
	}
	opts = append(opts, tree.WithCacheMaxAge(c.Cache.MaxAge))
	return opts, nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
