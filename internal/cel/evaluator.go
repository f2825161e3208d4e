// Package cel evaluates the CEL rules that guard attribute writes.
package cel

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	celext "github.com/google/cel-go/ext"
)

// ErrRuleRejected is returned when a rule evaluates to false.
var ErrRuleRejected = errors.New("rejected by rule")

// Evaluator compiles and evaluates CEL expressions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates a new CEL evaluator with standard library functions.
func NewEvaluator() (*Evaluator, error) {
	env, err := newStandardCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// newStandardCELEnv declares the candidate value as both "value" and "_".
func newStandardCELEnv(opts ...cel.EnvOption) (*cel.Env, error) {
	allOpts := make([]cel.EnvOption, 0, 5+len(opts))
	allOpts = append(allOpts,
		cel.Variable("value", cel.DynType),
		cel.Variable("_", cel.DynType),
		celext.Strings(),
		celext.Lists(),
		celext.Math(),
	)
	allOpts = append(allOpts, opts...)
	return cel.NewEnv(allOpts...)
}

// Rule is a compiled boolean predicate over a candidate value.
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile parses and type checks expr. The expression must yield a bool.
func (e *Evaluator) Compile(expr string) (*Rule, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(types.BoolType) && !out.IsExactType(types.DynType) {
		return nil, fmt.Errorf("rule %q must evaluate to bool, not %s", expr, out)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

func (r *Rule) String() string { return r.expr }

// Check evaluates the rule against value. It returns nil when the rule holds.
func (r *Rule) Check(value any) error {
	out, _, err := r.prg.Eval(map[string]any{
		"value": value,
		"_":     value,
	})
	if err != nil {
		return fmt.Errorf("eval error: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return fmt.Errorf("rule %q did not evaluate to bool", r.expr)
	}
	if !ok {
		return fmt.Errorf("%w %s", ErrRuleRejected, r.expr)
	}
	return nil
}
