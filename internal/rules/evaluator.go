package rules

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/reference"
)

// Evaluator compiles and evaluates rule conditions with CEL. The
// environment is deliberately small: the four charge variables plus the
// two reference predicates, and nothing else — no ambient state, no I/O.
type Evaluator struct {
	env *cel.Env
}

// CompiledRule holds a rule and its pre-compiled CEL program. A rule
// whose condition failed to compile carries the error instead of a
// program and never triggers.
type CompiledRule struct {
	Rule       domain.Rule
	Program    cel.Program
	CompileErr error
}

// NewEvaluator creates a condition evaluator bound to the given
// reference lists. The predicates read the lists' active state, so a
// reference reload takes effect without recompiling rules.
func NewEvaluator(lists *reference.Lists) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("email", cel.StringType),
		cel.Function("isRiskyDomain",
			cel.Overload("isRiskyDomain_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					s, ok := val.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					return types.Bool(lists.IsRiskyDomain(s))
				}),
			),
		),
		cel.Function("isSupportedCurrency",
			cel.Overload("isSupportedCurrency_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					s, ok := val.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					return types.Bool(lists.IsSupportedCurrency(s))
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// Compile compiles a rule's condition. Compile failures are returned, not
// swallowed — the store decides to keep the rule as never-triggering.
func (e *Evaluator) Compile(rule domain.Rule) *CompiledRule {
	compiled := &CompiledRule{Rule: rule}

	ast, issues := e.env.Compile(rule.Condition)
	if issues != nil && issues.Err() != nil {
		compiled.CompileErr = fmt.Errorf("rule %s: %w", rule.Label, issues.Err())
		return compiled
	}

	if ast.OutputType() != cel.BoolType {
		compiled.CompileErr = fmt.Errorf("rule %s: condition must return bool, got %s", rule.Label, ast.OutputType())
		return compiled
	}

	program, err := e.env.Program(ast)
	if err != nil {
		compiled.CompileErr = fmt.Errorf("rule %s: %w", rule.Label, err)
		return compiled
	}

	compiled.Program = program
	return compiled
}

// Evaluate decides whether the rule's condition holds for the charge.
// Every failure path — compile error, runtime type error, missing
// variable, panic — counts as "not triggered" and is logged, never
// propagated, so one malformed rule cannot abort scoring of the rest.
func (e *Evaluator) Evaluate(compiled *CompiledRule, charge *domain.Charge) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("condition evaluation panicked",
				"rule", compiled.Rule.Label,
				"panic", r,
			)
			triggered = false
		}
	}()

	if compiled.CompileErr != nil {
		slog.Warn("condition not compiled",
			"rule", compiled.Rule.Label,
			"error", compiled.CompileErr,
		)
		return false
	}

	// Fresh activation per evaluation; conditions can never mutate it.
	activation := map[string]any{
		"amount":   charge.Amount,
		"currency": charge.Currency,
		"source":   charge.Source,
		"email":    charge.Email,
	}

	out, _, err := compiled.Program.Eval(activation)
	if err != nil {
		slog.Warn("condition evaluation failed",
			"rule", compiled.Rule.Label,
			"error", err,
		)
		return false
	}

	b, ok := out.(types.Bool)
	if !ok {
		slog.Warn("condition returned non-boolean",
			"rule", compiled.Rule.Label,
			"type", out.Type().TypeName(),
		)
		return false
	}

	return bool(b)
}
