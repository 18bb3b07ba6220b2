package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/edvin/agentplane/internal/apperr"
)

// PromotionGate is an optional CEL expression over a passing run's scores,
// e.g. `scores.accuracy >= 0.9 && scores.toxicity < 0.01`. A nil gate, or one
// built from an empty expression, admits every passing run.
type PromotionGate struct {
	expr    string
	program cel.Program
}

// NewPromotionGate compiles expr once at startup. The expression sees a
// single variable, scores: map(string, dyn), and must evaluate to bool.
func NewPromotionGate(expr string) (*PromotionGate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &PromotionGate{}, nil
	}

	env, err := cel.NewEnv(cel.Variable("scores", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("create gate environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile promotion gate: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("promotion gate must evaluate to bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build promotion gate: %w", err)
	}
	return &PromotionGate{expr: expr, program: program}, nil
}

func (g *PromotionGate) Expr() string {
	if g == nil {
		return ""
	}
	return g.expr
}

// Evaluate returns nil when scores pass the gate and a GateFailed error
// otherwise, including when the expression cannot be evaluated.
func (g *PromotionGate) Evaluate(scores json.RawMessage) error {
	if g == nil || g.program == nil {
		return nil
	}

	vars := map[string]any{}
	if len(scores) > 0 && string(scores) != "null" {
		if err := json.Unmarshal(scores, &vars); err != nil {
			return apperr.Wrap(apperr.KindGateFailed, "evaluation scores are not a JSON object", err)
		}
	}

	out, _, err := g.program.Eval(map[string]any{"scores": vars})
	if err != nil {
		return apperr.Wrap(apperr.KindGateFailed, "promotion gate could not be evaluated", err)
	}
	if passed, ok := out.Value().(bool); !ok || !passed {
		return apperr.GateFailed("promotion gate rejected the evaluation scores")
	}
	return nil
}
