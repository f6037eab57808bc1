// Package hooks turns the expressions of the hooks config section into
// multitab.Hook values.
//
// An expression sees the state as the variable `state` (plain maps, lists,
// numbers, strings and booleans). Its result decides what happens:
//
//	false, nil     veto
//	true           keep the state unchanged
//	anything else  use the result as the new state
//
// Maps lose their key order on the way through an expression. A result equal
// to the input state hands back the input unchanged; any other map result has
// its keys sorted.
package hooks

import (
	"fmt"
	"log/slog"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/statetree"
)

// Compile compiles expression. An empty expression returns a nil Hook, which
// multitab treats as identity. Evaluation errors are logged and veto.
func Compile(expression string, logger *slog.Logger) (multitab.Hook, error) {
	if expression == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{"state": nil}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile hook %q: %w", expression, err)
	}

	h := &hook{program: program, expression: expression, logger: logger.With("component", "hooks")}
	return h.apply, nil
}

type hook struct {
	program    *exprvm.Program
	expression string
	logger     *slog.Logger
}

func (h *hook) apply(state statetree.Value) statetree.Value {
	result, err := exprlang.Run(h.program, map[string]any{"state": state.ToAny()})
	if err != nil {
		h.logger.Warn("hook failed", "expression", h.expression, "error", err)
		return statetree.Absent()
	}

	switch r := result.(type) {
	case nil:
		return statetree.Absent()
	case bool:
		if r {
			return state
		}
		return statetree.Absent()
	}

	out, err := statetree.FromAny(result)
	if err != nil {
		h.logger.Warn("hook returned an unusable value", "expression", h.expression, "error", err)
		return statetree.Absent()
	}
	if out.Equal(state) {
		return state
	}
	return out
}
