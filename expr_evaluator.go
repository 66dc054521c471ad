package snapshot

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures the expr-lang evaluator.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache shares compiled programs across evaluations.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry compiles the registered helpers in as functions.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// exprEvaluator is the default engine. Component names resolve as
// variables, so "button1.Width * 2" reads a live member.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx EvalContext, expression string) (any, error) {
	compiled, err := e.Compile(expression)
	if err != nil {
		return nil, snippetError("expr", PhaseCompile, expression, ctx.Name, err)
	}
	return compiled.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledExpression, error) {
	if expression == "" {
		return nil, emptySnippet("expr")
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, snippetError("expr", PhaseCompile, expression, "", err)
	}
	return &exprCompiled{program: program, expression: expression}, nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	key := "expr:" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	// Bindings differ per component, so the program compiles against an
	// open environment.
	options := []exprlang.Option{exprlang.AllowUndefinedVariables()}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.helper(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEvaluator) helper(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return e.registry.Call(name, args...)
	}
}

type exprCompiled struct {
	program    *exprvm.Program
	expression string
}

func (c *exprCompiled) Evaluate(ctx EvalContext) (any, error) {
	ctx = ctx.withDefaults()
	env := map[string]any{"now": *ctx.Now, "self": ctx.Name}
	for key, value := range ctx.Bindings {
		env[key] = value
	}
	result, err := exprlang.Run(c.program, env)
	if err != nil {
		return nil, snippetError("expr", PhaseRun, c.expression, ctx.label(), err)
	}
	return result, nil
}
