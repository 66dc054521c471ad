package snapshot

import (
	"encoding/json"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Bound instances
// are exposed as plain maps since CEL cannot walk Go structs.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx EvalContext, expression string) (any, error) {
	if expression == "" {
		return nil, emptySnippet("cel")
	}
	ctx = ctx.withDefaults()
	activation := e.activation(ctx)
	program, err := e.loadOrCompile(expression, activation)
	if err != nil {
		return nil, snippetError("cel", PhaseCompile, expression, ctx.label(), err)
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return nil, snippetError("cel", PhaseRun, expression, ctx.label(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string) (CompiledExpression, error) {
	if expression == "" {
		return nil, emptySnippet("cel")
	}
	return &celCompiled{evaluator: e, expression: expression}, nil
}

// loadOrCompile keys the cache by expression and variable set, since the CEL
// environment declares every bound name.
func (e *celEvaluator) loadOrCompile(expression string, activation map[string]any) (celgo.Program, error) {
	names := make([]string, 0, len(activation))
	for name := range activation {
		names = append(names, name)
	}
	sort.Strings(names)
	key := "cel:" + strings.Join(names, ",") + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	opts := make([]celgo.EnvOption, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			opts = append(opts, celgo.Function(name,
				celgo.Overload(name+"_dyn", []*celgo.Type{celgo.DynType}, celgo.DynType,
					celgo.UnaryBinding(e.unaryBinding(name)))))
		}
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) activation(ctx EvalContext) map[string]any {
	activation := map[string]any{
		"now":  *ctx.Now,
		"self": ctx.Name,
	}
	for key, value := range ctx.Bindings {
		activation[key] = celValue(value)
	}
	return activation
}

// celValue flattens structs into JSON-shaped maps.
func celValue(value any) any {
	switch value.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64:
		return value
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func (e *celEvaluator) unaryBinding(name string) func(ref.Val) ref.Val {
	return func(value ref.Val) ref.Val {
		result, err := e.registry.Call(name, value.Value())
		if err != nil {
			return types.NewErr("snapshot: %s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

type celCompiled struct {
	evaluator  *celEvaluator
	expression string
}

func (c *celCompiled) Evaluate(ctx EvalContext) (any, error) {
	return c.evaluator.Evaluate(ctx, c.expression)
}
