package snapshot

import (
	"fmt"
	"sync"
	"time"
)

// EvalContext carries the bindings a snippet is evaluated against.
type EvalContext struct {
	Name     string
	Bindings map[string]any
	Now      *time.Time
}

func (ctx EvalContext) withDefaults() EvalContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Bindings == nil {
		ctx.Bindings = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) label() string {
	if ctx.Name != "" {
		return ctx.Name
	}
	return "unknown"
}

// Evaluator executes snippet expressions.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string) (CompiledExpression, error)
}

// CompiledExpression is a reusable snippet program.
type CompiledExpression interface {
	Evaluate(ctx EvalContext) (any, error)
}

// ProgramCache stores compiled programs keyed by expression text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a ProgramCache backed by a map.
type MemoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryProgramCache constructs an empty cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{programs: map[string]any{}}
}

// Get implements ProgramCache.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

// Set implements ProgramCache.
func (c *MemoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[key] = value
}

// Engine names accepted in ir.Snippet.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

type evaluatorSet struct {
	mu      sync.Mutex
	engines map[string]Evaluator
}

func (s *Service) evaluator(engine string) (Evaluator, error) {
	if engine == "" && s.cfg.evaluator != nil {
		return s.cfg.evaluator, nil
	}
	if engine == "" {
		engine = EngineExpr
	}
	s.evaluators.mu.Lock()
	defer s.evaluators.mu.Unlock()
	if s.evaluators.engines == nil {
		s.evaluators.engines = map[string]Evaluator{}
	}
	if e, ok := s.evaluators.engines[engine]; ok {
		return e, nil
	}
	var e Evaluator
	switch engine {
	case EngineExpr:
		e = NewExprEvaluator(ExprWithProgramCache(s.cfg.programCache), ExprWithFunctionRegistry(s.cfg.functions))
	case EngineCEL:
		e = NewCELEvaluator(CELWithProgramCache(s.cfg.programCache), CELWithFunctionRegistry(s.cfg.functions))
	case EngineJS:
		e = NewJSEvaluator(JSWithProgramCache(s.cfg.programCache), JSWithFunctionRegistry(s.cfg.functions))
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, engine)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: engine %q unavailable in this build", ErrNoEvaluator, engine)
	}
	s.evaluators.engines[engine] = e
	return e, nil
}

// EvaluateSnippet runs expr with engine against bindings and logs the attempt.
func (s *Service) EvaluateSnippet(engine, expr string, ctx EvalContext) (any, error) {
	if expr == "" {
		return nil, emptySnippet(engineLabel(engine))
	}
	e, err := s.evaluator(engine)
	if err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	start := time.Now()
	value, evalErr := e.Evaluate(ctx, expr)
	evalErr = snippetError(engineLabel(engine), PhaseRun, expr, ctx.label(), evalErr)
	s.cfg.logger.Log(LogEvent{
		Op:       "evaluate",
		Name:     ctx.Name,
		Detail:   engineLabel(engine) + ": " + expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func engineLabel(engine string) string {
	if engine == "" {
		return "default"
	}
	return engine
}
