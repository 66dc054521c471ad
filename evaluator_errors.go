package snapshot

import (
	"errors"
	"fmt"
)

// SnippetPhase tells whether a snippet failed before or while running.
type SnippetPhase string

const (
	PhaseCompile SnippetPhase = "compile"
	PhaseRun     SnippetPhase = "run"
)

var errEmptySnippet = errors.New("snippet text is empty")

// EvaluationError reports a snippet that could not be compiled or run. Name
// is the component the snippet was evaluated for, when known.
type EvaluationError struct {
	Engine string
	Phase  SnippetPhase
	Expr   string
	Name   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "snapshot: " + e.Engine + " snippet"
	if e.Phase != "" {
		msg += " " + string(e.Phase)
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" for %q", e.Name)
	}
	if e.Expr != "" {
		msg += fmt.Sprintf(" (%s)", e.Expr)
	}
	return msg + ": " + fmt.Sprint(e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func emptySnippet(engine string) error {
	return &EvaluationError{Engine: engine, Phase: PhaseCompile, Err: errEmptySnippet}
}

// snippetError wraps err, or completes an EvaluationError already in its
// chain without overwriting fields an inner evaluator set.
func snippetError(engine string, phase SnippetPhase, expr, name string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Phase: phase, Expr: expr, Name: name, Err: err}
	}
	fill := func(dst *string, value string) {
		if *dst == "" {
			*dst = value
		}
	}
	fill(&evalErr.Engine, engine)
	fill(&evalErr.Expr, expr)
	fill(&evalErr.Name, name)
	if evalErr.Phase == "" {
		evalErr.Phase = phase
	}
	return evalErr
}
