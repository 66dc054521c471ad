package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSnippetErrorCarriesContext(t *testing.T) {
	base := errors.New("boom")
	err := snippetError("expr", PhaseRun, "width * 2", "button1", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" || evalErr.Phase != PhaseRun {
		t.Fatalf("unexpected engine/phase: %+v", evalErr)
	}
	if evalErr.Expr != "width * 2" || evalErr.Name != "button1" {
		t.Fatalf("unexpected context: %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if want := `snapshot: expr snippet run for "button1" (width * 2): boom`; err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestSnippetErrorCompletesInnerError(t *testing.T) {
	base := errors.New("compile failure")
	inner := &EvaluationError{Engine: "expr", Phase: PhaseCompile, Err: base}

	err := snippetError("cel", PhaseRun, "rule", "label1", fmt.Errorf("outer: %w", inner))
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if inner.Engine != "expr" || inner.Phase != PhaseCompile {
		t.Fatalf("inner fields should not be overwritten: %+v", inner)
	}
	if inner.Expr != "rule" || inner.Name != "label1" {
		t.Fatalf("missing fields should be filled: %+v", inner)
	}
	if snippetError("expr", PhaseRun, "x", "", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestEmptySnippetIsCompileError(t *testing.T) {
	var evalErr *EvaluationError
	if err := emptySnippet("cel"); !errors.As(err, &evalErr) || evalErr.Phase != PhaseCompile || !errors.Is(err, errEmptySnippet) {
		t.Fatalf("unexpected empty snippet error %v", err)
	}
}

func TestErrorMatchesCodeAndCause(t *testing.T) {
	cause := errors.New("no constructor")
	err := newError(ErrTypeNotFound, "button1", cause)

	if !errors.Is(err, ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound to match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to match")
	}
	if !strings.Contains(err.Error(), `name="button1"`) {
		t.Fatalf("expected name in message, got %q", err.Error())
	}
}

func TestErrorListSummarises(t *testing.T) {
	var list ErrorList
	if list.Err() != nil {
		t.Fatalf("empty list should not be an error")
	}
	list.add(newError(ErrNameCollision, "a", nil))
	list.add(fmt.Errorf("wrapped: %w", ErrInvalidArrayRank))
	list.add(nil)

	if len(list) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(list))
	}
	if !strings.HasSuffix(list.Error(), "(and 1 more)") {
		t.Fatalf("unexpected summary %q", list.Error())
	}
	if !errors.Is(list.Err(), ErrInvalidArrayRank) || !list.Has(ErrNameCollision) {
		t.Fatalf("expected accumulated codes to match")
	}
}
