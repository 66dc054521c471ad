package snapshot

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-snapshot/pkg/activity"
)

type recordingLogger struct {
	events []LogEvent
}

func (l *recordingLogger) Log(event LogEvent) {
	l.events = append(l.events, event)
}

func TestStoreLifecycleEmitsActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	svc := newTestService(t,
		WithActivityHooks(activity.Hooks{capture, nil}),
		WithActivityConfig(activity.Config{ActorID: "designer"}),
	)

	payload := closeScene(t, svc, newFormScene(t))
	want := []string{activity.VerbResourcesFlushed, activity.VerbSnapshotClosed}
	if got := capture.Verbs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("close verbs = %v, want %v", got, want)
	}

	closed := capture.Events[1]
	if closed.ObjectID != payload.ID.String() {
		t.Fatalf("closed event should carry the payload id, got %q", closed.ObjectID)
	}
	if closed.Channel != activity.DefaultChannel || closed.ActorID != "designer" {
		t.Fatalf("emitter defaults not applied: %+v", closed)
	}
	if closed.SessionID == "" {
		t.Fatalf("closed event should carry the session id")
	}
	if !reflect.DeepEqual(closed.Names, payload.Names) {
		t.Fatalf("closed names = %v, want %v", closed.Names, payload.Names)
	}

	if _, err := svc.Deserialize(context.Background(), payload, NewMapContainer()); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	last := capture.Events[len(capture.Events)-1]
	if last.Verb != activity.VerbSnapshotDeserialized {
		t.Fatalf("expected a deserialized event, got %q", last.Verb)
	}
	if last.SessionID == closed.SessionID {
		t.Fatalf("deserialize should run in its own session")
	}
}

func TestActivityFailuresAreLoggedNotReturned(t *testing.T) {
	logger := &recordingLogger{}
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("sink down")
	})
	svc := newTestService(t, WithActivityHooks(activity.Hooks{failing}), WithLogger(logger))

	closeScene(t, svc, newFormScene(t))

	var logged int
	for _, event := range logger.events {
		if event.Op == "activity" && event.Err != nil {
			logged++
		}
	}
	if logged == 0 {
		t.Fatalf("expected hook failures to be logged, got %+v", logger.events)
	}
	if hooks := svc.ActivityHooks(); len(hooks) != 1 {
		t.Fatalf("expected one configured hook, got %d", len(hooks))
	}
}
