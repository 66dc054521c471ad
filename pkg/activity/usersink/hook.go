// Package usersink forwards store lifecycle events to a go-users activity
// feed.
package usersink

import (
	"context"
	"strings"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-snapshot/pkg/activity"
)

// Hook records events in Sink. When Verbs is set only those verbs are
// forwarded; a designer usually wants snapshot.closed and nothing else.
type Hook struct {
	Sink  usertypes.ActivitySink
	Verbs []string
}

// Notify forwards event when it is routable and passes the verb filter.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !h.accepts(event.Verb) {
		return nil
	}
	record, ok := Record(event)
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) accepts(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	verb = strings.TrimSpace(verb)
	for _, v := range h.Verbs {
		if v == verb {
			return true
		}
	}
	return false
}

// Record maps event to an ActivityRecord. Actor, user and tenant IDs that
// are not UUIDs map to uuid.Nil. The session and names go into Data.
func Record(event activity.Event) (usertypes.ActivityRecord, bool) {
	event = activity.NormalizeEvent(event)
	if !event.Routable() {
		return usertypes.ActivityRecord{}, false
	}

	var data map[string]any
	set := func(key string, value any) {
		if data == nil {
			data = make(map[string]any, len(event.Metadata)+2)
		}
		data[key] = value
	}
	for key, value := range event.Metadata {
		set(key, value)
	}
	if event.SessionID != "" {
		set("session_id", event.SessionID)
	}
	if len(event.Names) > 0 {
		set("names", event.Names)
	}

	return usertypes.ActivityRecord{
		ActorID:    uuidOrNil(event.ActorID),
		UserID:     uuidOrNil(event.UserID),
		TenantID:   uuidOrNil(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}, true
}

func uuidOrNil(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}
