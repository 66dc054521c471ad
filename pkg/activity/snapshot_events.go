package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the snapshot store.
const (
	VerbSnapshotClosed       = "snapshot.closed"
	VerbSnapshotDeserialized = "snapshot.deserialized"
	VerbResourcesFlushed     = "snapshot.resources.flushed"
)

// SnapshotEventInput describes the common fields for store lifecycle events.
type SnapshotEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	PayloadID  string
	SessionID  string
	Root       string
	Names      []string
	Cultures   []string
	ErrorCount int
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildSnapshotClosedEvent describes a store closed into a payload.
func BuildSnapshotClosedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotClosed, "snapshot", input)
}

// BuildSnapshotDeserializedEvent describes a payload materialised into a
// container.
func BuildSnapshotDeserializedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbSnapshotDeserialized, "snapshot", input)
}

// BuildResourcesFlushedEvent describes resource layers written back.
func BuildResourcesFlushedEvent(input SnapshotEventInput) Event {
	return buildSnapshotEvent(VerbResourcesFlushed, "snapshot.resources", input)
}

func buildSnapshotEvent(verb, objectType string, input SnapshotEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Root != "" {
		metadata = ensureMetadata(metadata)
		metadata["root"] = input.Root
	}
	if len(input.Cultures) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["cultures"] = append([]string{}, input.Cultures...)
	}
	if input.ErrorCount > 0 {
		metadata = ensureMetadata(metadata)
		metadata["errors"] = input.ErrorCount
	}

	objectID := strings.TrimSpace(input.PayloadID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Root)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		SessionID:  strings.TrimSpace(input.SessionID),
		Names:      append([]string(nil), input.Names...),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
