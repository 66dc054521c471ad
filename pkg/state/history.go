package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	snapshot "github.com/goliatone/go-snapshot"
)

var ErrNothingToUndo = errors.New("state: nothing to undo")

var ErrNothingToRedo = errors.New("state: nothing to redo")

// DefaultHistoryLimit bounds a History built without an explicit limit.
const DefaultHistoryLimit = 100

// HistoryEntry is one recorded payload.
type HistoryEntry struct {
	ID         uuid.UUID         `json:"id"`
	Label      string            `json:"label,omitempty"`
	Payload    *snapshot.Payload `json:"payload"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// HistoryLog is the persisted form of a History. Cursor indexes the current
// entry, -1 when empty.
type HistoryLog struct {
	Entries []HistoryEntry `json:"entries"`
	Cursor  int            `json:"cursor"`
	Limit   int            `json:"limit,omitempty"`
}

// History is a linear undo/redo stack of payloads. Recording after an undo
// discards the redo branch; the oldest entries fall off past the limit.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	cursor  int
	limit   int
	now     func() time.Time
}

// NewHistory constructs an empty history keeping at most limit entries. A
// non-positive limit uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{cursor: -1, limit: limit, now: time.Now}
}

// Record pushes payload as the new current entry.
func (h *History) Record(label string, payload *snapshot.Payload) (HistoryEntry, error) {
	if payload == nil {
		return HistoryEntry{}, fmt.Errorf("state: nil payload")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := HistoryEntry{
		ID:         uuid.New(),
		Label:      label,
		Payload:    payload,
		RecordedAt: h.now().UTC(),
	}
	h.entries = append(h.entries[:h.cursor+1], entry)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]HistoryEntry(nil), h.entries[over:]...)
	}
	h.cursor = len(h.entries) - 1
	return entry, nil
}

// Undo steps back one entry and returns the payload that is now current.
func (h *History) Undo() (*snapshot.Payload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor <= 0 {
		return nil, ErrNothingToUndo
	}
	h.cursor--
	return h.entries[h.cursor].Payload, nil
}

// Redo steps forward one entry.
func (h *History) Redo() (*snapshot.Payload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		return nil, ErrNothingToRedo
	}
	h.cursor++
	return h.entries[h.cursor].Payload, nil
}

// Current returns the current entry.
func (h *History) Current() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		return HistoryEntry{}, false
	}
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// Entries returns a copy of every entry, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}

// Log returns the persisted form of h.
func (h *History) Log() HistoryLog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HistoryLog{
		Entries: append([]HistoryEntry(nil), h.entries...),
		Cursor:  h.cursor,
		Limit:   h.limit,
	}
}

// HistoryFromLog rebuilds a History. An out-of-range cursor is clamped.
func HistoryFromLog(log HistoryLog) *History {
	h := NewHistory(log.Limit)
	h.entries = append([]HistoryEntry(nil), log.Entries...)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = h.entries[over:]
		log.Cursor -= over
	}
	switch {
	case len(h.entries) == 0:
		h.cursor = -1
	case log.Cursor < 0:
		h.cursor = 0
	case log.Cursor >= len(h.entries):
		h.cursor = len(h.entries) - 1
	default:
		h.cursor = log.Cursor
	}
	return h
}

// SaveHistory persists h under ref.
func SaveHistory(ctx context.Context, store Store[HistoryLog], ref Ref, h *History, meta Meta) (Meta, error) {
	if store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	log := h.Log()
	if current, ok := h.Current(); ok && meta.SnapshotID == "" {
		meta.SnapshotID = current.ID.String()
	}
	return store.Save(ctx, ref, log, meta)
}

// LoadHistory restores the history stored under ref, or an empty one.
func LoadHistory(ctx context.Context, store Store[HistoryLog], ref Ref) (*History, Meta, error) {
	if store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	log, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, err
	}
	if !ok {
		return NewHistory(0), Meta{}, nil
	}
	return HistoryFromLog(log), meta, nil
}
