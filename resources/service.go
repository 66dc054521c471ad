package resources

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Table holds one culture layer.
type Table map[string]any

// Reader reads one stored layer.
type Reader interface {
	Read() (Table, error)
}

// Writer replaces one stored layer.
type Writer interface {
	Write(Table) error
}

// Service supplies culture-keyed readers and writers. A nil Reader with a nil
// error means nothing is stored for that culture.
type Service interface {
	Reader(culture Culture) (Reader, error)
	Writer(culture Culture) (Writer, error)
	MetadataReader() (Reader, error)
	MetadataWriter() (Writer, error)
}

// MemoryService keeps layers in memory and can be encoded as a blob.
type MemoryService struct {
	cultures map[Culture]Table
	metadata Table
}

// NewMemoryService returns an empty service.
func NewMemoryService() *MemoryService {
	return &MemoryService{cultures: map[Culture]Table{}}
}

type tableIO struct {
	read  func() Table
	write func(Table)
}

func (t tableIO) Read() (Table, error) {
	return t.read(), nil
}

func (t tableIO) Write(table Table) error {
	t.write(table)
	return nil
}

// Reader implements Service.
func (m *MemoryService) Reader(culture Culture) (Reader, error) {
	table, ok := m.cultures[culture]
	if !ok {
		return nil, nil
	}
	return tableIO{read: func() Table { return copyTable(table) }}, nil
}

// Writer implements Service.
func (m *MemoryService) Writer(culture Culture) (Writer, error) {
	return tableIO{write: func(t Table) {
		if len(t) == 0 {
			delete(m.cultures, culture)
			return
		}
		m.cultures[culture] = copyTable(t)
	}}, nil
}

// MetadataReader implements Service.
func (m *MemoryService) MetadataReader() (Reader, error) {
	if m.metadata == nil {
		return nil, nil
	}
	return tableIO{read: func() Table { return copyTable(m.metadata) }}, nil
}

// MetadataWriter implements Service.
func (m *MemoryService) MetadataWriter() (Writer, error) {
	return tableIO{write: func(t Table) {
		if len(t) == 0 {
			m.metadata = nil
			return
		}
		m.metadata = copyTable(t)
	}}, nil
}

// Cultures lists the cultures holding data, invariant first.
func (m *MemoryService) Cultures() []Culture {
	out := make([]Culture, 0, len(m.cultures))
	for c := range m.cultures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type blob struct {
	Cultures map[string]Table `json:"cultures,omitempty"`
	Metadata Table            `json:"metadata,omitempty"`
}

// MarshalBlob encodes every stored layer into an opaque blob.
func (m *MemoryService) MarshalBlob() ([]byte, error) {
	b := blob{Metadata: m.metadata}
	if len(m.cultures) > 0 {
		b.Cultures = make(map[string]Table, len(m.cultures))
		for c, table := range m.cultures {
			b.Cultures[string(c)] = table
		}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("resources: marshal blob: %w", err)
	}
	return data, nil
}

// UnmarshalBlob decodes a blob written by MarshalBlob. An empty blob yields
// an empty service.
func UnmarshalBlob(data []byte) (*MemoryService, error) {
	service := NewMemoryService()
	if len(data) == 0 {
		return service, nil
	}
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("resources: unmarshal blob: %w", err)
	}
	for c, table := range b.Cultures {
		service.cultures[Culture(c)] = table
	}
	if len(b.Metadata) > 0 {
		service.metadata = b.Metadata
	}
	return service, nil
}

func copyTable(table Table) Table {
	if table == nil {
		return nil
	}
	out := make(Table, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}
