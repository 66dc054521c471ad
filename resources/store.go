package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-snapshot/layering"
)

// ErrNotSerializable is returned by SetValue for values that cannot be
// persisted into a resource blob.
var ErrNotSerializable = errors.New("resources: value is not serializable")

// Comparison classifies a value against the nearest ancestor culture.
type Comparison int

const (
	// New means no ancestor holds the key.
	New Comparison = iota
	// Same means the nearest ancestor holds an equal value.
	Same
	// Different means the nearest ancestor holds another value.
	Different
)

func (c Comparison) String() string {
	switch c {
	case Same:
		return "same"
	case Different:
		return "different"
	default:
		return "new"
	}
}

// Entry is one stored key in one culture layer.
type Entry struct {
	Name    string
	Culture Culture
	Value   any
}

// Store layers culture tables over a Service. Reads fall back along the
// culture chain; writes only ever touch the active culture (or the invariant
// root when forced).
type Store struct {
	service Service
	culture Culture

	tables map[Culture]Table
	loaded map[Culture]bool
	dirty  map[Culture]bool

	metadata       Table
	metadataLoaded bool
	metadataDirty  bool
}

// NewStore returns a store reading from service with culture active. A nil
// service starts from an empty in-memory service.
func NewStore(service Service, culture Culture) *Store {
	if service == nil {
		service = NewMemoryService()
	}
	return &Store{
		service: service,
		culture: culture,
		tables:  map[Culture]Table{},
		loaded:  map[Culture]bool{},
		dirty:   map[Culture]bool{},
	}
}

// Culture returns the active culture.
func (s *Store) Culture() Culture {
	return s.culture
}

// SetCulture switches the active culture. Loaded layers are kept.
func (s *Store) SetCulture(culture Culture) {
	s.culture = culture
}

// Service exposes the backing service.
func (s *Store) Service() Service {
	return s.service
}

func (s *Store) writeCulture(forceInvariant bool) Culture {
	if forceInvariant {
		return Invariant
	}
	return s.culture
}

func (s *Store) table(culture Culture) (Table, error) {
	if s.loaded[culture] {
		return s.tables[culture], nil
	}
	reader, err := s.service.Reader(culture)
	if err != nil {
		return nil, fmt.Errorf("resources: open reader for %s: %w", culture, err)
	}
	table := Table{}
	if reader != nil {
		read, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("resources: read %s: %w", culture, err)
		}
		if read != nil {
			table = read
		}
	}
	s.tables[culture] = table
	s.loaded[culture] = true
	return table, nil
}

// GetObject returns the value for name, walking from the active culture (or
// the invariant root when forced) towards the root.
func (s *Store) GetObject(name string, forceInvariant bool) (any, bool, error) {
	for _, culture := range s.writeCulture(forceInvariant).Chain() {
		table, err := s.table(culture)
		if err != nil {
			return nil, false, err
		}
		if value, ok := table[name]; ok {
			return value, true, nil
		}
	}
	return nil, false, nil
}

// Compare classifies value against the nearest ancestor of the write culture.
func (s *Store) Compare(name string, value any, forceInvariant bool) (Comparison, error) {
	for _, culture := range s.writeCulture(forceInvariant).Ancestors() {
		table, err := s.table(culture)
		if err != nil {
			return New, err
		}
		existing, ok := table[name]
		if !ok {
			continue
		}
		if equalValues(existing, value) {
			return Same, nil
		}
		return Different, nil
	}
	return New, nil
}

// SetValue stores value for name.
//
// Same drops any override the write culture carries, Different writes the
// write culture only, and New writes the write culture and, when
// ensureInvariant is set, mirrors the value into the invariant root.
func (s *Store) SetValue(name string, value any, forceInvariant, ensureInvariant bool) (Comparison, error) {
	if err := checkSerializable(value); err != nil {
		return New, fmt.Errorf("%w: %s: %v", ErrNotSerializable, name, err)
	}
	target := s.writeCulture(forceInvariant)
	cmp, err := s.Compare(name, value, forceInvariant)
	if err != nil {
		return cmp, err
	}

	table, err := s.table(target)
	if err != nil {
		return cmp, err
	}

	switch cmp {
	case Same:
		if _, ok := table[name]; ok {
			delete(table, name)
			s.dirty[target] = true
		}
	case Different:
		s.put(target, table, name, value)
	case New:
		s.put(target, table, name, value)
		if ensureInvariant && !target.IsInvariant() {
			root, err := s.table(Invariant)
			if err != nil {
				return cmp, err
			}
			s.put(Invariant, root, name, value)
		}
	}
	return cmp, nil
}

func (s *Store) put(culture Culture, table Table, name string, value any) {
	if existing, ok := table[name]; ok && equalValues(existing, value) {
		return
	}
	table[name] = value
	s.dirty[culture] = true
}

// Remove deletes name from the active culture layer.
func (s *Store) Remove(name string) error {
	table, err := s.table(s.culture)
	if err != nil {
		return err
	}
	if _, ok := table[name]; ok {
		delete(table, name)
		s.dirty[s.culture] = true
	}
	return nil
}

func (s *Store) metadataTable() (Table, error) {
	if s.metadataLoaded {
		return s.metadata, nil
	}
	reader, err := s.service.MetadataReader()
	if err != nil {
		return nil, fmt.Errorf("resources: open metadata reader: %w", err)
	}
	table := Table{}
	if reader != nil {
		read, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("resources: read metadata: %w", err)
		}
		if read != nil {
			table = read
		}
	}
	s.metadata = table
	s.metadataLoaded = true
	return table, nil
}

// GetMetadata returns a culture-independent value.
func (s *Store) GetMetadata(name string) (any, bool, error) {
	table, err := s.metadataTable()
	if err != nil {
		return nil, false, err
	}
	value, ok := table[name]
	return value, ok, nil
}

// SetMetadata stores a culture-independent value.
func (s *Store) SetMetadata(name string, value any) error {
	if err := checkSerializable(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotSerializable, name, err)
	}
	table, err := s.metadataTable()
	if err != nil {
		return err
	}
	if existing, ok := table[name]; ok && equalValues(existing, value) {
		return nil
	}
	table[name] = value
	s.metadataDirty = true
	return nil
}

// Entries lists the keys of one culture layer sorted by name.
func (s *Store) Entries(culture Culture) ([]Entry, error) {
	table, err := s.table(culture)
	if err != nil {
		return nil, err
	}
	return sortedEntries(culture, table), nil
}

// MetadataEntries lists metadata sorted by name.
func (s *Store) MetadataEntries() ([]Entry, error) {
	table, err := s.metadataTable()
	if err != nil {
		return nil, err
	}
	return sortedEntries(Invariant, table), nil
}

// Keys returns every key under prefix visible from the active culture.
func (s *Store) Keys(prefix string) ([]string, error) {
	flat, err := s.Flatten(s.culture)
	if err != nil {
		return nil, err
	}
	var out []string
	for key := range flat {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Flatten resolves every key visible from culture into one table.
func (s *Store) Flatten(culture Culture) (map[string]any, error) {
	chain := culture.Chain()
	tables := make([]map[string]any, 0, len(chain))
	for _, c := range chain {
		table, err := s.table(c)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return layering.Flatten(tables...), nil
}

// Dirty reports whether any layer has unflushed writes.
func (s *Store) Dirty() bool {
	if s.metadataDirty {
		return true
	}
	for _, dirty := range s.dirty {
		if dirty {
			return true
		}
	}
	return false
}

// Flush writes every dirty layer back through the service and returns the
// cultures written.
func (s *Store) Flush() ([]Culture, error) {
	var written []Culture
	cultures := make([]Culture, 0, len(s.dirty))
	for culture, dirty := range s.dirty {
		if dirty {
			cultures = append(cultures, culture)
		}
	}
	sort.Slice(cultures, func(i, j int) bool { return cultures[i] < cultures[j] })

	for _, culture := range cultures {
		writer, err := s.service.Writer(culture)
		if err != nil {
			return written, fmt.Errorf("resources: open writer for %s: %w", culture, err)
		}
		if err := writer.Write(copyTable(s.tables[culture])); err != nil {
			return written, fmt.Errorf("resources: write %s: %w", culture, err)
		}
		delete(s.dirty, culture)
		written = append(written, culture)
	}

	if s.metadataDirty {
		writer, err := s.service.MetadataWriter()
		if err != nil {
			return written, fmt.Errorf("resources: open metadata writer: %w", err)
		}
		if err := writer.Write(copyTable(s.metadata)); err != nil {
			return written, fmt.Errorf("resources: write metadata: %w", err)
		}
		s.metadataDirty = false
	}
	return written, nil
}

func sortedEntries(culture Culture, table Table) []Entry {
	out := make([]Entry, 0, len(table))
	for name, value := range table {
		out = append(out, Entry{Name: name, Culture: culture, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func checkSerializable(value any) error {
	if value == nil {
		return nil
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("unsupported kind %T", value)
	}
	_, err := json.Marshal(value)
	return err
}

// equalValues compares values that may have crossed a JSON boundary, so a
// stored float64(80) equals a fresh int(80).
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
