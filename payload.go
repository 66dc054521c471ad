package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goliatone/go-snapshot/ir"
	"github.com/goliatone/go-snapshot/resources"
)

// Payload is the persisted form of a closed store. Names is the resolution
// and enumeration order; Entries holds the statement group and restore
// instructions for each name.
type Payload struct {
	ID         uuid.UUID                `json:"id"`
	Root       string                   `json:"root,omitempty"`
	Culture    resources.Culture        `json:"culture"`
	Names      []string                 `json:"names"`
	Entries    map[string]*PayloadEntry `json:"entries"`
	Locals     []string                 `json:"locals,omitempty"`
	Provenance []Provenance             `json:"provenance,omitempty"`
	Resources  []byte                   `json:"resources,omitempty"`
	Shims      []string                 `json:"shims,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

// PayloadEntry is one name's share of a payload. A placeholder entry has no
// statements; its instance is expected to exist on the host already.
type PayloadEntry struct {
	Statements     ir.Statements  `json:"statements,omitempty"`
	Expressions    ir.Expressions `json:"expressions,omitempty"`
	Placeholder    bool           `json:"placeholder,omitempty"`
	DefaultMembers []string       `json:"default_members,omitempty"`
	ResourceRefs   []string       `json:"resource_refs,omitempty"`
	EventResets    []string       `json:"event_resets,omitempty"`
	Modifier       string         `json:"modifier,omitempty"`
}

// Entry returns the entry for name, or nil.
func (p *Payload) Entry(name string) *PayloadEntry {
	if p == nil || p.Entries == nil {
		return nil
	}
	return p.Entries[name]
}

// Statements returns every statement of the payload in name order.
func (p *Payload) Statements() ir.Statements {
	if p == nil {
		return nil
	}
	var out ir.Statements
	for _, name := range p.Names {
		if entry := p.Entries[name]; entry != nil {
			out = append(out, entry.Statements...)
		}
	}
	return out
}

// ResourceService decodes the embedded resource blob. A payload without
// resources yields an empty service.
func (p *Payload) ResourceService() (*resources.MemoryService, error) {
	if p == nil || len(p.Resources) == 0 {
		return resources.NewMemoryService(), nil
	}
	return resources.UnmarshalBlob(p.Resources)
}

func (p *Payload) nameData() map[string]*nameData {
	out := make(map[string]*nameData, len(p.Entries))
	for name, entry := range p.Entries {
		if entry == nil {
			continue
		}
		out[name] = &nameData{
			DefaultMembers: entry.DefaultMembers,
			ResourceRefs:   entry.ResourceRefs,
			EventResets:    entry.EventResets,
			Modifier:       entry.Modifier,
			Expressions:    entry.Expressions,
		}
	}
	return out
}

// Encode renders the payload as indented JSON.
func (p *Payload) Encode() ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("snapshot: nil payload")
	}
	return json.MarshalIndent(p, "", "  ")
}

// DecodePayload validates data against the payload schema and decodes it.
func DecodePayload(data []byte) (*Payload, error) {
	schema, err := payloadSchema()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("snapshot: decode payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("snapshot: invalid payload: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("snapshot: decode payload: %w", err)
	}
	if payload.Entries == nil {
		payload.Entries = map[string]*PayloadEntry{}
	}
	return &payload, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func payloadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(payloadSchemaURL, strings.NewReader(payloadSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(payloadSchemaURL)
	})
	return compiledSchema, schemaErr
}

const payloadSchemaURL = "https://github.com/goliatone/go-snapshot/payload.schema.json"

const payloadSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "names", "entries"],
  "properties": {
    "id": {"type": "string"},
    "root": {"type": "string"},
    "culture": {"type": "string"},
    "names": {"type": ["array", "null"], "items": {"type": "string", "minLength": 1}},
    "entries": {
      "type": ["object", "null"],
      "additionalProperties": {"$ref": "#/definitions/entry"}
    },
    "locals": {"type": "array", "items": {"type": "string"}},
    "provenance": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"},
          "origin": {"type": "string"}
        }
      }
    },
    "resources": {"type": "string"},
    "shims": {"type": "array", "items": {"type": "string"}},
    "created_at": {"type": "string"}
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["kind"],
      "properties": {"kind": {"type": "string", "minLength": 1}}
    },
    "entry": {
      "type": "object",
      "properties": {
        "statements": {"type": "array", "items": {"$ref": "#/definitions/node"}},
        "expressions": {"type": "array", "items": {"$ref": "#/definitions/node"}},
        "placeholder": {"type": "boolean"},
        "default_members": {"type": "array", "items": {"type": "string"}},
        "resource_refs": {"type": "array", "items": {"type": "string"}},
        "event_resets": {"type": "array", "items": {"type": "string"}},
        "modifier": {"type": "string"}
      },
      "additionalProperties": false
    }
  }
}`
