package snapshot

import (
	"strings"
	"testing"

	"github.com/goliatone/go-snapshot/ir"
)

func TestPayloadStatementsFollowNameOrder(t *testing.T) {
	first := ir.Assign(ir.Prop(ir.Ref("b"), "X"), ir.Lit(1))
	second := ir.Assign(ir.Prop(ir.Ref("a"), "X"), ir.Lit(2))
	p := &Payload{
		Names: []string{"b", "a", "c"},
		Entries: map[string]*PayloadEntry{
			"a": {Statements: ir.Statements{second}},
			"b": {Statements: ir.Statements{first}},
			"c": {Placeholder: true},
		},
	}
	got := p.Statements()
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("unexpected statement order")
	}
	if p.Entry("missing") != nil || (*Payload)(nil).Entry("a") != nil {
		t.Fatalf("missing entries should be nil")
	}
}

func TestDecodePayloadRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"missing names":     `{"id":"00000000-0000-0000-0000-000000000000","entries":{}}`,
		"empty name":        `{"id":"x","names":[""],"entries":{}}`,
		"unknown entry key": `{"id":"x","names":["a"],"entries":{"a":{"bogus":true}}}`,
		"statement kind":    `{"id":"x","names":["a"],"entries":{"a":{"statements":[{"name":"a"}]}}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodePayload([]byte(doc)); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestDecodePayloadAcceptsNullCollections(t *testing.T) {
	p, err := (&Payload{}).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(p), `"names": null`) {
		t.Fatalf("expected null names in %s", p)
	}
	decoded, err := DecodePayload(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Entries == nil {
		t.Fatalf("entries should be initialised")
	}
	if _, err := (*Payload)(nil).Encode(); err == nil {
		t.Fatalf("nil payload should not encode")
	}
}
