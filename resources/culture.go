// Package resources implements the culture-layered key/value store used for
// data that cannot be expressed as statements: localizable member values and
// design-time metadata.
package resources

import "strings"

// Culture is a hierarchical locale key such as "fr-CA". The empty culture is
// the invariant root every chain ends in.
type Culture string

// Invariant is the root culture.
const Invariant Culture = ""

// IsInvariant reports whether c is the root culture.
func (c Culture) IsInvariant() bool {
	return c == Invariant
}

// Parent returns the next weaker culture ("fr-CA" -> "fr" -> invariant).
func (c Culture) Parent() Culture {
	if c.IsInvariant() {
		return Invariant
	}
	idx := strings.LastIndex(string(c), "-")
	if idx <= 0 {
		return Invariant
	}
	return c[:idx]
}

// Chain returns c followed by every ancestor, ending with Invariant.
func (c Culture) Chain() []Culture {
	chain := []Culture{c}
	for current := c; !current.IsInvariant(); {
		current = current.Parent()
		chain = append(chain, current)
	}
	return chain
}

// Ancestors returns the chain of c without c itself.
func (c Culture) Ancestors() []Culture {
	return c.Chain()[1:]
}

func (c Culture) String() string {
	if c.IsInvariant() {
		return "(invariant)"
	}
	return string(c)
}

// ParseCulture normalises user input ("fr_CA", " FR-ca ") into a Culture.
func ParseCulture(value string) Culture {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", "-"))
	if value == "" || strings.EqualFold(value, "invariant") {
		return Invariant
	}
	parts := strings.Split(value, "-")
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) == 2 {
			parts[i] = strings.ToUpper(parts[i])
		}
	}
	return Culture(strings.Join(parts, "-"))
}
