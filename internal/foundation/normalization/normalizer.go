// Package normalization provides type-safe string-to-enum normalization for
// configuration values. Raw user input is trimmed and case-folded before
// lookup so YAML authors can write enums in any casing.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps raw strings onto a typed enumeration.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
	validKeys    []string
}

// NewNormalizer creates a normalizer from a map of canonical string->value
// pairs. Keys are normalized the same way raw input is.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))

	for k, v := range values {
		key := canonical(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}

	// Sorted keys keep error messages stable.
	sort.Strings(validKeys)

	return &Normalizer[T]{
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize converts a raw string to the enum type, falling back to the
// default value when the input is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, exists := n.validValues[canonical(raw)]; exists {
		return value
	}
	return n.defaultValue
}

// NormalizeStrict converts a raw string to the enum type and errors on
// unrecognized input. Empty input yields the default without error so
// omitted fields stay optional.
func (n *Normalizer[T]) NormalizeStrict(raw string) (T, error) {
	cleaned := canonical(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, exists := n.validValues[cleaned]; exists {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// ValidKeys returns all accepted input strings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	result := make([]string, len(n.validKeys))
	copy(result, n.validKeys)
	return result
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
