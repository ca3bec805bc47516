package enums

import (
	"fmt"
	"slices"
)

// values is the closed set of a string enum, in declaration order.
type values[T ~string] []T

func (v values[T]) has(candidate T) bool {
	return slices.Contains(v, candidate)
}

func (v values[T]) parse(kind, raw string) (T, error) {
	if candidate := T(raw); v.has(candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

func (v values[T]) clone() []T {
	return slices.Clone(v)
}
