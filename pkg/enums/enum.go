package enums

import (
	"fmt"
	"slices"
)

// known reports whether v is one of set.
func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches value exactly against set. kind names the enum in errors.
func parse[T ~string](kind, value string, set []T) (T, error) {
	if v := T(value); known(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
