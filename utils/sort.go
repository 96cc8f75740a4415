package utils

import "golang.org/x/exp/slices"

// SortFunc sorts s in place using less, via x/exp/slices so the helper
// compiles under this module's go 1.18 generics floor without depending on
// the standard library's slices package (added in go 1.21).
func SortFunc[T any](s []T, less func(a, b T) bool) {
	slices.SortFunc(s, func(a, b T) bool { return less(a, b) })
}
