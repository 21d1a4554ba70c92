package functional

// Map returns a new slice holding fn applied to every element of slice.
func Map[T any, U any](slice []T, fn func(T) U) []U {
	out := make([]U, len(slice))
	for i, item := range slice {
		out[i] = fn(item)
	}
	return out
}

// Filter returns the elements of slice that satisfy keep. The result is
// never nil, so it serializes as an empty list rather than null.
func Filter[T any](slice []T, keep func(T) bool) []T {
	out := make([]T, 0, len(slice))
	for _, item := range slice {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
