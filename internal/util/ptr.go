package util

// Deref returns *p, or the zero value when p is nil.
// GraphQL payloads use pointers for nullable fields.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
