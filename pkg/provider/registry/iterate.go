package registry

import "iter"

// ErrorHandler receives the identifier and error for every failed
// resolution during iteration.
type ErrorHandler func(identifier string, err error)

// Iterate walks the identifiers in their declared order and yields the
// registration for each one that resolves. Resolution failures are
// reported through onError and skipped; they never abort the remaining
// identifiers. The sequence is lazy and single-pass: each step performs
// at most one resolution before suspending. Duplicated identifiers
// yield twice, and yields strictly follow input order.
func (r *Registry) Iterate(identifiers []string, onError ErrorHandler) iter.Seq2[string, *Registration] {
	return func(yield func(string, *Registration) bool) {
		for _, identifier := range identifiers {
			reg, err := r.Resolve(identifier)
			if err != nil {
				if onError != nil {
					onError(identifier, err)
				}
				continue
			}
			if !yield(identifier, reg) {
				return
			}
		}
	}
}

// Iterate walks identifiers against the default registry.
func Iterate(identifiers []string, onError ErrorHandler) iter.Seq2[string, *Registration] {
	return Default.Iterate(identifiers, onError)
}
