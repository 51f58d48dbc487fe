package engine

// Kind enumerates the taxonomy of engine-level error kinds named in the spec.
type Kind string

const (
	KindModelNotFound        Kind = "model_not_found"
	KindFailedToLoad         Kind = "failed_to_load"
	KindContextCreateFailed  Kind = "context_creation_failed"
	KindModelNotLoaded       Kind = "model_not_loaded"
	KindGenerationFailed     Kind = "generation_failed"
)

// Error is the engine's structured error type; HTTP and coordinator layers
// switch on Kind rather than string-matching messages.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func newErr(kind Kind, detail string) *Error { return &Error{Kind: kind, Detail: detail} }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
