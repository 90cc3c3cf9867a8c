package reconcile

// Reason explains the outcome of a lookup.
type Reason int

const (
	Found Reason = iota
	// NotFound means the listing succeeded but nothing matched.
	NotFound
	// TransportError means the listing itself failed.
	TransportError
)

func (r Reason) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case TransportError:
		return "transport error"
	}
	return "unknown"
}

// Result is the outcome of a lookup which never fails outright. Callers
// currently treat NotFound and TransportError alike, as "skip"; the reason is
// kept so that they can diverge later.
type Result[T any] struct {
	Value  T
	Reason Reason
	// Err is set when Reason is TransportError.
	Err error
}

func (r Result[T]) Found() bool {
	return r.Reason == Found
}

func found[T any](v T) Result[T] {
	return Result[T]{Value: v, Reason: Found}
}

func notFound[T any]() Result[T] {
	return Result[T]{Reason: NotFound}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Reason: TransportError, Err: err}
}
