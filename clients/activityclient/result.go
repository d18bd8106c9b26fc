package activityclient

// Outcome classifies how a client call ended.
type Outcome int

const (
	// OutcomeFailed covers transport errors, undecodable responses and any
	// unexpected status code.
	OutcomeFailed Outcome = iota
	// OutcomeOK means the server accepted the request.
	OutcomeOK
	// OutcomeNotFound means the addressed activity does not exist.
	OutcomeNotFound
	// OutcomeNothingToDo means an update had no fields and no request was sent.
	OutcomeNothingToDo
)

// String returns a human-readable representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNothingToDo:
		return "nothing_to_do"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of a single client call.
type Result[T any] struct {
	Outcome Outcome
	// Value is only meaningful when Outcome is OutcomeOK.
	Value T
	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int
	// Body is the raw response body of an unexpected status.
	Body string
	// Err describes why the call failed.
	Err error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Outcome == OutcomeOK }

// NotFound reports whether the server answered 404.
func (r Result[T]) NotFound() bool { return r.Outcome == OutcomeNotFound }

// NothingToDo reports whether the call was skipped for lack of fields.
func (r Result[T]) NothingToDo() bool { return r.Outcome == OutcomeNothingToDo }

// Failed reports whether the call failed.
func (r Result[T]) Failed() bool { return r.Outcome == OutcomeFailed }

func ok[T any](status int, v T) Result[T] {
	return Result[T]{Outcome: OutcomeOK, StatusCode: status, Value: v}
}

func notFound[T any]() Result[T] {
	return Result[T]{Outcome: OutcomeNotFound, StatusCode: 404}
}

func nothingToDo[T any]() Result[T] {
	return Result[T]{Outcome: OutcomeNothingToDo}
}

func failed[T any](status int, body string, err error) Result[T] {
	return Result[T]{Outcome: OutcomeFailed, StatusCode: status, Body: body, Err: err}
}
