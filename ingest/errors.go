package ingest

// FetchError wraps a failed upstream call with enough context for the
// Scheduler to log a useful backoff reason without inspecting internals.
type FetchError struct {
	Stage string // "xhr" or "page"
	Cause error
}

func (e *FetchError) Error() string {
	return "fetch failed at " + e.Stage + ": " + e.Cause.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
