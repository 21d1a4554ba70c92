package docstore

import "fmt"

// RemoteUnavailableError reports that the document store could not be reached
// after the full retry budget (network failures, timeouts, or persistent 5xx).
type RemoteUnavailableError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("document store unavailable: %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// RemoteRejectedError reports a non-retryable 4xx response.
type RemoteRejectedError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("document store rejected %s with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// NotACollectionError reports that an identifier does not refer to a
// collection (the store answers schema fetches for other resource kinds with
// an invalid-type status).
type NotACollectionError struct {
	ID string
}

func (e *NotACollectionError) Error() string {
	return fmt.Sprintf("%q is not a collection", e.ID)
}

// CreateFailedError reports a create call whose success response was missing
// the expected handle.
type CreateFailedError struct {
	Kind  string // "record" or "collection"
	Title string // attempted collection title, when known
}

func (e *CreateFailedError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("failed to create %s %q", e.Kind, e.Title)
	}
	return fmt.Sprintf("failed to create %s", e.Kind)
}
