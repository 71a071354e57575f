package crawler

import (
	"errors"
	"fmt"
)

// Error categories shared by every stage. Callers match them with errors.Is.
var (
	// ErrInvalidInput marks malformed or missing input such as an empty URL or absent config.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransport marks connection failures and non-2xx HTTP statuses.
	ErrTransport = errors.New("transport failure")
	// ErrTimeout marks a fetch that exceeded its deadline.
	ErrTimeout = errors.New("fetch timed out")
	// ErrExtractionAssumption marks page data that violates an assumed format.
	ErrExtractionAssumption = errors.New("extraction assumption violated")
	// ErrStorage marks a failed object-store write.
	ErrStorage = errors.New("storage failure")
)

// FetchError describes a failed document fetch.
type FetchError struct {
	URL        string
	StatusCode int
	// Kind is ErrTransport or ErrTimeout.
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %v (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the category and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
