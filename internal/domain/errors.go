package domain

import "fmt"

// ValidationError reports a malformed or empty NIP list
type ValidationError struct {
	Token  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Token)
}

// FetchError reports a transport, status or decoding failure for one NIP
type FetchError struct {
	NIP int
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch NIP-%02d (%s): %v", e.NIP, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a failure to persist the lockfile
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write lockfile %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
