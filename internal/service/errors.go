package service

import "fmt"

// DecodeError is returned when the provider's response is not a JSON object.
// It is fatal for the call. The same condition on a cached value is a CacheReadFailure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode weather payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CacheReadFailure records a cache read that could not produce a usable value:
// the backend failed or the stored text did not decode. Always recovered by
// falling through to the provider.
type CacheReadFailure struct {
	Key string
	Err error
}

func (e *CacheReadFailure) Error() string {
	return fmt.Sprintf("cache read %s: %v", e.Key, e.Err)
}

func (e *CacheReadFailure) Unwrap() error { return e.Err }

// CacheWriteFailure records a failed cache population. It never changes the
// payload returned to the caller.
type CacheWriteFailure struct {
	Key string
	Err error
}

func (e *CacheWriteFailure) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Key, e.Err)
}

func (e *CacheWriteFailure) Unwrap() error { return e.Err }
