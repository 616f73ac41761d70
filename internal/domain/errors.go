package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrFeedNotFound    = errors.New("feed not found")
	ErrTooManyFeeds    = errors.New("too many active feeds")
	ErrUnknownCategory = errors.New("unknown category")
)

// FetchError is a failed page fetch. The feed keeps its items and can be
// scrolled again to re-request the same page.
type FetchError struct {
	Filter Filter
	Page   int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d of %s: %v", e.Page, e.Filter, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError is a session token that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode session token: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
