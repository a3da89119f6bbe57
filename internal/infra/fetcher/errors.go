package fetcher

import "errors"

// Extraction failure causes. Extract wraps each of them together with
// entity.ErrExtractionFailed.
var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrPrivateIP         = errors.New("private IP address")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrBodyTooLarge      = errors.New("response body too large")
	ErrTimeout           = errors.New("extraction timed out")
	ErrNoReadableContent = errors.New("no readable content")
)
