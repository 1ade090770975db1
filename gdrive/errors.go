package gdrive

import "github.com/pkg/errors"

var (
	// ErrInvalidURL is returned when a URL does not match any of the
	// recognized Google Drive shapes.
	ErrInvalidURL = errors.New("invalid google drive url")

	// ErrNotFound is returned when a remote resource does not exist or is
	// not accessible without authentication. It is not a transient error.
	ErrNotFound = errors.New("resource not found")
)
