package download

import "github.com/pkg/errors"

var (
	// ErrInvalidPath is returned by the pre-flight destination check when an
	// existing path has the wrong kind (a directory where a file should go,
	// or the reverse).
	ErrInvalidPath = errors.New("invalid destination path")

	// ErrInvalidArgument is returned for unusable option values, such as a
	// negative concurrency limit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransferFailed is returned when a byte transfer cannot complete:
	// a non-2xx response, an unparseable confirmation page, or a stream
	// error mid-download.
	ErrTransferFailed = errors.New("transfer failed")
)
