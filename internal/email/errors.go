package email

import "errors"

// Error kinds. Only ErrConnection is surfaced by ScanAll and Delete; the
// rest are logged and degrade to empty or partial results.
var (
	ErrConnection       = errors.New("imap connection failed")
	ErrFolder           = errors.New("imap folder unavailable")
	ErrDecode           = errors.New("malformed message header")
	ErrNoMatchingFolder = errors.New("no folder matches category")
)
