package playlist

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks a playlist whose delays or weights fail validation.
	// Nothing from such a playlist is activated.
	ErrInvalid = errors.New("invalid schedule parameters")
	// ErrLineMalformed marks a line that could not produce an entry.
	ErrLineMalformed = errors.New("malformed line")
	// ErrFilenameTooLong marks an entry whose filename exceeds MaxFilenameLen.
	ErrFilenameTooLong = errors.New("filename too long")
)

// LineError describes one skipped playlist line. It is recoverable: parsing
// continues with the next line.
type LineError struct {
	Line int    // 1-based line number in the source
	Text string // trimmed line contents
	Kind error
}

func (e *LineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Kind.Error(), e.Text)
}

func (e *LineError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
