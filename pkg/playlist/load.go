package playlist

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// ErrMissing is returned by Load when the playlist file cannot be opened.
var ErrMissing = errors.New("playlist missing")

// Source opens files by storage-relative path.
type Source interface {
	Open(path string) (io.ReadCloser, error)
}

// Load opens name on src and parses it.
func Load(src Source, name string, log zerolog.Logger) (*Schedule, error) {
	f, err := src.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissing, err)
	}
	defer f.Close()

	s, err := Parse(f, log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return s, nil
}
