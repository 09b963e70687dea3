// Package storage models the removable card the playlist and clips live on.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var (
	// ErrUnavailable means the card is not mounted or could not be mounted.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound means the path does not exist on the mounted card.
	ErrNotFound = errors.New("file not found")
)

// Card is a directory on a filesystem that behaves like a removable card:
// it has to be mounted before anything can be read from it and it can vanish
// at any time.
type Card struct {
	fs   afero.Fs
	root string
	log  zerolog.Logger

	mounted afero.Fs
}

// NewCard returns an unmounted card rooted at root on fs.
func NewCard(fs afero.Fs, root string, log zerolog.Logger) *Card {
	return &Card{
		fs:   fs,
		root: root,
		log:  log.With().Str("component", "storage").Str("root", root).Logger(),
	}
}

// Root is the directory the card is mounted from.
func (c *Card) Root() string {
	return c.root
}

// Mount makes the card readable. It fails when the root directory is absent.
func (c *Card) Mount() error {
	ok, err := afero.DirExists(c.fs, c.root)
	if err != nil {
		c.mounted = nil
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		c.mounted = nil
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, c.root)
	}
	c.mounted = afero.NewReadOnlyFs(afero.NewBasePathFs(c.fs, c.root))
	c.log.Debug().Msg("Card mounted")
	return nil
}

// Unmount forgets the mount. Reads fail until the next Mount.
func (c *Card) Unmount() {
	if c.mounted != nil {
		c.log.Debug().Msg("Card unmounted")
	}
	c.mounted = nil
}

// Mounted reports whether Mount has succeeded since the last Unmount.
func (c *Card) Mounted() bool {
	return c.mounted != nil
}

// Open opens a card-relative path for reading.
func (c *Card) Open(name string) (io.ReadCloser, error) {
	if c.mounted == nil {
		return nil, ErrUnavailable
	}
	f, err := c.mounted.Open(path.Clean("/" + name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}
