// Package console lets a development machine stand in for the device's
// lines: a key on the keyboard is the button and output lines are logged.
package console

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hiway/murmur/pkg/clock"
)

// DefaultHoldMs is how long the button line reads low after a key press.
// Terminal auto-repeat keeps it low while the key is held down.
const DefaultHoldMs = 60

// Console implements gpio.Pins on a terminal.
type Console struct {
	log      zerolog.Logger
	in       io.Reader
	clock    clock.Clock
	buttonID int
	key      byte
	holdMs   uint64

	mu      sync.Mutex
	lastKey uint64
	keyed   bool
	levels  map[int]bool
	names   map[int]string

	stopOnce sync.Once
	stopChan chan struct{}
	restore  func()

	// OnQuit is called from the input goroutine on Ctrl-C, Ctrl-D or 'q'.
	OnQuit func()
}

// New returns a console whose key acts as the button on line buttonID.
func New(in io.Reader, c clock.Clock, buttonID int, key byte, log zerolog.Logger) *Console {
	return &Console{
		log:      log.With().Str("component", "console").Logger(),
		in:       in,
		clock:    c,
		buttonID: buttonID,
		key:      key,
		holdMs:   DefaultHoldMs,
		levels:   make(map[int]bool),
		names:    make(map[int]string),
		stopChan: make(chan struct{}),
	}
}

// Name labels a line in log output.
func (c *Console) Name(id int, name string) {
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

// Start puts the terminal in raw mode, when input is one, and starts reading
// keys.
func (c *Console) Start() error {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		oldState, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			c.log.Error().Err(err).Msg("Failed to set raw mode on stdin")
			return err
		}
		c.restore = func() {
			term.Restore(int(f.Fd()), oldState)
			c.log.Debug().Msg("Restored terminal state")
		}
	}

	go c.readKeys()
	c.log.Info().Str("key", keyName(c.key)).Msg("Console ready, press the key to play now, q to quit")
	return nil
}

// Stop restores the terminal. Safe to call more than once.
func (c *Console) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		if c.restore != nil {
			c.restore()
		}
	})
}

func (c *Console) readKeys() {
	buf := make([]byte, 64)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			c.HandleInput(buf[:n])
		}
		if err != nil {
			if err != io.EOF && !strings.Contains(err.Error(), "file already closed") {
				c.log.Error().Err(err).Msg("Stdin read error")
			}
			return
		}
		select {
		case <-c.stopChan:
			return
		default:
		}
	}
}

// HandleInput processes raw key bytes.
func (c *Console) HandleInput(data []byte) {
	for _, b := range data {
		switch {
		case b == 0x03 || b == 0x04 || b == 'q':
			if c.OnQuit != nil {
				c.OnQuit()
			}
		case b == c.key:
			c.mu.Lock()
			c.lastKey = c.clock.NowMs()
			c.keyed = true
			c.mu.Unlock()
			c.log.Trace().Msg("Button key pressed")
		}
	}
}

// Read returns the level of id. The button line is active low.
func (c *Console) Read(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.buttonID {
		return !(c.keyed && c.clock.NowMs() < c.lastKey+c.holdMs)
	}
	level, ok := c.levels[id]
	return !ok || level
}

// Write logs level changes of id.
func (c *Console) Write(id int, level bool) {
	c.mu.Lock()
	prev, seen := c.levels[id]
	c.levels[id] = level
	name := c.names[id]
	c.mu.Unlock()

	if seen && prev == level {
		return
	}
	if name == "" {
		name = "line"
	}
	c.log.Debug().Int("line", id).Str("name", name).Bool("level", level).Msg("Line changed")
}

func keyName(k byte) string {
	switch k {
	case ' ':
		return "space"
	case '\r':
		return "enter"
	default:
		return string(k)
	}
}

// CRLFWriter turns "\n" into "\r\n" so log lines render in a raw terminal.
type CRLFWriter struct {
	W io.Writer
}

func (w CRLFWriter) Write(p []byte) (int, error) {
	out := bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	if _, err := w.W.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
