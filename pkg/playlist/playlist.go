// Package playlist parses the CONFIG.TXT playlist read from removable storage
// into a validated, weighted table of clips.
//
// The grammar is line based:
//
//	# comment (only when '#' is the very first character of the line)
//	<min_delay_ms>
//	<max_delay_ms>
//	<filename> <weight>
//	...
//
// A '#' anywhere else on a line is ordinary text. "clip.wav 5 # note" is the
// entry clip.wav with weight 5, because the weight field is read as a leading
// run of digits.
package playlist

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/bits"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// MaxSounds caps the number of entries; further lines are ignored.
	MaxSounds = 64
	// MaxFilenameLen is the exclusive upper bound on filename length in bytes.
	MaxFilenameLen = 64
	// DefaultFile is the playlist name looked up at the storage root.
	DefaultFile = "CONFIG.TXT"
	// MaxValue is the largest delay or weight; larger numbers saturate to it.
	MaxValue = math.MaxUint32

	maxLineBytes = 64 * 1024
)

// Entry is one playable clip and its relative weight.
type Entry struct {
	Path   string
	Weight uint64
}

// Schedule is a validated playlist. It is immutable once returned by Parse.
type Schedule struct {
	MinDelayMs  uint64
	MaxDelayMs  uint64
	Entries     []Entry
	TotalWeight uint64

	// Skipped lists lines that were rejected while parsing. They do not make
	// the schedule invalid.
	Skipped []*LineError
}

// Validate checks the schedule invariants.
func (s *Schedule) Validate() error {
	if s.MinDelayMs == 0 {
		return invalidf("min delay must be positive")
	}
	if s.MaxDelayMs == 0 {
		return invalidf("max delay must be positive")
	}
	if s.MaxDelayMs < s.MinDelayMs {
		return invalidf("max delay %d is below min delay %d", s.MaxDelayMs, s.MinDelayMs)
	}
	if len(s.Entries) == 0 {
		return invalidf("no sound entries")
	}
	var sum uint64
	for _, e := range s.Entries {
		var carry uint64
		sum, carry = bits.Add64(sum, e.Weight, 0)
		if carry != 0 {
			return invalidf("total weight overflows")
		}
	}
	if sum != s.TotalWeight {
		return invalidf("total weight %d does not match entries (%d)", s.TotalWeight, sum)
	}
	if s.TotalWeight == 0 {
		return invalidf("total weight is zero")
	}
	return nil
}

// Share returns the selection probability of entry i.
func (s *Schedule) Share(i int) float64 {
	if s.TotalWeight == 0 || i < 0 || i >= len(s.Entries) {
		return 0
	}
	return float64(s.Entries[i].Weight) / float64(s.TotalWeight)
}

// Parse reads a playlist from r. Per-line problems are logged and recorded in
// Schedule.Skipped; only a read failure or a failed validation is returned as
// an error, in which case no schedule is returned.
func Parse(r io.Reader, log zerolog.Logger) (*Schedule, error) {
	log = log.With().Str("component", "playlist").Logger()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	s := &Schedule{}
	lineNo := 0
	next := func() (string, bool) {
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if isComment(line) {
				continue
			}
			return strings.TrimSpace(line), true
		}
		return "", false
	}

	if line, ok := next(); ok {
		s.MinDelayMs = parseUint(line)
	}
	if line, ok := next(); ok {
		s.MaxDelayMs = parseUint(line)
	}

	for len(s.Entries) < MaxSounds {
		line, ok := next()
		if !ok {
			break
		}
		entry, lineErr := parseEntry(line)
		if lineErr != nil {
			lineErr.Line = lineNo
			log.Warn().Err(lineErr).Msg("Rejecting playlist line")
			s.Skipped = append(s.Skipped, lineErr)
			continue
		}
		if entry.Weight == 0 {
			log.Debug().Int("line", lineNo).Str("path", entry.Path).Msg("Entry has zero weight")
		}
		log.Debug().Str("path", entry.Path).Uint64("weight", entry.Weight).Msg("Adding entry")
		s.Entries = append(s.Entries, entry)
		s.TotalWeight += entry.Weight
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	if err := s.Validate(); err != nil {
		log.Warn().Err(err).Msg("Unable to load all params from playlist")
		return nil, err
	}

	log.Debug().
		Uint64("min_delay_ms", s.MinDelayMs).
		Uint64("max_delay_ms", s.MaxDelayMs).
		Int("entries", len(s.Entries)).
		Uint64("total_weight", s.TotalWeight).
		Msg("Playlist parsed")
	return s, nil
}

// isComment reports whether the line is a comment. Only a leading '#' counts.
func isComment(line string) bool {
	return len(line) > 0 && line[0] == '#'
}

// parseEntry splits an already trimmed line on its first space. A line with
// no space keeps the whole text as the filename and gets weight zero.
func parseEntry(line string) (Entry, *LineError) {
	name, weight, found := strings.Cut(line, " ")
	if name == "" {
		return Entry{}, &LineError{Text: line, Kind: ErrLineMalformed}
	}
	if len(name) >= MaxFilenameLen {
		return Entry{}, &LineError{Text: line, Kind: ErrFilenameTooLong}
	}
	e := Entry{Path: name}
	if found {
		e.Weight = parseUint(weight)
	}
	return e, nil
}

// parseUint reads an unsigned decimal the way C's atol reads a number:
// leading whitespace is skipped and the first non-digit ends it. Text with no
// leading digits, or with a sign, is zero. Values saturate at MaxValue.
func parseUint(s string) uint64 {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + uint64(c-'0')
		if n > MaxValue {
			n = MaxValue
		}
	}
	return n
}
