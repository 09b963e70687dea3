package gpio

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultSysfsRoot is the Linux GPIO sysfs class directory.
const DefaultSysfsRoot = "/sys/class/gpio"

// Direction of a line.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Sysfs drives lines through the legacy /sys/class/gpio interface.
type Sysfs struct {
	fs   afero.Fs
	root string
	log  zerolog.Logger
}

// NewSysfs returns lines rooted at root on fs.
func NewSysfs(fs afero.Fs, root string, log zerolog.Logger) *Sysfs {
	return &Sysfs{
		fs:   fs,
		root: root,
		log:  log.With().Str("component", "gpio").Str("root", root).Logger(),
	}
}

func (s *Sysfs) linePath(id int, file string) string {
	return path.Join(s.root, "gpio"+strconv.Itoa(id), file)
}

// Setup exports the line if needed and sets its direction.
func (s *Sysfs) Setup(id int, dir Direction) error {
	exists, err := afero.DirExists(s.fs, path.Join(s.root, "gpio"+strconv.Itoa(id)))
	if err != nil {
		return fmt.Errorf("failed to check gpio%d: %w", id, err)
	}
	if !exists {
		if err := afero.WriteFile(s.fs, path.Join(s.root, "export"), []byte(strconv.Itoa(id)), 0o200); err != nil {
			return fmt.Errorf("failed to export gpio%d: %w", id, err)
		}
	}
	if err := afero.WriteFile(s.fs, s.linePath(id, "direction"), []byte(dir), 0o644); err != nil {
		return fmt.Errorf("failed to set gpio%d direction: %w", id, err)
	}
	s.log.Debug().Int("line", id).Str("direction", string(dir)).Msg("Line configured")
	return nil
}

// Read returns the line level. A line that cannot be read reports high,
// which for the active-low button means released.
func (s *Sysfs) Read(id int) bool {
	data, err := afero.ReadFile(s.fs, s.linePath(id, "value"))
	if err != nil {
		s.log.Debug().Err(err).Int("line", id).Msg("Failed to read line")
		return true
	}
	return strings.TrimSpace(string(data)) != "0"
}

func (s *Sysfs) Write(id int, level bool) {
	v := "0"
	if level {
		v = "1"
	}
	f, err := s.fs.OpenFile(s.linePath(id, "value"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		s.log.Warn().Err(err).Int("line", id).Msg("Failed to open line")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(v); err != nil {
		s.log.Warn().Err(err).Int("line", id).Msg("Failed to write line")
	}
}

var _ Pins = (*Sysfs)(nil)
