// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] writing to the given file path, creating parent directories as needed.
//
// Used by the TUI so log lines don't clobber the rendered view.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState generates a random state token for OAuth CSRF protection.
func GenerateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MarshalJSON marshals data to JSON, optionally indented.
func MarshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatDuration renders a duration in seconds as MM:SS or HH:MM:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		return "00:00"
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatBytes renders a byte count as a human readable string (e.g. "1.5 MB").
func FormatBytes(n int64) string {
	val := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if val < 1024.0 {
			return fmt.Sprintf("%.1f %s", val, unit)
		}
		val /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", val)
}

// FormatSpeed renders a transfer rate in bytes per second.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "—"
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// invalid filename characters across the platforms we care about
var invalidFilenameChars = func() map[rune]bool {
	set := map[rune]bool{}
	for _, r := range `<>:"/\|?*` {
		set[r] = true
	}
	return set
}()

// SanitizeFilename replaces characters that are invalid in file names and
// trims leading/trailing dots and spaces. Long names are truncated to keep
// the full path usable on every supported filesystem.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || invalidFilenameChars[r] {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), ". ")
	if len(cleaned) > 200 {
		ext := filepath.Ext(cleaned)
		// back up to a rune boundary so the cut never splits a multi-byte rune
		cut := 200 - len(ext)
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut] + ext
	}

	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

// DuplicateStrategy controls what happens when a download target already exists.
type DuplicateStrategy string

const (
	DuplicateSkip      DuplicateStrategy = "skip"
	DuplicateOverwrite DuplicateStrategy = "overwrite"
	DuplicateRename    DuplicateStrategy = "rename"
)

// ResolveDuplicatePath applies the duplicate-handling strategy to a target path.
//
// Returns the path to write to and whether the download should be skipped
// entirely. The rename strategy appends " (n)" before the extension until a
// free name is found.
func ResolveDuplicatePath(path string, strategy DuplicateStrategy) (string, bool) {
	if _, err := os.Stat(path); err != nil {
		return path, false
	}

	switch strategy {
	case DuplicateSkip:
		return path, true
	case DuplicateOverwrite:
		return path, false
	default:
		ext := filepath.Ext(path)
		base := strings.TrimSuffix(path, ext)
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
			if _, err := os.Stat(candidate); err != nil {
				return candidate, false
			}
		}
	}
}
