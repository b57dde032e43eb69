// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

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

// ParseSpotifyID extracts the bare id of a Spotify resource of the given kind
// (artist, album, playlist, track) from an id, a spotify:kind:id URI or an
// open.spotify.com URL.
func ParseSpotifyID(kind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty %s reference", ErrInvalidArgument, kind)
	}

	switch {
	case strings.HasPrefix(ref, "spotify:"):
		parts := strings.Split(ref, ":")
		if len(parts) != 3 || parts[1] != kind {
			return "", fmt.Errorf("%w: %q is not a %s URI", ErrInvalidArgument, ref, kind)
		}
		ref = parts[2]
	case strings.Contains(ref, "://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		// open.spotify.com/intl-de/artist/<id> carries a locale segment
		if len(segments) == 3 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) != 2 || segments[0] != kind {
			return "", fmt.Errorf("%w: %q is not a %s URL", ErrInvalidArgument, ref, kind)
		}
		ref = segments[1]
	}

	if !isBase62(ref) {
		return "", fmt.Errorf("%w: %q is not a valid %s id", ErrInvalidArgument, ref, kind)
	}
	return ref, nil
}

func isBase62(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
