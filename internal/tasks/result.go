package tasks

import (
	"fmt"

	"github.com/desertthunder/discog/internal/models"
)

// Mismatch records a run whose observed track-count change disagrees with the tracks submitted.
//
// Concurrent edits and Spotify's own duplicate handling both cause false positives, so a mismatch is reported and
// never treated as a failure.
type Mismatch struct {
	Playlist string
	Expected int
	Observed int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %d, observed %d", m.Playlist, m.Expected, m.Observed)
}

// Result describes one reconciliation of a playlist.
type Result struct {
	Playlist  string
	Action    Action
	Artist    *models.Artist // Nil for updates
	Albums    []models.Album // Albums added or removed, in processing order
	Submitted int            // Tracks submitted
	Observed  int            // Observed change in the target's track total
	Before    int
	After     int
	Rollovers []string  // Parts created during the run
	Mismatch  *Mismatch // Set when Observed != Submitted
	NoOp      bool
	Message   string // Explanation for no-op results
}

func newResult(playlist string, action Action, artist *models.Artist) *Result {
	return &Result{Playlist: playlist, Action: action, Artist: artist}
}

func noOpResult(playlist string, action Action, artist *models.Artist, format string, args ...any) *Result {
	r := newResult(playlist, action, artist)
	r.NoOp = true
	r.Message = fmt.Sprintf(format, args...)
	return r
}

// Details renders the announce line, one "<album> - <artists>" line per album touched and a line per rollover.
//
// Progress updates may be dropped; these lines are built from the result and are complete.
func (r *Result) Details() []string {
	if r.NoOp {
		return nil
	}

	var lines []string
	if r.Artist != nil {
		lines = append(lines, r.Action.Announce(r.Artist.Name, r.Playlist))
	}
	for _, album := range r.Albums {
		lines = append(lines, "  "+album.Label())
	}
	for _, part := range r.Rollovers {
		lines = append(lines, rolloverMessage(part))
	}
	return lines
}

// Summary renders the lines printed after a run.
func (r *Result) Summary() []string {
	if r.NoOp {
		return []string{r.Message}
	}

	line := r.Action.Summary(r.Observed, r.Submitted, r.Playlist)
	if r.Mismatch != nil {
		line = "WARNING: " + line
	}
	return []string{line, fmt.Sprintf("%s contains %d tracks.", r.Playlist, r.After)}
}

func (r *Result) run(run *models.SyncRun) {
	run.Expected = r.Submitted
	run.Observed = r.Observed
	run.Mismatch = r.Mismatch != nil
}
