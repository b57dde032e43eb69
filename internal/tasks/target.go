package tasks

import (
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/discog/internal/models"
)

// Target is a logical playlist: the primary playlist receiving new tracks plus its rollover parts.
type Target struct {
	Name    string
	Primary models.Playlist
	Parts   []models.Playlist // Sorted by suffix

	// Duplicates are further playlists named exactly Name. They never receive tracks but count as
	// part of the target for diffing and removal.
	Duplicates []models.Playlist

	suffixes []int
}

// Playlists returns the primary followed by every part and duplicate.
func (t *Target) Playlists() []models.Playlist {
	out := make([]models.Playlist, 0, len(t.Parts)+len(t.Duplicates)+1)
	out = append(out, t.Primary)
	out = append(out, t.Parts...)
	return append(out, t.Duplicates...)
}

// NextSuffix is one more than the highest part suffix, or 1 without parts.
func (t *Target) NextSuffix() int {
	n := 0
	for _, s := range t.suffixes {
		n = max(n, s)
	}
	return n + 1
}

// PartName renders the name of rollover part n.
func (t *Target) PartName(n int) string {
	return t.Name + "-" + strconv.Itoa(n)
}

func (t *Target) addPart(pl models.Playlist, n int) {
	i := 0
	for i < len(t.suffixes) && t.suffixes[i] < n {
		i++
	}
	t.Parts = slices.Insert(t.Parts, i, pl)
	t.suffixes = slices.Insert(t.suffixes, i, n)
}

// PartSuffix reports whether name is a rollover part of base ("<base>-<N>", N a positive integer) and returns N.
func PartSuffix(base, name string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, base+"-")
	if !ok || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
