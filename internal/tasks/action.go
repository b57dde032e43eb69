package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/discog/internal/services"
	"github.com/desertthunder/discog/internal/shared"
)

// Action is one of the two playlist mutations, [ActionAdd] or [ActionRemove].
//
// Each variant bundles the batch call it submits, the follow call applied to the artist and the sign of the expected
// track-count change.
type Action struct {
	name        string
	verb        string
	progressive string
	preposition string
	batch       func(services.Library, context.Context, string, ...string) error
	follow      func(services.Library, context.Context, ...string) error
	delta       func(before, after int) int
}

var (
	ActionAdd = Action{
		name:        "add",
		verb:        "Added",
		progressive: "Adding",
		preposition: "to",
		batch:       services.Library.AddTracks,
		follow:      services.Library.FollowArtists,
		delta:       func(before, after int) int { return after - before },
	}
	ActionRemove = Action{
		name:        "remove",
		verb:        "Removed",
		progressive: "Removing",
		preposition: "from",
		batch:       services.Library.RemoveTracks,
		follow:      services.Library.UnfollowArtists,
		delta:       func(before, after int) int { return before - after },
	}
)

// ParseAction returns the action called name.
func ParseAction(name string) (Action, error) {
	switch name {
	case ActionAdd.name:
		return ActionAdd, nil
	case ActionRemove.name:
		return ActionRemove, nil
	default:
		return Action{}, fmt.Errorf("%w: action must be one of add/remove, got %q", shared.ErrInvalidArgument, name)
	}
}

func (a Action) String() string {
	return a.name
}

func (a Action) valid() bool {
	return a.batch != nil
}

// Verb is the past tense used in summaries, e.g. "Added".
func (a Action) Verb() string {
	return a.verb
}

// Announce renders the line printed before an artist is processed.
func (a Action) Announce(artist, playlist string) string {
	return fmt.Sprintf("%s %s %s %s...", a.progressive, artist, a.preposition, playlist)
}

// Summary renders "Added X of Y tracks to P."
func (a Action) Summary(observed, expected int, playlist string) string {
	return fmt.Sprintf("%s %d of %d tracks %s %s.", a.verb, observed, expected, a.preposition, playlist)
}
