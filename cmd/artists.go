package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/discog/internal/shared"
	"github.com/desertthunder/discog/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Artists adds or removes the albums of every artist given, one artist at a time.
//
// Unlike [Runner.Playlist], the artists are not recorded for later updates.
func (r *Runner) Artists(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	if len(refs) == 0 {
		return fmt.Errorf("%w: at least one artist", shared.ErrMissingArgument)
	}

	actionName := tasks.ActionAdd.String()
	if cmd.Bool("remove") {
		actionName = tasks.ActionRemove.String()
	}
	action, err := tasks.ParseAction(actionName)
	if err != nil {
		return err
	}

	playlist := cmd.String("playlist")
	if playlist == "" {
		playlist = r.config.Sync.DefaultPlaylist
	}

	lock, err := r.lock()
	if err != nil {
		return err
	}
	defer r.release(lock)

	if err := r.connect(ctx, cmd); err != nil {
		return err
	}

	results, err := r.track(ctx, fmt.Sprintf("discog · %s · %s", action, playlist), cmd.Bool("tui"),
		func(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]*tasks.Result, error) {
			return r.engine.Apply(ctx, playlist, refs, action, progress)
		},
	)

	if perr := r.printResults(results); perr != nil && err == nil {
		err = perr
	}
	return err
}

// ArtistsTotal prints the number of tracks across the artist's albums.
func (r *Runner) ArtistsTotal(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("%w: artist", shared.ErrMissingArgument)
	}

	if err := r.connect(ctx, cmd); err != nil {
		return err
	}

	total, err := r.engine.TotalTracks(ctx, ref)
	if err != nil {
		return err
	}
	return r.writePlain("%d\n", total)
}
