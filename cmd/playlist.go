package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/discog/internal/shared"
	"github.com/desertthunder/discog/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Playlist adds an artist, removes an artist and updates, in that order, whichever the flags ask for.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	add, remove, update := cmd.String("add"), cmd.String("remove"), cmd.Bool("update")
	if add == "" && remove == "" && !update {
		return fmt.Errorf("%w: one of --add, --remove or --update", shared.ErrMissingArgument)
	}

	lock, err := r.lock()
	if err != nil {
		return err
	}
	defer r.release(lock)

	if err := r.connect(ctx, cmd); err != nil {
		return err
	}

	r.logger.Debug("syncing playlist", "playlist", name, "add", add, "remove", remove, "update", update)

	results, err := r.track(ctx, "discog · "+name, cmd.Bool("tui"),
		func(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]*tasks.Result, error) {
			var results []*tasks.Result
			if add != "" {
				result, err := r.engine.AddArtist(ctx, name, add, progress)
				if err != nil {
					return results, err
				}
				results = append(results, result)
			}
			if remove != "" {
				result, err := r.engine.RemoveArtist(ctx, name, remove, progress)
				if err != nil {
					return results, err
				}
				results = append(results, result)
			}
			if update {
				result, err := r.engine.Update(ctx, name, progress)
				if err != nil {
					return results, err
				}
				results = append(results, result)
			}
			return results, nil
		},
	)

	if perr := r.printResults(results); perr != nil && err == nil {
		err = perr
	}
	return err
}
