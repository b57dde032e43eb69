package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/ui"
	"github.com/urfave/cli/v3"
)

// Status prints the artists recorded per playlist and the most recent sync runs. It makes no API calls.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStores(); err != nil {
		return err
	}

	name := cmd.Args().First()
	playlists := []string{name}
	if name == "" {
		var err error
		if playlists, err = r.store.Playlists(); err != nil {
			return err
		}
	}

	var rows [][]string
	for _, pl := range playlists {
		artists, err := r.store.Artists(pl)
		if err != nil {
			return err
		}
		for i, id := range artists {
			rows = append(rows, []string{pl, strconv.Itoa(i + 1), id})
		}
	}

	r.writePlain("%s\n", ui.Title("Artists"))
	if len(rows) == 0 {
		r.writePlain("%s\n", ui.Muted("No artists recorded."))
	} else {
		r.writePlain("%s\n", renderTable([]string{"Playlist", "#", "Artist"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	runs, err := r.runs.List(name, cmd.Int("limit"))
	if err != nil {
		return err
	}

	r.writePlainln("%s", ui.Title("Recent runs"))
	if len(runs) == 0 {
		return r.writePlain("%s\n", ui.Muted("No runs recorded."))
	}

	rows = rows[:0]
	for _, run := range runs {
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.Playlist,
			run.Action,
			strings.Join(run.Artists, ", "),
			strconv.Itoa(run.Expected),
			strconv.Itoa(run.Observed),
			runStatus(run),
			run.Duration().Round(time.Millisecond).String(),
		})
	}

	return r.writePlain("%s\n", renderTable(
		[]string{"Started", "Playlist", "Action", "Artists", "Submitted", "Observed", "Status", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
	))
}

func runStatus(run *models.SyncRun) string {
	switch {
	case run.Error != "":
		return "failed: " + run.Error
	case run.Mismatch:
		return "WARNING"
	default:
		return "ok"
	}
}
