// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/discog/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

// command builds the root `discog` command.
func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:     "discog",
		Usage:    "Keep Spotify playlists in sync with the discographies of followed artists",
		Version:  version,
		Flags:    globalFlags(),
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   shared.DefaultConfigPath(),
			Sources: cli.EnvVars("DISCOG_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "Log every Spotify API request",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
		&cli.StringFlag{
			Name:    "client-id",
			Usage:   "Spotify client id",
			Sources: cli.EnvVars("SPOTIFY_ID"),
		},
		&cli.StringFlag{
			Name:    "client-secret",
			Usage:   "Spotify client secret",
			Sources: cli.EnvVars("SPOTIFY_SECRET"),
		},
		&cli.StringFlag{
			Name:    "redirect-uri",
			Usage:   "Spotify OAuth redirect URI",
			Sources: cli.EnvVars("SPOTIFY_REDIRECT_URI"),
		},
	}
}

func albumTypeFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "album-type",
		Usage: "Album types to sync (album, single, compilation, appears_on); repeatable",
	}
}

func tuiFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view",
	}
}

// playlistCommand manages one playlist and the artists synced into it.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlist",
		Aliases:   []string{"pl"},
		Usage:     "Add or remove an artist's discography, or pull in new releases",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   "Artist id, URI or URL whose albums to add",
			},
			&cli.StringFlag{
				Name:    "remove",
				Aliases: []string{"r"},
				Usage:   "Artist id, URI or URL whose albums to remove",
			},
			&cli.BoolFlag{
				Name:    "update",
				Aliases: []string{"u"},
				Usage:   "Add albums released by the playlist's artists since the last run",
			},
			albumTypeFlag(),
			tuiFlag(),
		},
		Action: r.Playlist,
	}
}

// artistsCommand applies an action to several artists at once without recording them.
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "artists",
		Usage:     "Add (or remove) the albums of artists to a playlist",
		ArgsUsage: "ARTIST...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remove",
				Usage: "Remove the artists' albums and unfollow them",
			},
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Target playlist (default: sync.default_playlist)",
			},
			albumTypeFlag(),
			tuiFlag(),
		},
		Action: r.Artists,
		Commands: []*cli.Command{
			{
				Name:      "total",
				Usage:     "Print the number of tracks across an artist's albums",
				ArgsUsage: "ARTIST",
				Action:    r.ArtistsTotal,
			},
		},
	}
}

// statusCommand shows recorded artists and recent runs.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show synced artists per playlist and recent sync runs",
		ArgsUsage: "[NAME]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of runs to show",
				Value: 10,
			},
		},
		Action: r.Status,
	}
}

// authCommand runs the OAuth login.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in to Spotify and cache the token",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: authTimeout,
			},
		},
		Action: r.Auth,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
