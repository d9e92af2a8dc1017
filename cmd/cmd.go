// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/spotkit/internal/formatter"
	"github.com/desertthunder/spotkit/internal/tasks"
	"github.com/urfave/cli/v3"
)

func maxPagesFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "max-pages",
		Usage: "Follow-up pages to fetch after the first (0 for all)",
	}
}

func idsFlag(usage string) cli.Flag {
	return &cli.StringSliceFlag{
		Name:     "ids",
		Usage:    usage + " (repeatable or comma separated)",
		Required: true,
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
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify using OAuth2 in the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "show-dialog",
						Usage: "Always show the consent dialog",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 5 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL without opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential",
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show the current user's profile",
		Action: r.Me,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "playlists",
		Usage:  "List the current user's playlists",
		Flags:  []cli.Flag{maxPagesFlag()},
		Action: r.Playlists,
	}
}

func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the tracks of a playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist ID",
				Required: true,
			},
			maxPagesFlag(),
		},
		Action: r.Tracks,
	}
}

func savedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "saved",
		Usage:  "List the tracks saved in your library",
		Flags:  []cli.Flag{maxPagesFlag()},
		Action: r.Saved,
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Save tracks to your library",
				Flags:  []cli.Flag{idsFlag("Track IDs to save")},
				Action: r.SavedAdd,
			},
			{
				Name:   "remove",
				Usage:  "Remove tracks from your library",
				Flags:  []cli.Flag{idsFlag("Track IDs to remove")},
				Action: r.SavedRemove,
			},
		},
	}
}

func recentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "List recently played tracks",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Tracks per page (at most 50)",
				Value: 20,
			},
			maxPagesFlag(),
		},
		Action: r.Recent,
	}
}

// playerCommand handles playback operations
func playerCommand(r *Runner) *cli.Command {
	deviceFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "Target device ID (defaults to the active device)",
		}
	}

	return &cli.Command{
		Name:  "player",
		Usage: "Inspect and control playback",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show what is playing",
				Action: r.PlayerStatus,
			},
			{
				Name:   "devices",
				Usage:  "List available devices",
				Action: r.PlayerDevices,
			},
			{
				Name:  "play",
				Usage: "Start or resume playback",
				Flags: []cli.Flag{
					deviceFlag(),
					&cli.StringFlag{
						Name:  "context",
						Usage: "Album, artist or playlist URI to play",
					},
					&cli.StringSliceFlag{
						Name:  "uri",
						Usage: "Track URI to play (repeatable)",
					},
					&cli.IntFlag{
						Name:  "position",
						Usage: "Start position in milliseconds",
					},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerPause,
			},
		},
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export playlists to files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "ids",
				Usage: "Playlist IDs to export (repeatable or comma separated)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Export every playlist of the current user",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: spotify_export_{epoch})",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown or txt",
				Value:   formatter.FormatJSON,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent workers (at most 10)",
				Value: tasks.DefaultWorkers,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Playlists started per second",
				Value: tasks.DefaultRateLimit,
			},
			maxPagesFlag(),
		},
		Action: r.Export,
	}
}

func rateLimitsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ratelimits",
		Usage: "Inspect recorded rate limit responses",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the most recent events",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Events to show",
						Value: 20,
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Count events within this window",
						Value: 24 * time.Hour,
					},
				},
				Action: r.RateLimitsList,
			},
			{
				Name:  "prune",
				Usage: "Delete old events",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Delete events older than this",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.RateLimitsPrune,
			},
		},
	}
}
