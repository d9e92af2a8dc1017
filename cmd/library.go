package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/formatter"
	"github.com/desertthunder/spotkit/internal/ui"
	"github.com/urfave/cli/v3"
)

func walkOptions(cmd *cli.Command, scopes ...string) api.WalkOptions {
	return api.WalkOptions{MaxExtraPages: cmd.Int("max-pages"), Scopes: auth.NewScopes(scopes...)}
}

func trackRow(i int, t api.Track) []string {
	return []string{
		strconv.Itoa(i + 1),
		ui.Truncate(t.Name, 40),
		ui.Truncate(strings.Join(t.ArtistNames(), ", "), 30),
		ui.Truncate(t.Album.Name, 30),
		formatter.FormatDuration(t.Duration()),
	}
}

var trackHeaders = []string{"#", "Title", "Artists", "Album", "Length"}

// Me shows the current user's profile.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return r.requireLogin(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}
	r.writeln(ui.Styles.Title(user.DisplayName))
	return r.writeln(ui.KeyValues(
		ui.Pair{Key: "ID", Value: user.ID},
		ui.Pair{Key: "Email", Value: user.Email},
		ui.Pair{Key: "Country", Value: user.Country},
		ui.Pair{Key: "Product", Value: user.Product},
		ui.Pair{Key: "Followers", Value: strconv.Itoa(user.Followers.Total)},
	))
}

// Playlists lists the current user's playlists, walking every page unless --max-pages caps it.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}
	playlists, err := client.AllPlaylists(ctx, walkOptions(cmd))
	if err != nil {
		return r.requireLogin(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	rows := make([][]string, 0, len(playlists))
	for i, p := range playlists {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			ui.Truncate(p.Name, 40),
			strconv.Itoa(p.Tracks.Total),
			ui.Truncate(p.Owner.DisplayName, 20),
			formatter.Visibility(p.Public),
			p.ID,
		})
	}
	r.writeln(ui.Styles.Title("Playlists (" + strconv.Itoa(len(playlists)) + ")"))
	return r.writeln(ui.Table([]string{"#", "Name", "Tracks", "Owner", "Visibility", "ID"}, rows))
}

// Tracks lists the items of one playlist. Local files and removed tracks are shown as unavailable.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}
	items, err := client.AllPlaylistItems(ctx, cmd.String("playlist"), walkOptions(cmd))
	if err != nil {
		return r.requireLogin(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		if item.Track == nil {
			rows = append(rows, []string{strconv.Itoa(i + 1), ui.Styles.Help("(unavailable)"), "", "", ""})
			continue
		}
		rows = append(rows, trackRow(i, *item.Track))
	}
	return r.writeln(ui.Table(trackHeaders, rows))
}

// Saved lists the tracks in the user's library.
func (r *Runner) Saved(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}
	first, err := client.SavedTracks(ctx, api.PageOpts{Limit: api.Ptr(api.MaxPageLimit)})
	if err != nil {
		return r.requireLogin(err)
	}
	saved, err := api.CollectItems[api.SavedTrack](api.Pages(ctx, client, first, walkOptions(cmd, auth.ScopeUserLibraryRead)))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(saved, true)
	}

	rows := make([][]string, 0, len(saved))
	for i, s := range saved {
		rows = append(rows, trackRow(i, s.Track))
	}
	r.writeln(ui.Styles.Title("Saved tracks (" + strconv.Itoa(first.Total) + ")"))
	return r.writeln(ui.Table(trackHeaders, rows))
}

// Recent lists recently played tracks, following the before cursor for extra pages.
func (r *Runner) Recent(ctx context.Context, cmd *cli.Command) error {
	client, err := r.pipeline(ctx)
	if err != nil {
		return err
	}
	first, err := client.RecentlyPlayed(ctx, api.Ptr(cmd.Int("limit")), nil)
	if err != nil {
		return r.requireLogin(err)
	}
	plays, err := api.CollectItems[api.PlayHistory](api.CursorPages(ctx, client, first, walkOptions(cmd, auth.ScopeUserReadRecentlyPlayed)))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(plays, true)
	}

	rows := make([][]string, 0, len(plays))
	for _, p := range plays {
		rows = append(rows, []string{
			p.PlayedAt.Local().Format(time.DateTime),
			ui.Truncate(p.Track.Name, 40),
			ui.Truncate(strings.Join(p.Track.ArtistNames(), ", "), 30),
		})
	}
	return r.writeln(ui.Table([]string{"Played", "Title", "Artists"}, rows))
}

// SavedAdd saves tracks to the user's library.
func (r *Runner) SavedAdd(ctx context.Context, cmd *cli.Command) error {
	return r.modifyLibrary(ctx, cmd, "Saved", (*api.ScopedClient).SaveTracks)
}

// SavedRemove removes tracks from the user's library.
func (r *Runner) SavedRemove(ctx context.Context, cmd *cli.Command) error {
	return r.modifyLibrary(ctx, cmd, "Removed", (*api.ScopedClient).RemoveSavedTracks)
}

func (r *Runner) modifyLibrary(ctx context.Context, cmd *cli.Command, verb string, op func(*api.ScopedClient, context.Context, []string) error) error {
	client, err := r.scoped(ctx)
	if err != nil {
		return err
	}
	if !client.Granted(auth.ScopeUserLibraryModify) {
		r.writeln(ui.Styles.Err("Missing the " + auth.ScopeUserLibraryModify + " scope"))
		r.writeln(ui.Styles.Help("Add it to the configured scopes and run 'spotkit auth login' again."))
		return &auth.InsufficientScopeError{
			Required: auth.NewScopes(auth.ScopeUserLibraryModify),
			Granted:  r.coordinator.GrantedScopes(),
		}
	}

	ids := splitIDs(cmd.StringSlice("ids"))
	for start := 0; start < len(ids); start += api.MaxTrackIDs {
		end := min(start+api.MaxTrackIDs, len(ids))
		if err := op(client, ctx, ids[start:end]); err != nil {
			return r.requireLogin(err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"ids": ids, "action": strings.ToLower(verb)}, true)
	}
	return r.writeln(ui.Styles.OK(verb + " " + strconv.Itoa(len(ids)) + " tracks"))
}

// splitIDs accepts repeated flags as well as comma separated values.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
