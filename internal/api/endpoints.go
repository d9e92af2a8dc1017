package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

const (
	// MaxPageLimit is the largest page size most list endpoints accept.
	MaxPageLimit = 50
	// MaxTrackIDs is the most ids accepted by the several-tracks endpoints.
	MaxTrackIDs = 50
)

// PageOpts selects a page; nil fields are left to the API's defaults.
type PageOpts struct {
	Limit  *int
	Offset *int
}

func (o PageOpts) apply(d RequestDescriptor) RequestDescriptor {
	limit := o.Limit
	if limit != nil && *limit > MaxPageLimit {
		limit = Ptr(MaxPageLimit)
	}
	return d.WithInt("limit", limit).WithInt("offset", o.Offset)
}

// CurrentUser retrieves the current user's profile.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	return DoJSON[User](ctx, c, Get("/me", auth.ScopeUserReadPrivate))
}

// Track retrieves a single track by ID.
func (c *Client) Track(ctx context.Context, id string, market *string) (Track, error) {
	if id == "" {
		return Track{}, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	return DoJSON[Track](ctx, c, Get("/tracks/"+url.PathEscape(id)).WithQuery("market", market))
}

// Tracks retrieves up to [MaxTrackIDs] tracks by ID.
func (c *Client) Tracks(ctx context.Context, ids []string, market *string) ([]Track, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}
	d := Get("/tracks").WithQuery("ids", Ptr(strings.Join(ids, ","))).WithQuery("market", market)
	resp, err := DoJSON[struct {
		Tracks []Track `json:"tracks"`
	}](ctx, c, d)
	if err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// Playlist retrieves a playlist with the first page of its items.
func (c *Client) Playlist(ctx context.Context, id string) (Playlist, error) {
	if id == "" {
		return Playlist{}, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return DoJSON[Playlist](ctx, c, Get("/playlists/"+url.PathEscape(id)))
}

// PlaylistItems retrieves one page of a playlist's items.
func (c *Client) PlaylistItems(ctx context.Context, id string, opts PageOpts) (Page[PlaylistItem], error) {
	if id == "" {
		return Page[PlaylistItem]{}, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	d := opts.apply(Get("/playlists/"+url.PathEscape(id)+"/tracks", auth.ScopePlaylistReadPrivate))
	return DoJSON[Page[PlaylistItem]](ctx, c, d)
}

// CurrentUserPlaylists retrieves one page of the current user's playlists.
func (c *Client) CurrentUserPlaylists(ctx context.Context, opts PageOpts) (Page[SimplePlaylist], error) {
	d := opts.apply(Get("/me/playlists", auth.ScopePlaylistReadPrivate))
	return DoJSON[Page[SimplePlaylist]](ctx, c, d)
}

// SavedTracks retrieves one page of the user's saved tracks.
func (c *Client) SavedTracks(ctx context.Context, opts PageOpts) (Page[SavedTrack], error) {
	d := opts.apply(Get("/me/tracks", auth.ScopeUserLibraryRead))
	return DoJSON[Page[SavedTrack]](ctx, c, d)
}

// RecentlyPlayed retrieves the most recent plays, optionally before a unix-millisecond cursor.
func (c *Client) RecentlyPlayed(ctx context.Context, limit *int, before *string) (CursorPage[PlayHistory], error) {
	if limit != nil && *limit > MaxPageLimit {
		limit = Ptr(MaxPageLimit)
	}
	d := Get("/me/player/recently-played", auth.ScopeUserReadRecentlyPlayed).
		WithInt("limit", limit).
		WithQuery("before", before)
	return DoJSON[CursorPage[PlayHistory]](ctx, c, d)
}

// AllPlaylists walks every page of the current user's playlists.
func (c *Client) AllPlaylists(ctx context.Context, opts WalkOptions) ([]SimplePlaylist, error) {
	first, err := c.CurrentUserPlaylists(ctx, PageOpts{Limit: Ptr(MaxPageLimit)})
	if err != nil {
		return nil, err
	}
	opts.Scopes = opts.Scopes.Union(auth.NewScopes(auth.ScopePlaylistReadPrivate))
	return CollectItems[SimplePlaylist](Pages(ctx, c, first, opts))
}

// AllPlaylistItems walks every page of a playlist's items.
func (c *Client) AllPlaylistItems(ctx context.Context, id string, opts WalkOptions) ([]PlaylistItem, error) {
	first, err := c.PlaylistItems(ctx, id, PageOpts{Limit: Ptr(MaxPageLimit)})
	if err != nil {
		return nil, err
	}
	opts.Scopes = opts.Scopes.Union(auth.NewScopes(auth.ScopePlaylistReadPrivate))
	return CollectItems[PlaylistItem](Pages(ctx, c, first, opts))
}

func checkIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids provided", shared.ErrMissingArgument)
	}
	if len(ids) > MaxTrackIDs {
		return fmt.Errorf("%w: at most %d ids allowed, got %d", shared.ErrInvalidArgument, MaxTrackIDs, len(ids))
	}
	return nil
}
