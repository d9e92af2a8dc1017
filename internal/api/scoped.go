package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

// ScopedClient is a [Client] whose authorizer reports granted scopes. Operations that need user consent
// beyond reading (playback control, library writes) are only offered here.
type ScopedClient struct {
	*Client
	scopes auth.ScopeAuthorizer
}

// NewScopedClient creates a [ScopedClient] backed by authorizer.
func NewScopedClient(authorizer auth.ScopeAuthorizer, opts ClientOpts) *ScopedClient {
	return &ScopedClient{Client: NewClient(authorizer, opts), scopes: authorizer}
}

// Scoped upgrades c when its authorizer reports granted scopes.
func Scoped(c *Client) (*ScopedClient, error) {
	sa, ok := c.authorizer.(auth.ScopeAuthorizer)
	if !ok {
		return nil, fmt.Errorf("%w: authorizer %T does not report granted scopes", shared.ErrMissingScope, c.authorizer)
	}
	return &ScopedClient{Client: c, scopes: sa}, nil
}

// Granted reports whether every scope in names has been granted.
func (c *ScopedClient) Granted(names ...string) bool {
	return auth.NewScopes(names...).IsSubsetOf(c.scopes.GrantedScopes())
}

// Player returns the playback control group.
func (c *ScopedClient) Player() *Player {
	return &Player{client: c}
}

// SaveTracks adds up to [MaxTrackIDs] tracks to the user's library.
func (c *ScopedClient) SaveTracks(ctx context.Context, ids []string) error {
	if err := checkIDs(ids); err != nil {
		return err
	}
	d, err := NewRequest(http.MethodPut, "/me/tracks", auth.ScopeUserLibraryModify).
		WithJSON(map[string][]string{"ids": ids})
	if err != nil {
		return err
	}
	_, err = c.Do(ctx, d)
	return err
}

// RemoveSavedTracks removes up to [MaxTrackIDs] tracks from the user's library.
func (c *ScopedClient) RemoveSavedTracks(ctx context.Context, ids []string) error {
	if err := checkIDs(ids); err != nil {
		return err
	}
	d := NewRequest(http.MethodDelete, "/me/tracks", auth.ScopeUserLibraryModify).
		WithQuery("ids", Ptr(strings.Join(ids, ",")))
	_, err := c.Do(ctx, d)
	return err
}

// Player controls playback on the user's devices. Rejections with a reason (no active device, premium
// required) surface as [PlaybackRejectedError].
type Player struct {
	client *ScopedClient
}

// NewPlayer builds a [Player] from c, failing when c's authorizer cannot report granted scopes.
func NewPlayer(c *Client) (*Player, error) {
	sc, err := Scoped(c)
	if err != nil {
		return nil, err
	}
	return sc.Player(), nil
}

// State returns the current playback, or nil when nothing is playing.
func (p *Player) State(ctx context.Context) (*PlaybackState, error) {
	return DoJSON[*PlaybackState](ctx, p.client.Client, Get("/me/player", auth.ScopeUserReadPlaybackState))
}

// Devices lists the user's available devices.
func (p *Player) Devices(ctx context.Context) ([]Device, error) {
	resp, err := DoJSON[struct {
		Devices []Device `json:"devices"`
	}](ctx, p.client.Client, Get("/me/player/devices", auth.ScopeUserReadPlaybackState))
	if err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// PlayOptions selects what to play. All fields are optional; an empty value resumes playback.
type PlayOptions struct {
	DeviceID   *string
	ContextURI string
	URIs       []string
	PositionMS *int
}

type playBody struct {
	ContextURI string   `json:"context_uri,omitempty"`
	URIs       []string `json:"uris,omitempty"`
	PositionMS *int     `json:"position_ms,omitempty"`
}

// Play starts or resumes playback.
func (p *Player) Play(ctx context.Context, opts PlayOptions) error {
	d := NewRequest(http.MethodPut, "/me/player/play", auth.ScopeUserModifyPlaybackState).
		WithQuery("device_id", opts.DeviceID)
	if opts.ContextURI != "" || len(opts.URIs) > 0 || opts.PositionMS != nil {
		var err error
		d, err = d.WithJSON(playBody{ContextURI: opts.ContextURI, URIs: opts.URIs, PositionMS: opts.PositionMS})
		if err != nil {
			return err
		}
	}
	_, err := p.client.Do(ctx, d)
	return err
}

// Pause pauses playback on deviceID, or on the active device when nil.
func (p *Player) Pause(ctx context.Context, deviceID *string) error {
	d := NewRequest(http.MethodPut, "/me/player/pause", auth.ScopeUserModifyPlaybackState).
		WithQuery("device_id", deviceID)
	_, err := p.client.Do(ctx, d)
	return err
}
