// Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
package api

import "time"

type Followers struct {
	Total int `json:"total"`
}

// Image is an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// User is a user profile.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   Followers `json:"followers"`
	Images      []Image   `json:"images"`
	URI         string    `json:"uri"`
}

type ExternalIDs struct {
	ISRC string `json:"isrc"`
}

// Artist is a simplified artist.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// Album is a simplified album.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	Images      []Image  `json:"images"`
	URI         string   `json:"uri"`
}

// Track is a full track object.
type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []Artist    `json:"artists"`
	Album       Album       `json:"album"`
	DurationMS  int         `json:"duration_ms"`
	Explicit    bool        `json:"explicit"`
	ExternalIDs ExternalIDs `json:"external_ids"`
	Popularity  int         `json:"popularity"`
	URI         string      `json:"uri"`
}

// ArtistNames returns the names of the track's artists.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type TrackCount struct {
	Total int `json:"total"`
}

// SimplePlaylist is the playlist shape returned by list endpoints.
type SimplePlaylist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Owner         Owner      `json:"owner"`
	Public        bool       `json:"public"`
	Collaborative bool       `json:"collaborative"`
	SnapshotID    string     `json:"snapshot_id"`
	Tracks        TrackCount `json:"tracks"`
	Images        []Image    `json:"images"`
	URI           string     `json:"uri"`
}

// Playlist is a full playlist with the first page of its items.
type Playlist struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Owner         Owner              `json:"owner"`
	Public        bool               `json:"public"`
	Collaborative bool               `json:"collaborative"`
	SnapshotID    string             `json:"snapshot_id"`
	Followers     Followers          `json:"followers"`
	Tracks        Page[PlaylistItem] `json:"tracks"`
	Images        []Image            `json:"images"`
	URI           string             `json:"uri"`
}

// PlaylistItem is a track within a playlist. Track is nil for removed or local-only entries.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// SavedTrack is a track saved in the user's library.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// PlayHistory is a recently played track.
type PlayHistory struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// Device is a playback device.
type Device struct {
	ID               *string `json:"id"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	IsActive         bool    `json:"is_active"`
	IsRestricted     bool    `json:"is_restricted"`
	IsPrivateSession bool    `json:"is_private_session"`
	VolumePercent    *int    `json:"volume_percent"`
}

// PlaybackState is the user's current playback. Item is nil between tracks or for episodes.
type PlaybackState struct {
	Device       Device `json:"device"`
	ShuffleState bool   `json:"shuffle_state"`
	RepeatState  string `json:"repeat_state"`
	Timestamp    int64  `json:"timestamp"`
	ProgressMS   *int   `json:"progress_ms"`
	IsPlaying    bool   `json:"is_playing"`
	Item         *Track `json:"item"`
}
