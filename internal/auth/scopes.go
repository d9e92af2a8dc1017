package auth

import (
	"slices"
	"strings"
)

// Spotify authorization scopes used by the endpoint wrappers.
const (
	ScopeUserReadPrivate           = "user-read-private"
	ScopeUserReadEmail             = "user-read-email"
	ScopePlaylistReadPrivate       = "playlist-read-private"
	ScopePlaylistReadCollaborative = "playlist-read-collaborative"
	ScopeUserLibraryRead           = "user-library-read"
	ScopeUserLibraryModify         = "user-library-modify"
	ScopeUserReadRecentlyPlayed    = "user-read-recently-played"
	ScopeUserReadPlaybackState     = "user-read-playback-state"
	ScopeUserModifyPlaybackState   = "user-modify-playback-state"
	ScopeUserReadCurrentlyPlaying  = "user-read-currently-playing"
	ScopeUserFollowRead            = "user-follow-read"
)

// Scopes is a set of permission identifiers kept sorted and free of duplicates.
type Scopes []string

// NewScopes builds a normalized set from names, dropping blanks and duplicates. An empty set is nil.
func NewScopes(names ...string) Scopes {
	var set Scopes
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set = append(set, name)
	}
	if len(set) == 0 {
		return nil
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// ParseScopes splits the space-delimited scope string returned by the token endpoint.
func ParseScopes(raw string) Scopes {
	return NewScopes(strings.Fields(raw)...)
}

// Contains reports whether name is in the set. It does not rely on s being sorted, so literals work too.
func (s Scopes) Contains(name string) bool {
	return slices.Contains(s, name)
}

// IsSubsetOf reports whether every scope in s is also in granted.
func (s Scopes) IsSubsetOf(granted Scopes) bool {
	return len(s.Missing(granted)) == 0
}

// Missing returns the scopes in s that granted lacks.
func (s Scopes) Missing(granted Scopes) Scopes {
	var missing Scopes
	for _, name := range s {
		if !granted.Contains(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Union returns a new set holding the scopes of both.
func (s Scopes) Union(other Scopes) Scopes {
	return NewScopes(append(slices.Clone(s), other...)...)
}

// String joins the set with spaces, the form used on the wire.
func (s Scopes) String() string {
	return strings.Join(s, " ")
}
