package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/spotkit/internal/auth"
)

// savedTracksServer serves total saved tracks in offset pages and records each requested offset
type savedTracksServer struct {
	*httptest.Server
	mu        sync.Mutex
	offsets   []int
	failAfter int // offsets at or past this fail with 400 when > 0
}

func newSavedTracksServer(t *testing.T, total int) *savedTracksServer {
	t.Helper()
	s := &savedTracksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit == 0 {
			limit = 20
		}

		s.mu.Lock()
		s.offsets = append(s.offsets, offset)
		failAfter := s.failAfter
		s.mu.Unlock()

		if failAfter > 0 && offset >= failAfter {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"status":400,"message":"bad offset"}}`))
			return
		}

		page := Page[SavedTrack]{Total: total, Limit: limit, Offset: offset}
		for i := offset; i < offset+limit && i < total; i++ {
			page.Items = append(page.Items, SavedTrack{Track: Track{ID: fmt.Sprintf("t%d", i)}})
		}
		if offset+limit < total {
			next := fmt.Sprintf("%s/me/tracks?offset=%d&limit=%d", s.URL, offset+limit, limit)
			page.Next = &next
		}
		if offset > 0 {
			prev := fmt.Sprintf("%s/me/tracks?offset=%d&limit=%d", s.URL, max(offset-limit, 0), limit)
			page.Previous = &prev
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *savedTracksServer) requested() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

func TestPages(t *testing.T) {
	ctx := context.Background()

	t.Run("walks every page", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})

		first, err := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})
		if err != nil {
			t.Fatalf("SavedTracks() error = %v", err)
		}

		var sizes []int
		for page, err := range Pages(ctx, c, first, WalkOptions{}) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sizes = append(sizes, len(page.Items))
		}

		if !slices.Equal(sizes, []int{50, 50, 25}) {
			t.Errorf("page sizes = %v", sizes)
		}
		if got := server.requested(); !slices.Equal(got, []int{0, 50, 100}) {
			t.Errorf("offsets = %v, want [0 50 100]", got)
		}
	})

	t.Run("collects items", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
		first, _ := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})

		items, err := CollectItems[SavedTrack](Pages(ctx, c, first, WalkOptions{}))
		if err != nil {
			t.Fatalf("CollectItems() error = %v", err)
		}
		if len(items) != 125 || items[0].Track.ID != "t0" || items[124].Track.ID != "t124" {
			t.Errorf("unexpected items: %d", len(items))
		}
	})

	t.Run("single page makes no extra request", func(t *testing.T) {
		server := newSavedTracksServer(t, 10)
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
		first, _ := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})

		items, err := CollectItems[SavedTrack](Pages(ctx, c, first, WalkOptions{}))
		if err != nil || len(items) != 10 {
			t.Errorf("CollectItems() = %d items, %v", len(items), err)
		}
		if got := server.requested(); len(got) != 1 {
			t.Errorf("expected only the first request, got %v", got)
		}
	})

	t.Run("stops at the extra page cap", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
		first, _ := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})

		items, err := CollectItems[SavedTrack](Pages(ctx, c, first, WalkOptions{MaxExtraPages: 1}))
		if err != nil || len(items) != 100 {
			t.Errorf("CollectItems() = %d items, %v", len(items), err)
		}
		if got := server.requested(); !slices.Equal(got, []int{0, 50}) {
			t.Errorf("offsets = %v, want [0 50]", got)
		}
	})

	t.Run("fetches lazily", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
		first, _ := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})

		for range Pages(ctx, c, first, WalkOptions{}) {
			break
		}
		if got := server.requested(); !slices.Equal(got, []int{0}) {
			t.Errorf("offsets = %v, want [0]", got)
		}
	})

	t.Run("error ends the walk", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		server.failAfter = 100
		c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
		first, _ := c.SavedTracks(ctx, PageOpts{Limit: Ptr(50)})

		var pages, errs int
		for _, err := range Pages(ctx, c, first, WalkOptions{}) {
			if err != nil {
				errs++
				var rejected *RequestRejectedError
				if !errors.As(err, &rejected) {
					t.Errorf("expected RequestRejectedError, got %v", err)
				}
				continue
			}
			pages++
		}
		if pages != 2 || errs != 1 {
			t.Errorf("pages = %d, errors = %d", pages, errs)
		}

		items, err := CollectItems[SavedTrack](Pages(ctx, c, first, WalkOptions{}))
		if err == nil || len(items) != 100 {
			t.Errorf("CollectItems() = %d items, %v", len(items), err)
		}
	})

	t.Run("follow-up pages go through authorization", func(t *testing.T) {
		server := newSavedTracksServer(t, 125)
		first := Page[SavedTrack]{Items: []SavedTrack{{}}, Next: Ptr(server.URL + "/me/tracks?offset=50&limit=50")}
		coord := auth.NewCoordinator(auth.CoordinatorOpts{Store: auth.NewStore()})
		c := NewClient(coord, ClientOpts{BaseURL: server.URL})

		_, err := CollectItems[SavedTrack](Pages(ctx, c, first, WalkOptions{Scopes: auth.NewScopes(auth.ScopeUserLibraryRead)}))
		if !errors.Is(err, auth.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if got := server.requested(); len(got) != 0 {
			t.Errorf("expected no requests, got %v", got)
		}
	})
}

func TestCursorPages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		before := r.URL.Query().Get("before")
		page := CursorPage[PlayHistory]{Limit: 2}
		switch before {
		case "":
			page.Items = []PlayHistory{{Track: Track{ID: "a"}}, {Track: Track{ID: "b"}}}
			page.Next = Ptr(server.URL + "/me/player/recently-played?before=100&limit=2")
			page.Cursors = Cursors{Before: Ptr("100")}
		case "100":
			page.Items = []PlayHistory{{Track: Track{ID: "c"}}}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	c := NewClient(auth.StaticAuthorizer{Token: "t"}, ClientOpts{BaseURL: server.URL})
	first, err := c.RecentlyPlayed(context.Background(), Ptr(2), nil)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if first.Cursors.Before == nil || *first.Cursors.Before != "100" {
		t.Errorf("unexpected cursors %+v", first.Cursors)
	}

	items, err := CollectItems[PlayHistory](CursorPages(context.Background(), c, first, WalkOptions{}))
	if err != nil {
		t.Fatalf("CollectItems() error = %v", err)
	}
	var ids []string
	for _, item := range items {
		ids = append(ids, item.Track.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("unexpected items %v", ids)
	}
}
