package api

import (
	"context"
	"iter"

	"github.com/desertthunder/spotkit/internal/auth"
)

// Page is an offset-paginated result. Next and Previous are absolute URLs, nil at either end.
type Page[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

func (p Page[T]) PageItems() []T { return p.Items }

func (p Page[T]) NextURL() (string, bool) { return deref(p.Next) }

// Cursors holds the cursor pair of a [CursorPage].
type Cursors struct {
	After  *string `json:"after"`
	Before *string `json:"before"`
}

// CursorPage is a cursor-paginated result, used by endpoints such as recently played.
type CursorPage[T any] struct {
	Href    string  `json:"href"`
	Items   []T     `json:"items"`
	Total   *int    `json:"total,omitempty"`
	Limit   int     `json:"limit"`
	Next    *string `json:"next"`
	Cursors Cursors `json:"cursors"`
}

func (p CursorPage[T]) PageItems() []T { return p.Items }

func (p CursorPage[T]) NextURL() (string, bool) { return deref(p.Next) }

// Pager is implemented by both page shapes.
type Pager[T any] interface {
	PageItems() []T
	NextURL() (string, bool)
}

// WalkOptions bounds a page walk.
type WalkOptions struct {
	// MaxExtraPages caps the pages fetched after the first; zero means no cap.
	MaxExtraPages int
	// Scopes are required for every follow-up request.
	Scopes auth.Scopes
}

// Walk yields first and then follows its next links through c, one page at a time. A page is requested only
// after the previous one was yielded and the consumer continued. A failed fetch is yielded once and ends the
// walk.
func Walk[T any, P Pager[T]](ctx context.Context, c *Client, first P, opts WalkOptions) iter.Seq2[P, error] {
	return func(yield func(P, error) bool) {
		page := first
		fetched := 0
		for {
			if !yield(page, nil) {
				return
			}

			next, ok := page.NextURL()
			if !ok {
				return
			}
			if opts.MaxExtraPages > 0 && fetched >= opts.MaxExtraPages {
				return
			}

			d := Get(next)
			d.Scopes = opts.Scopes
			var err error
			page, err = DoJSON[P](ctx, c, d)
			if err != nil {
				var zero P
				yield(zero, err)
				return
			}
			fetched++
		}
	}
}

// Pages walks offset pages starting at first.
func Pages[T any](ctx context.Context, c *Client, first Page[T], opts WalkOptions) iter.Seq2[Page[T], error] {
	return Walk[T](ctx, c, first, opts)
}

// CursorPages walks cursor pages starting at first.
func CursorPages[T any](ctx context.Context, c *Client, first CursorPage[T], opts WalkOptions) iter.Seq2[CursorPage[T], error] {
	return Walk[T](ctx, c, first, opts)
}

// CollectItems drains pages and concatenates their items. Items gathered before an error are returned with it.
func CollectItems[T any, P Pager[T]](pages iter.Seq2[P, error]) ([]T, error) {
	var items []T
	for page, err := range pages {
		if err != nil {
			return items, err
		}
		items = append(items, page.PageItems()...)
	}
	return items, nil
}

func deref(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}
