package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/spotkit/internal/auth"
)

// QueryParam is a single query parameter. A nil Value is omitted from the URL entirely.
type QueryParam struct {
	Key   string
	Value *string
}

// HeaderBuilder produces the request headers once the access token is known.
type HeaderBuilder func(accessToken string) http.Header

// RequestDescriptor describes one API call. Values are immutable: the With methods return copies.
type RequestDescriptor struct {
	Method  string
	Path    string
	Query   []QueryParam
	Headers HeaderBuilder
	Body    []byte
	Scopes  auth.Scopes
}

// NewRequest describes a call to path (relative to the API base URL, or absolute) requiring scopes.
func NewRequest(method, path string, scopes ...string) RequestDescriptor {
	return RequestDescriptor{
		Method:  method,
		Path:    path,
		Headers: BearerHeaders,
		Scopes:  auth.NewScopes(scopes...),
	}
}

// Get describes a GET request.
func Get(path string, scopes ...string) RequestDescriptor {
	return NewRequest(http.MethodGet, path, scopes...)
}

// WithQuery appends a parameter; nil values are kept in order but never sent.
func (d RequestDescriptor) WithQuery(key string, value *string) RequestDescriptor {
	query := make([]QueryParam, len(d.Query), len(d.Query)+1)
	copy(query, d.Query)
	d.Query = append(query, QueryParam{Key: key, Value: value})
	return d
}

// WithInt appends an integer parameter; nil is omitted.
func (d RequestDescriptor) WithInt(key string, value *int) RequestDescriptor {
	if value == nil {
		return d.WithQuery(key, nil)
	}
	s := strconv.Itoa(*value)
	return d.WithQuery(key, &s)
}

// WithBody returns a copy carrying raw body bytes.
func (d RequestDescriptor) WithBody(body []byte) RequestDescriptor {
	d.Body = append([]byte(nil), body...)
	return d
}

// WithJSON returns a copy carrying v encoded as JSON.
func (d RequestDescriptor) WithJSON(v any) (RequestDescriptor, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return d, fmt.Errorf("failed to encode request body: %w", err)
	}
	d.Body = body
	return d, nil
}

// URL joins base and the descriptor's path, then appends the non-nil query parameters in order.
// An absolute path must point at the same scheme and host as base, since the request carries the
// bearer token.
func (d RequestDescriptor) URL(base string) (string, error) {
	target := d.Path
	absolute := isAbsolute(target)
	if !absolute {
		target = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", target, err)
	}
	if absolute {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base url %q: %w", base, err)
		}
		if !strings.EqualFold(u.Scheme, b.Scheme) || !strings.EqualFold(u.Host, b.Host) {
			return "", fmt.Errorf("link %s://%s does not match the API origin %s://%s", u.Scheme, u.Host, b.Scheme, b.Host)
		}
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range d.Query {
		if p.Value == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(*p.Value))
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

// BearerHeaders is the default [HeaderBuilder].
func BearerHeaders(accessToken string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+accessToken)
	h.Set("Accept", "application/json")
	return h
}

// Ptr returns a pointer to v, for optional query parameters.
func Ptr[T any](v T) *T {
	return &v
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
