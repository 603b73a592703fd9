// Package source fetches the agreement registry and sales extracts and turns
// them into tables for the normalizer.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher retrieves the raw bytes at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FileFetcher reads plain paths and file:// URLs from the local filesystem.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	p := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// HTTPFetcher downloads http(s) locations. Any non-2xx response is an error.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher whose client gives up after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", location, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", location, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", location, err)
	}
	return data, nil
}

// Router dispatches on the location's URL scheme. Locations without a scheme
// are treated as file paths.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter registers the filesystem fetcher for "" and "file", and the
// given HTTP fetcher for http and https. s3 may be nil.
func NewRouter(httpFetcher Fetcher, s3 Fetcher) *Router {
	r := &Router{schemes: map[string]Fetcher{
		"":     FileFetcher{},
		"file": FileFetcher{},
	}}
	if httpFetcher != nil {
		r.schemes["http"] = httpFetcher
		r.schemes["https"] = httpFetcher
	}
	if s3 != nil {
		r.schemes["s3"] = s3
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	scheme := schemeOf(location)
	f, ok := r.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q (%s)", scheme, location)
	}
	return f.Fetch(ctx, location)
}

// schemeOf returns the lowercase URL scheme, or "" for bare paths.
// Single-letter schemes are Windows drive letters, not URLs.
func schemeOf(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
