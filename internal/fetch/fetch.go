// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch is the Fetch Fabric: every HTTP request the catalog reader
// and mirror driver make to a repository goes through here (spec §4.1,
// §6.1). It caches responses in an in-process LRU cache, with an optional
// Redis tier behind it, and maps transport failures onto the derrors error
// taxonomy so callers can tell a missing resource from one worth retrying.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opencensus.io/plugin/ochttp"
	"golang.org/x/net/context/ctxhttp"

	"github.com/nugetmirror/catalogmirror/internal/cache"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/lru"
)

// UserAgent identifies this client to the repository being mirrored.
const UserAgent = "catalogmirror/1.0 (+https://github.com/nugetmirror/catalogmirror)"

// memCacheSize is the number of responses the first-tier in-process cache
// holds before it starts evicting least-recently-used entries.
const memCacheSize = 2048

// Client fetches and caches JSON documents, package archives, and nuspec
// manifests from a single repository.
type Client struct {
	httpClient *http.Client
	mem        *lru.Cache[string, []byte]
	remote     *cache.Cache // optional second tier; nil if none configured
	remoteTTL  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRemoteCache adds a Redis-backed second-tier cache with the given
// time-to-live for entries.
func WithRemoteCache(c *cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.remote = c
		cl.remoteTTL = ttl
	}
}

// WithHTTPClient overrides the HTTP client used to issue requests,
// primarily for tests that need to replay recorded traffic.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.httpClient = h }
}

// New returns a Client ready to fetch from any repository.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: &ochttp.Transport{}},
		mem:        lru.New[string, []byte](memCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON fetches u and unmarshals the body into v. The cache key is
// cacheKey(u).
func (c *Client) FetchJSON(ctx context.Context, u string, v any) (err error) {
	defer derrors.Wrap(&err, "fetch.Client.FetchJSON(ctx, %q)", u)
	data, err := c.fetchBytes(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%v: %w", err, derrors.ContentInvalid)
	}
	return nil
}

// FetchArchive fetches the .nupkg at u and returns a zip.Reader over it.
func (c *Client) FetchArchive(ctx context.Context, u string) (_ *zip.Reader, err error) {
	defer derrors.Wrap(&err, "fetch.Client.FetchArchive(ctx, %q)", u)
	data, err := c.fetchBytes(ctx, u)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip.NewReader: %v: %w", err, derrors.ContentInvalid)
	}
	return zr, nil
}

// FetchArchiveBytes fetches the .nupkg at u and returns its raw bytes,
// for callers (the mirror driver) that write the archive to storage
// as-is rather than reading individual entries out of it.
func (c *Client) FetchArchiveBytes(ctx context.Context, u string) (_ []byte, err error) {
	defer derrors.Wrap(&err, "fetch.Client.FetchArchiveBytes(ctx, %q)", u)
	return c.fetchBytes(ctx, u)
}

// FetchManifest fetches the .nuspec document at u and returns its raw
// bytes; the caller decides how (or whether) to parse the manifest XML.
func (c *Client) FetchManifest(ctx context.Context, u string) (_ []byte, err error) {
	defer derrors.Wrap(&err, "fetch.Client.FetchManifest(ctx, %q)", u)
	return c.fetchBytes(ctx, u)
}

// fetchBytes is the single entry point every Fetch* method routes
// through: memory cache, then remote cache, then the network, populating
// both caches on a network hit. A TransportRetryable network failure is
// retried up to maxFetchAttempts times in all. Cache lookups and inserts
// key on cacheKey(u), not the raw URI.
func (c *Client) fetchBytes(ctx context.Context, u string) ([]byte, error) {
	key := cacheKey(u)
	if data, ok := c.mem.Get(key); ok {
		return data, nil
	}
	if c.remote != nil {
		data, err := c.remote.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, derrors.TransportRetryable)
		}
		if data != nil {
			c.mem.Put(key, data)
			return data, nil
		}
	}
	const maxFetchAttempts = 5
	var data []byte
	var err error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		data, err = c.get(ctx, u)
		if err == nil || !derrors.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	c.mem.Put(key, data)
	if c.remote != nil {
		if err := c.remote.Put(ctx, key, data, c.remoteTTL); err != nil {
			return nil, fmt.Errorf("%v: %w", err, derrors.TransportRetryable)
		}
	}
	return data, nil
}

// cacheKey derives a deterministic cache key from a request URI by
// replacing path and scheme separators with "_", so a URI is always
// safe to use as a flat cache key regardless of the cache backend (spec
// §4.1).
func cacheKey(u string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(u)
}

// get issues the HTTP GET and classifies the outcome into the derrors
// taxonomy: 404/410 become NotFound, a canceled/deadline-exceeded context
// becomes Canceled, and any other non-2xx or transport failure is
// TransportRetryable (fetchBytes retries those, and the mirror driver
// retries again per task; see internal/mirror).
func (c *Client) get(ctx context.Context, u string) (_ []byte, err error) {
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%v: %w", err, derrors.Canceled)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, derrors.InvalidArgument)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := ctxhttp.Do(ctx, c.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("ctxhttp.Do(ctx, client, %q): %v: %w", u, err, derrors.TransportRetryable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body of %q: %v: %w", u, err, derrors.TransportRetryable)
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: status %d: %w", u, resp.StatusCode, derrors.NotFound)
	default:
		return nil, fmt.Errorf("%s: unexpected status %d %s: %w", u, resp.StatusCode, http.StatusText(resp.StatusCode), derrors.TransportRetryable)
	}
}

// Reachable issues a lightweight HEAD request against u and classifies
// the result the same way get does, without reading or caching a body.
// The Validator uses this for its archive-URI reachability probes (spec
// §4.11): it cares only whether the resource resolves, not its contents.
func (c *Client) Reachable(ctx context.Context, u string) (err error) {
	defer derrors.Wrap(&err, "fetch.Client.Reachable(ctx, %q)", u)
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%v: %w", err, derrors.Canceled)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return fmt.Errorf("%v: %w", err, derrors.InvalidArgument)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := ctxhttp.Do(ctx, c.httpClient, req)
	if err != nil {
		return fmt.Errorf("ctxhttp.Do(ctx, client, %q): %v: %w", u, err, derrors.TransportRetryable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%s: status %d: %w", u, resp.StatusCode, derrors.NotFound)
	default:
		return fmt.Errorf("%s: unexpected status %d %s: %w", u, resp.StatusCode, http.StatusText(resp.StatusCode), derrors.TransportRetryable)
	}
}

// IsNotFound reports whether u should be treated as absent from the
// repository rather than a transient failure worth retrying.
func IsNotFound(err error) bool { return errors.Is(err, derrors.NotFound) }

// ClearCache empties the in-process cache. The mirror driver calls this
// between batches to cap memory use over a long run (spec §4.10 step 7);
// it never touches the optional remote tier, which is
// shared across processes and sized independently.
func (c *Client) ClearCache() { c.mem.Purge() }
