// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mirror drives a cursored, batched, retrying replication of a
// remote catalog to a local (or cloud-blob) directory tree (spec §4.10).
// A Driver owns the state machine Idle → Resolving → Draining → Batching
// ↔ Downloading → CursorAdvance → Batching | Terminated; Run executes one
// full pass of it, and RunContinuous wraps Run for the continuous mode
// described in §4.12.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugetmirror/catalogmirror/internal/archive"
	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/flatten"
	"github.com/nugetmirror/catalogmirror/internal/log"
	"github.com/nugetmirror/catalogmirror/internal/storage"
	"github.com/nugetmirror/catalogmirror/internal/uri"
)

// maxTaskAttempts bounds per-entry download retries (spec §4.10 step 4).
const maxTaskAttempts = 10

// backoff returns the delay before retry attempt n (0-based): 5s, 10s,
// 15s, ... No jitter; the spec notes a flat linear backoff is sufficient.
func backoff(n int) time.Duration { return 5 * time.Second * time.Duration(n+1) }

// DefaultDelay is how far behind "now" a run's traversal window ends, to
// avoid racing a publisher mid-commit.
const DefaultDelay = 10 * time.Minute

// DefaultMaxThreads bounds in-flight downloads within a batch.
const DefaultMaxThreads = 16

// DefaultBatchSize is the default number of entries processed between
// cursor advances when mirroring.
const DefaultBatchSize = 256

// Driver replicates a repository's catalog to storage.
type Driver struct {
	Session    *catalog.Session
	Roots      *storage.Multi
	ControlDir string // local directory holding cursor.json, updatedFiles.txt, lastRunErrors.txt
	Layout     Layout
	Mode       DownloadMode
	Filter     *Filter // nil means "no filtering"

	BatchSize       int
	MaxThreads      int
	MaxTaskAttempts int
	Delay           time.Duration
	IgnoreErrors    bool
}

// withDefaults returns a copy of d with zero-valued tunables replaced by
// their defaults.
func (d Driver) withDefaults() Driver {
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	if d.MaxThreads <= 0 {
		d.MaxThreads = DefaultMaxThreads
	}
	if d.MaxTaskAttempts <= 0 {
		d.MaxTaskAttempts = maxTaskAttempts
	}
	if d.Delay <= 0 {
		d.Delay = DefaultDelay
	}
	return d
}

// Outcome summarizes one Run.
type Outcome struct {
	Cursor        time.Time
	UpdatedFiles  []string
	Errors        []string
	EntriesQueued int
}

// taskResult is the per-entry result of a download attempt.
type taskResult struct {
	entry        catalog.CatalogEntry
	updatedPaths []string
	err          error
}

// Run executes one full pass of the state machine: resolve cursor,
// traverse and flatten the window, filter, batch, download with retry,
// write outputs, and advance the cursor (spec §4.10).
func Run(ctx context.Context, d Driver) (_ Outcome, err error) {
	defer derrors.Wrap(&err, "mirror.Run")
	d = d.withDefaults()

	// 1. Resolve cursor.
	start, err := loadCursor(d.ControlDir)
	if err != nil {
		return Outcome{}, err
	}
	end := time.Now().UTC().Add(-d.Delay)

	// 2. Traverse and flatten.
	queue, err := d.traverse(ctx, start, end)
	if err != nil {
		return Outcome{}, err
	}
	log.Infof(ctx, "mirror: %d entries queued for (%s, %s]", len(queue), start, end)

	outcome := Outcome{Cursor: start, EntriesQueued: len(queue)}

	// 3-6. Batch loop.
	for batchStart := 0; batchStart < len(queue); batchStart += d.BatchSize {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("%v: %w", err, derrors.Canceled)
		}
		batchEnd := batchStart + d.BatchSize
		if batchEnd > len(queue) {
			batchEnd = len(queue)
		}
		batch := queue[batchStart:batchEnd]

		results, err := d.runBatch(ctx, batch)
		if err != nil {
			return outcome, err
		}

		var updated, errs []string
		for _, r := range results {
			if r.err != nil {
				errs = append(errs, fmt.Sprintf("%s %s: %v", r.entry.ID, r.entry.Version, r.err))
				continue
			}
			updated = append(updated, r.updatedPaths...)
		}
		if err := appendLines(d.ControlDir, "updatedFiles.txt", updated); err != nil {
			return outcome, err
		}
		if err := appendLines(d.ControlDir, "lastRunErrors.txt", errs); err != nil {
			return outcome, err
		}
		outcome.UpdatedFiles = append(outcome.UpdatedFiles, updated...)
		outcome.Errors = append(outcome.Errors, errs...)
		if len(errs) > 0 && !d.IgnoreErrors {
			return outcome, fmt.Errorf("%d of %d entries in batch failed", len(errs), len(batch))
		}

		// 6. Advance cursor: the newest commit timestamp among this
		// batch strictly before the next undequeued entry's timestamp,
		// so a crash can resume without skipping a sibling commit still
		// pending on the queue. If the queue is drained, persist end.
		newCursor := end
		if batchEnd < len(queue) {
			nextTS := queue[batchEnd].CommitTimeStamp
			newCursor = latestBefore(batch, nextTS)
		}
		if newCursor.After(outcome.Cursor) {
			if err := saveCursor(d.ControlDir, newCursor); err != nil {
				return outcome, err
			}
			outcome.Cursor = newCursor
		}

		// 7. Clear cache between batches, best-effort.
		d.Session.Fetcher.ClearCache()
	}

	if len(queue) == 0 {
		if err := saveCursor(d.ControlDir, end); err != nil {
			return outcome, err
		}
		outcome.Cursor = end
	}
	return outcome, nil
}

// latestBefore returns the latest CommitTimeStamp among batch strictly
// before bound, or the zero time if none qualify, which the caller treats
// as "do not advance the cursor".
func latestBefore(batch []catalog.CatalogEntry, bound time.Time) time.Time {
	var best time.Time
	for _, e := range batch {
		if e.CommitTimeStamp.Before(bound) && e.CommitTimeStamp.After(best) {
			best = e.CommitTimeStamp
		}
	}
	if best.IsZero() {
		// Every entry in the batch shares (or exceeds) bound's
		// timestamp; nothing in the batch is safely past bound, so
		// don't advance past what the caller already holds.
		return time.Time{}
	}
	return best
}

// traverse invokes the catalog reader for (start, end], flattens the
// result to the live set, applies the id filter, and sorts ascending by
// commit timestamp for enqueuing (spec §4.10 step 2).
func (d Driver) traverse(ctx context.Context, start, end time.Time) (_ []catalog.CatalogEntry, err error) {
	defer derrors.Wrap(&err, "mirror.Driver.traverse(ctx, %s, %s)", start, end)

	catalogURI, err := d.Session.ServiceIndex.CatalogServiceURI()
	if err != nil {
		return nil, err
	}
	ix := catalog.NewIndex(d.Session)
	pages, err := ix.Pages(ctx, catalogURI)
	if err != nil {
		return nil, err
	}
	sel := catalog.SelectRange(pages, start, end)
	pr := catalog.NewPageReader(d.Session, d.MaxThreads)
	entries, err := pr.Entries(ctx, sel, start, end)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CommitTimeStamp.After(entries[j].CommitTimeStamp)
	})
	live := flatten.Flatten(entries)

	var filtered []catalog.CatalogEntry
	for _, e := range live {
		if d.Filter == nil || d.Filter.Allows(e.ID) {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CommitTimeStamp.Before(filtered[j].CommitTimeStamp)
	})
	return filtered, nil
}

// runBatch downloads every entry in batch with bounded concurrency,
// returning one taskResult per entry (order matches batch).
func (d Driver) runBatch(ctx context.Context, batch []catalog.CatalogEntry) ([]taskResult, error) {
	var (
		g       errgroup.Group
		sem     = make(chan struct{}, d.MaxThreads)
		results = make([]taskResult, len(batch))
	)
	for i, e := range batch {
		i, e := i, e
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("%v: %w", ctx.Err(), derrors.Canceled)
		}
		g.Go(func() error {
			defer func() { <-sem }()
			paths, err := d.downloadWithRetry(ctx, e)
			results[i] = taskResult{entry: e, updatedPaths: paths, err: err}
			if errors.Is(err, derrors.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// downloadWithRetry retries a single entry's download up to
// d.MaxTaskAttempts times. A 404 is logged as a warning and treated as
// success, since publisher-side gaps between the catalog and the
// package-base-address feed are common. Cancellation escapes
// immediately without retrying.
func (d Driver) downloadWithRetry(ctx context.Context, e catalog.CatalogEntry) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < d.MaxTaskAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%v: %w", err, derrors.Canceled)
		}
		paths, err := d.download(ctx, e)
		if err == nil {
			return paths, nil
		}
		if fetch.IsNotFound(err) {
			log.Warning(ctx, fmt.Sprintf("mirror: %s %s: 404, treating as success", e.ID, e.Version))
			return nil, nil
		}
		if errors.Is(err, derrors.Canceled) {
			return nil, err
		}
		lastErr = err
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%v: %w", ctx.Err(), derrors.Canceled)
		}
	}
	return nil, fmt.Errorf("%s %s: giving up after %d attempts: %w", e.ID, e.Version, d.MaxTaskAttempts, lastErr)
}

// download performs one attempt of fetching e's archive and writing it
// (and, for Layout V3, its sidecars) to storage, honoring d.Mode. It
// returns the absolute-equivalent storage keys newly written.
func (d Driver) download(ctx context.Context, e catalog.CatalogEntry) (_ []string, err error) {
	defer derrors.Wrap(&err, "mirror.Driver.download(%s %s)", e.ID, e.Version)

	lowerID := uri.Lower(e.ID)
	lowerVersion := e.Version.LowerNormalized()
	key := d.Layout.archiveKey(lowerID, lowerVersion)

	root, err := d.Roots.Select(ctx, key)
	if err != nil {
		return nil, err
	}
	write, err := d.shouldWrite(ctx, root, key, e)
	if err != nil {
		return nil, err
	}
	if !write {
		return nil, nil
	}

	archiveURI := d.Session.Builder.Archive(e.ID, lowerVersion)
	data, err := d.Session.Fetcher.FetchArchiveBytes(ctx, archiveURI)
	if err != nil {
		return nil, err
	}
	if err := root.WriteAll(ctx, key, data); err != nil {
		return nil, err
	}
	setModTime(root, key, e.CommitTimeStamp)
	written := []string{key}

	if d.Layout == LayoutV3 {
		hashKey := d.Layout.hashKey(lowerID, lowerVersion)
		if err := root.WriteAll(ctx, hashKey, []byte(archive.Hash(data))); err != nil {
			return nil, err
		}
		setModTime(root, hashKey, e.CommitTimeStamp)
		written = append(written, hashKey)

		manifest, err := archive.ReadManifest(data)
		if err != nil {
			return nil, err
		}
		manifestKey := d.Layout.manifestKey(lowerID, lowerVersion)
		if err := root.WriteAll(ctx, manifestKey, manifest); err != nil {
			return nil, err
		}
		setModTime(root, manifestKey, e.CommitTimeStamp)
		written = append(written, manifestKey)
	}
	return written, nil
}

// shouldWrite evaluates d.Mode against key's current state in root.
func (d Driver) shouldWrite(ctx context.Context, root *storage.Root, key string, e catalog.CatalogEntry) (bool, error) {
	if d.Mode == Force {
		return true, nil
	}
	exists, err := root.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	switch d.Mode {
	case FailIfExists:
		return false, fmt.Errorf("%s already exists: %w", key, derrors.InvalidArgument)
	case SkipIfExists:
		return false, nil
	case OverwriteIfNewer:
		attrs, err := root.Attrs(ctx, key)
		if err != nil {
			return false, err
		}
		return e.CommitTimeStamp.After(attrs.ModTime), nil
	default:
		return false, nil
	}
}

// setModTime best-effort sets key's mtime to t for local roots, matching
// the "creation and last-write times are explicitly set to the catalog
// commit timestamp" requirement (spec §5, Shared-resource policy); remote
// blob backends don't expose a portable way to set an arbitrary mtime, so
// this is a no-op for them.
func setModTime(root *storage.Root, key string, t time.Time) {
	if root.LocalPath == "" {
		return
	}
	_ = os.Chtimes(root.LocalPath+"/"+key, t, t)
}
