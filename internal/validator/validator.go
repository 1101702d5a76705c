// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validator checks that every live package in a catalog window
// actually resolves to its advertised archive, without downloading it
// (spec §4.11).
package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/flatten"
)

// DefaultBatchSize is a batch size for validation, larger than the mirror
// driver's default. Run does not read it: Run probes every live entry in
// a single round, bounded only by maxThreads.
const DefaultBatchSize = 4096

// DefaultMaxThreads bounds in-flight reachability probes.
const DefaultMaxThreads = 32

// Failure is one entry's failed reachability probe.
type Failure struct {
	ID      string
	Version string
	URI     string
	Err     error
}

// Report is the aggregated result of a validation run.
type Report struct {
	Checked  int
	Failures []Failure
}

// OK reports whether the run found zero failures — the exit-code
// condition spec §4.11 defines.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// ByIDCaseInsensitive returns r.Failures sorted by (id, version),
// comparing ids case-insensitively, for stable reporting.
func (r Report) ByIDCaseInsensitive() []Failure {
	out := append([]Failure(nil), r.Failures...)
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].ID), strings.ToLower(out[j].ID)
		if li != lj {
			return li < lj
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Run traverses and flattens the catalog for (start, end], then issues a
// bounded-concurrency reachability probe against every live entry's
// archive URI.
func Run(ctx context.Context, sess *catalog.Session, start, end time.Time, maxThreads int) (_ Report, err error) {
	defer derrors.Wrap(&err, "validator.Run(ctx, %s, %s)", start, end)

	if maxThreads < 1 {
		maxThreads = DefaultMaxThreads
	}

	catalogURI, err := sess.ServiceIndex.CatalogServiceURI()
	if err != nil {
		return Report{}, err
	}
	ix := catalog.NewIndex(sess)
	pages, err := ix.Pages(ctx, catalogURI)
	if err != nil {
		return Report{}, err
	}
	sel := catalog.SelectRange(pages, start, end)
	pr := catalog.NewPageReader(sess, maxThreads)
	entries, err := pr.Entries(ctx, sel, start, end)
	if err != nil {
		return Report{}, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CommitTimeStamp.After(entries[j].CommitTimeStamp)
	})
	live := flatten.Flatten(entries)

	var (
		g        errgroup.Group
		sem      = make(chan struct{}, maxThreads)
		failures = make([]*Failure, len(live))
	)
	for i, e := range live {
		i, e := i, e
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return Report{}, fmt.Errorf("%v: %w", ctx.Err(), derrors.Canceled)
		}
		g.Go(func() error {
			defer func() { <-sem }()
			u := sess.Builder.Archive(e.ID, e.Version.LowerNormalized())
			err := sess.Fetcher.Reachable(ctx, u)
			if err == nil {
				return nil
			}
			if errors.Is(err, derrors.Canceled) {
				// Cancellation propagates and aborts the run rather
				// than being folded into the failure report.
				return err
			}
			failures[i] = &Failure{ID: e.ID, Version: e.Version.Normalized(), URI: u, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Checked: len(live)}
	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, *f)
		}
	}
	return report, nil
}
