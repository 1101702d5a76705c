// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Catalogmirror reads a NuGet-style package repository's catalog and
// either lists its current live package set, mirrors it to a local or
// cloud-blob directory tree, or validates that every live package's
// archive actually resolves.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nugetmirror/catalogmirror/internal/cache"
	"github.com/nugetmirror/catalogmirror/internal/catalog"
	"github.com/nugetmirror/catalogmirror/internal/config"
	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/fetch"
	"github.com/nugetmirror/catalogmirror/internal/flatten"
	"github.com/nugetmirror/catalogmirror/internal/intern"
	"github.com/nugetmirror/catalogmirror/internal/log"
	"github.com/nugetmirror/catalogmirror/internal/mirror"
	"github.com/nugetmirror/catalogmirror/internal/serviceindex"
	"github.com/nugetmirror/catalogmirror/internal/storage"
	"github.com/nugetmirror/catalogmirror/internal/uri"
	"github.com/nugetmirror/catalogmirror/internal/validator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	ctx := context.Background()
	var err error
	switch args[0] {
	case "list":
		err = runList(ctx, args[1:])
	case "nupkgs":
		err = runNupkgs(ctx, args[1:])
	case "validate":
		err = runValidate(ctx, args[1:])
	default:
		usage()
		return 1
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s {list|nupkgs|validate} <feed-index> [flags]\n", os.Args[0])
}

// newSession builds a catalog.Session for feedIndex, the service-index
// URL every subcommand takes as its first positional argument. redisAddr
// is optional; when set, the Fetch Fabric gains a Redis-backed second
// cache tier in front of the network.
func newSession(ctx context.Context, feedIndex, redisAddr string) (_ *catalog.Session, err error) {
	defer derrors.Wrap(&err, "newSession(%q)", feedIndex)

	var opts []fetch.Option
	if redisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: redisAddr})
		opts = append(opts, fetch.WithRemoteCache(cache.New(rc), 24*time.Hour))
	}
	fetcher := fetch.New(opts...)

	data, err := fetcher.FetchManifest(ctx, feedIndex)
	if err != nil {
		return nil, fmt.Errorf("fetching service index: %w", err)
	}
	idx, err := serviceindex.Parse(data)
	if err != nil {
		return nil, err
	}
	packageBase, err := idx.PackageBaseAddressURI()
	if err != nil {
		return nil, err
	}
	registrationBase, _ := idx.RegistrationBaseURI()
	return &catalog.Session{
		ServiceIndex: idx,
		Fetcher:      fetcher,
		Pool:         intern.NewPool(),
		Builder:      uri.NewBuilder(packageBase, registrationBase),
	}, nil
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var (
		startFlag = fs.String("s", "", "traversal window start, ISO-8601 (exclusive); empty means the beginning of the catalog")
		endFlag   = fs.String("e", "", "traversal window end, ISO-8601 (inclusive); empty means now")
		redisAddr = fs.String("redis-addr", config.GetEnv("CATALOGMIRROR_REDIS_ADDR", ""), "optional Redis address for the fetch fabric's second-tier cache")
		verbose   = fs.Bool("v", false, "also print each entry's commit id and commit timestamp")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("list: missing <feed-index> argument")
	}
	start, end, err := parseWindow(*startFlag, *endFlag)
	if err != nil {
		return err
	}
	sess, err := newSession(ctx, fs.Arg(0), *redisAddr)
	if err != nil {
		return err
	}

	catalogURI, err := sess.ServiceIndex.CatalogServiceURI()
	if err != nil {
		return err
	}
	ix := catalog.NewIndex(sess)
	pages, err := ix.Pages(ctx, catalogURI)
	if err != nil {
		return err
	}
	sel := catalog.SelectRange(pages, start, end)
	pr := catalog.NewPageReader(sess, catalog.DefaultMaxThreads)
	entries, err := pr.Entries(ctx, sel, start, end)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CommitTimeStamp.After(entries[j].CommitTimeStamp)
	})
	live := flatten.Flatten(entries)
	sort.Slice(live, func(i, j int) bool {
		if li, lj := strings.ToLower(live[i].ID), strings.ToLower(live[j].ID); li != lj {
			return li < lj
		}
		return live[i].Version.Normalized() < live[j].Version.Normalized()
	})
	for _, e := range live {
		if *verbose {
			fmt.Printf("%s %s %s %s\n", e.ID, e.Version.Normalized(), e.CommitID, e.CommitTimeStamp.Format(time.RFC3339))
		} else {
			fmt.Printf("%s %s\n", e.ID, e.Version.Normalized())
		}
	}
	return nil
}

func runNupkgs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nupkgs", flag.ExitOnError)
	var (
		output       = fs.String("o", ".", "output root directory")
		folderFormat = fs.String("folder-format", "v3", "on-disk layout: v2 or v3")
		mode         = fs.String("mode", "overwrite-if-newer", "download mode: fail-if-exists, skip-if-exists, overwrite-if-newer, force")
		delayMin     = fs.Int("delay", 10, "minutes subtracted from now to form the traversal window's end, to avoid racing publishers")
		maxThreads   = fs.Int("max-threads", mirror.DefaultMaxThreads, "maximum concurrent downloads")
		batchSize    = fs.Int("batch-size", mirror.DefaultBatchSize, "entries processed per cursor-advance batch")
		ignoreErrors = fs.Bool("ignore-errors", false, "continue past a batch with failed downloads instead of aborting the run")
		every        = fs.Duration("every", 0, "if set, repeat the run on this interval until canceled (spec §4.12 continuous mode)")
		redisAddr    = fs.String("redis-addr", config.GetEnv("CATALOGMIRROR_REDIS_ADDR", ""), "optional Redis address for the fetch fabric's second-tier cache")
		includes     stringList
		excludes     stringList
	)
	fs.Var(&includes, "i", "include glob on package id; may be repeated")
	fs.Var(&excludes, "e", "exclude glob on package id; may be repeated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("nupkgs: missing <feed-index> argument")
	}

	layout, err := mirror.ParseLayout(*folderFormat)
	if err != nil {
		return err
	}
	dlMode, err := mirror.ParseDownloadMode(*mode)
	if err != nil {
		return err
	}
	filter, err := mirror.NewFilter(includes, excludes)
	if err != nil {
		return err
	}
	sess, err := newSession(ctx, fs.Arg(0), *redisAddr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*output, 0o755); err != nil {
		return fmt.Errorf("%v: %w", err, derrors.IOError)
	}
	roots, err := storage.Open(ctx, []string{"file://" + *output})
	if err != nil {
		return err
	}
	defer roots.Close()

	d := mirror.Driver{
		Session:      sess,
		Roots:        roots,
		ControlDir:   *output,
		Layout:       layout,
		Mode:         dlMode,
		Filter:       filter,
		BatchSize:    *batchSize,
		MaxThreads:   *maxThreads,
		Delay:        time.Duration(*delayMin) * time.Minute,
		IgnoreErrors: *ignoreErrors,
	}

	if *every > 0 {
		return mirror.RunContinuous(ctx, d, *every)
	}
	outcome, err := mirror.Run(ctx, d)
	if err != nil {
		return err
	}
	log.Infof(ctx, "mirror: wrote %d archives, %d entries queued, cursor now %s", len(outcome.UpdatedFiles), outcome.EntriesQueued, outcome.Cursor)
	return nil
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var (
		delayMin   = fs.Int("delay", 10, "minutes subtracted from now to form the traversal window's end")
		maxThreads = fs.Int("max-threads", validator.DefaultMaxThreads, "maximum concurrent reachability probes")
		redisAddr  = fs.String("redis-addr", config.GetEnv("CATALOGMIRROR_REDIS_ADDR", ""), "optional Redis address for the fetch fabric's second-tier cache")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("validate: missing <feed-index> argument")
	}
	sess, err := newSession(ctx, fs.Arg(0), *redisAddr)
	if err != nil {
		return err
	}

	end := time.Now().UTC().Add(-time.Duration(*delayMin) * time.Minute)
	report, err := validator.Run(ctx, sess, time.Time{}, end, *maxThreads)
	if err != nil {
		return err
	}
	for _, f := range report.ByIDCaseInsensitive() {
		fmt.Printf("%s %s: %v\n", f.ID, f.Version, f.Err)
	}
	fmt.Printf("checked %d packages, %d failures\n", report.Checked, len(report.Failures))
	if !report.OK() {
		return fmt.Errorf("validation found %d failures", len(report.Failures))
	}
	return nil
}

// parseWindow parses the list command's -s/-e flags, defaulting start to
// the beginning of time and end to now.
func parseWindow(start, end string) (time.Time, time.Time, error) {
	s := time.Time{}
	e := time.Now().UTC()
	var err error
	if start != "" {
		s, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -s %q: %w", start, derrors.InvalidArgument)
		}
	}
	if end != "" {
		e, err = time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -e %q: %w", end, derrors.InvalidArgument)
		}
	}
	return s, e, nil
}

// stringList accumulates repeated occurrences of a flag into a []string.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}
