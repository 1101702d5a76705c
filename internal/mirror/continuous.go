// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/nugetmirror/catalogmirror/internal/derrors"
	"github.com/nugetmirror/catalogmirror/internal/log"
	"github.com/nugetmirror/catalogmirror/internal/poller"
)

// RunContinuous runs the full cursor → traverse → batch → advance
// pipeline once every interval until ctx is canceled (spec §4.12). A
// poller owns the ticking; a failed run is logged and the process keeps
// polling, except that a Canceled error stops it immediately, since that
// must propagate rather than be swallowed (spec §5's cancellation
// guarantee).
func RunContinuous(ctx context.Context, d Driver, interval time.Duration) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p := poller.New(Outcome{}, func(ctx context.Context) (Outcome, error) {
		return Run(ctx, d)
	}, func(err error) {
		log.Error(ctx, err)
		if errors.Is(err, derrors.Canceled) {
			cancel(err)
		}
	})

	p.Poll(ctx)
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	p.Start(ctx, interval)
	<-ctx.Done()
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
