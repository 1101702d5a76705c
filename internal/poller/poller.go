// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package poller supports periodic polling to load a value. The mirror
// driver's continuous mode (internal/mirror.RunContinuous) uses it to
// drive its cursor → traverse → batch → advance pipeline once per
// interval (spec §4.12), treating each run's Outcome as the polled
// value and routing a failed run to a caller-supplied error handler
// instead of killing the poll loop.
package poller

import (
	"context"
	"sync"
	"time"
)

// A Getter returns a value of type T.
type Getter[T any] func(context.Context) (T, error)

// A Poller maintains a current value of type T, and refreshes it by
// periodically polling for a new one.
type Poller[T any] struct {
	getter  Getter[T]
	onError func(error)
	mu      sync.Mutex
	current T
}

// New creates a new poller with an initial value. The getter is invoked
// to obtain updated values. Errors returned from the getter are passed
// to onError; the current value is left unchanged on a failed poll.
func New[T any](initial T, getter Getter[T], onError func(error)) *Poller[T] {
	return &Poller[T]{
		getter:  getter,
		onError: onError,
		current: initial,
	}
}

// Start begins polling in a separate goroutine, at the given period. To
// stop the goroutine, cancel the context passed to Start.
func (p *Poller[T]) Start(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				ctx2, cancel := context.WithTimeout(ctx, period)
				p.Poll(ctx2)
				cancel()
			}
		}
	}()
}

// Poll calls p's getter immediately and synchronously.
func (p *Poller[T]) Poll(ctx context.Context) {
	next, err := p.getter(ctx)
	if err != nil {
		p.onError(err)
	} else {
		p.mu.Lock()
		p.current = next
		p.mu.Unlock()
	}
}

// Current returns the current value. Initially, this is the value
// passed to New. After each successful poll, the value is updated. If a
// poll fails, the value remains unchanged.
func (p *Poller[T]) Current() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
