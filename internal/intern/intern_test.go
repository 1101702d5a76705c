// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intern

import (
	"sync"
	"testing"
)

func TestTableFirstWriterWins(t *testing.T) {
	var tbl Table[string, *int]
	one, two := 1, 2
	a := tbl.Intern("k", func() *int { return &one })
	b := tbl.Intern("k", func() *int { return &two })
	if a != b {
		t.Fatalf("got distinct values %p, %p; want the same pointer", a, b)
	}
	if *a != 1 {
		t.Fatalf("got %d, want 1 (first writer should win)", *a)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTableConcurrent(t *testing.T) {
	var tbl Table[int, string]
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl.Intern(i%10, func() string { return "v" })
		}()
	}
	wg.Wait()
	if tbl.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", tbl.Len())
	}
}

func TestPool(t *testing.T) {
	p := NewPool()
	s1 := p.String("a")
	s2 := p.String("a")
	if s1 != s2 {
		t.Fatal("strings not interned to equal value")
	}
	ts := p.Timestamp("2020-01-01T00:00:00Z")
	if ts != "2020-01-01T00:00:00Z" {
		t.Fatalf("got %q", ts)
	}
}
