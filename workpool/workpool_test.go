// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package workpool

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunAndWait(t *testing.T) {
	p := New(4)
	defer p.Close()

	var ran atomic.Int32
	tasks := make([]Task, 100)
	for i := range tasks {
		tasks[i] = func(skipped func() bool) { ran.Add(1) }
	}
	RunAndWait(p, tasks)
	if got := ran.Load(); got != 100 {
		t.Errorf("ran got %d, want 100", got)
	}
}

func TestSkipUnstarted(t *testing.T) {
	// One worker: the first task blocks until released, sets the skip
	// flag, and every task queued behind it must observe skipped()=true.
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	var skippedCount atomic.Int32
	var wg sync.WaitGroup

	wg.Add(1)
	p.Submit(func(skipped func() bool) {
		defer wg.Done()
		<-release
	})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go p.Submit(func(skipped func() bool) {
			defer wg.Done()
			if skipped() {
				skippedCount.Add(1)
			}
		})
	}

	p.SkipUnstarted()
	close(release)
	wg.Wait()

	if got := skippedCount.Load(); got != 10 {
		t.Errorf("skipped tasks got %d, want 10", got)
	}
}

func TestReset(t *testing.T) {
	p := New(2)
	defer p.Close()

	p.SkipUnstarted()
	p.Reset()

	done := make(chan bool, 1)
	p.Submit(func(skipped func() bool) { done <- skipped() })
	if <-done {
		t.Errorf("task after Reset observed skipped()=true, want false")
	}
}

func TestNewClampsSize(t *testing.T) {
	p := New(0)
	defer p.Close()

	done := make(chan struct{})
	p.Submit(func(skipped func() bool) { close(done) })
	<-done
}
