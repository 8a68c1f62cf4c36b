// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"sync/atomic"
	"testing"

	"github.com/cpmech/ctp/induct"
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/utl"
)

// Test_pool01 checks that every submitted segment is processed exactly
// once, that results come back sorted by segment id, and that the
// per-segment result does not depend on how many workers drained the queue
func Test_pool01(tst *testing.T) {
	chk.PrintTitle("pool01: determinism across worker counts")

	mkJobs := func() []Job {
		jobs := make([]Job, 0, 20)
		for _, i := range utl.IntRange(20) {
			jobs = append(jobs, Job{SegmentId: 19 - i}) // reversed: Results must sort
		}
		return jobs
	}

	factory := func(workerId int) RunFunc {
		return func(job Job) (induct.Result, error) {
			return induct.Result{
				SegmentId: job.SegmentId,
				States:    []induct.StateResult{{State: 0, Energy: float64(job.SegmentId)}},
			}, nil
		}
	}

	log1 := new(Log)
	NewDispatcher(mkJobs(), factory, log1).Run(1)

	log4 := new(Log)
	NewDispatcher(mkJobs(), factory, log4).Run(4)

	r1, r4 := log1.Results(), log4.Results()
	if len(r1) != 20 || len(r4) != 20 {
		tst.Fatalf("expected 20 results, got %d and %d", len(r1), len(r4))
	}
	for i := range r1 {
		if r1[i].SegmentId != i || r4[i].SegmentId != i {
			tst.Fatalf("expected results sorted by id, got %d and %d at index %d",
				r1[i].SegmentId, r4[i].SegmentId, i)
		}
		if r1[i].States[0].Energy != r4[i].States[0].Energy {
			tst.Fatalf("segment %d energy differs across worker counts", i)
		}
	}
}

// Test_pool02 checks the worker-init contract: the factory runs exactly
// once per worker goroutine, so each worker's private replicas are built
// once and reused across all its segments
func Test_pool02(tst *testing.T) {
	chk.PrintTitle("pool02: one factory call per worker")

	var inits int64
	factory := func(workerId int) RunFunc {
		atomic.AddInt64(&inits, 1)
		return func(job Job) (induct.Result, error) {
			return induct.Result{SegmentId: job.SegmentId}, nil
		}
	}

	jobs := make([]Job, 0, 50)
	for _, i := range utl.IntRange(50) {
		jobs = append(jobs, Job{SegmentId: i})
	}
	log := new(Log)
	NewDispatcher(jobs, factory, log).Run(3)

	if inits != 3 {
		tst.Fatalf("expected 3 factory calls, got %d", inits)
	}
	if len(log.Results()) != 50 {
		tst.Fatalf("expected 50 results, got %d", len(log.Results()))
	}
}
