// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package pool implements the static worker pool that drives one
// induct.Driver per goroutine over the segment queue, with explicit
// coordinator types instead of ad-hoc package-level channels
package pool

import (
	"sort"
	"sync"

	"github.com/cpmech/ctp/induct"
)

// Job is one unit of dispatched work: run the induction driver for a single
// segment, all of its available charge states in sequence
type Job struct {
	SegmentId int
}

// Log is the mutex-protected results table every worker appends to. Entries
// arrive out of submission order (workers race to append) but each entry's
// own content is fully deterministic given the segment, independent of
// which worker or how many workers produced it.
type Log struct {
	mu      sync.Mutex
	results []induct.Result
	errs    []error
}

// Add appends one result under the log's mutex
func (o *Log) Add(res induct.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

// AddErr appends one error returned by a worker's RunFunc; the Dispatcher
// records it here in place of that job's result
func (o *Log) AddErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

// Results returns a snapshot of the accumulated results sorted by segment
// id, so that output derived from it is deterministic regardless of worker
// scheduling
func (o *Log) Results() []induct.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]induct.Result, len(o.results))
	copy(out, o.results)
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentId < out[j].SegmentId })
	return out
}

// Errs returns a snapshot of the accumulated non-fatal errors
func (o *Log) Errs() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]error, len(o.errs))
	copy(out, o.errs)
	return out
}

// RunFunc executes one Job and returns its Result
type RunFunc func(job Job) (induct.Result, error)

// WorkerFactory builds the RunFunc one worker uses for its whole lifetime.
// It is called once per worker goroutine, at worker init: this is where a
// worker deep-copies its private polar-site replicas and constructs its own
// kernel and driver, so that no site state is ever shared across workers
type WorkerFactory func(workerId int) RunFunc

// Dispatcher owns the job queue and the fixed set of worker goroutines that
// drain it. Queue access is serialized by a single mutex; the result log
// owns its own.
type Dispatcher struct {
	mu    sync.Mutex
	queue []Job
	newW  WorkerFactory
	log   *Log
}

// NewDispatcher creates a Dispatcher over the given job queue, worker
// factory and result log
func NewDispatcher(jobs []Job, factory WorkerFactory, log *Log) *Dispatcher {
	return &Dispatcher{queue: jobs, newW: factory, log: log}
}

// next pops the next job off the queue, returning ok=false once it is empty
func (o *Dispatcher) next() (job Job, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Job{}, false
	}
	job = o.queue[0]
	o.queue = o.queue[1:]
	return job, true
}

// Run starts n worker goroutines draining the queue and blocks until all
// jobs are processed. n<=0 is treated as 1.
func (o *Dispatcher) Run(n int) {
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func(workerId int) {
			defer wg.Done()
			run := o.newW(workerId)
			for {
				job, ok := o.next()
				if !ok {
					return
				}
				res, err := run(job)
				if err != nil {
					o.log.AddErr(err)
					continue
				}
				o.log.Add(res)
			}
		}(w)
	}
	wg.Wait()
}
