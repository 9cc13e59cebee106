package digest

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// MaxPoolWorkers caps the parallel hashing fan-out. Hashing is CPU-bound,
// so more workers than cores only adds contention.
const MaxPoolWorkers = 8

// DefaultPoolWorkers returns the worker count for a parallel hashing pool:
// the machine's logical core count, capped at MaxPoolWorkers.
func DefaultPoolWorkers() int {
	cores := cpuid.CPU.LogicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	if cores > MaxPoolWorkers {
		return MaxPoolWorkers
	}
	if cores < 1 {
		return 1
	}
	return cores
}

// Job identifies one file to hash.
type Job struct {
	Path string // absolute path
	Rel  string // relative path, carried through for the caller
	Size int64
}

// JobResult pairs a job with its digest or error. A result is only
// observable once fully populated; no partial state escapes the pool.
type JobResult struct {
	Job    Job
	Result Result
	Err    error
}

// Pool hashes many independent files across a bounded set of workers.
// This is an internal throughput optimization: results are identical to
// hashing the jobs sequentially, and callers cannot tell which strategy
// executed.
type Pool struct {
	Hasher  Hasher
	Workers int
}

// Run hashes all jobs and returns results in input order. If the hasher's
// controller is cancelled, files not yet started are reported with
// control.ErrCancelled rather than silently dropped.
func (p *Pool) Run(jobs []Job) []JobResult {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultPoolWorkers()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	results := make([]JobResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	if workers <= 1 {
		for i, job := range jobs {
			results[i] = p.runOne(job)
		}
		return results
	}

	// Shared index queue: no two workers ever claim the same job.
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.runOne(jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func (p *Pool) runOne(job Job) JobResult {
	if err := p.Hasher.Control.Checkpoint(); err != nil {
		return JobResult{Job: job, Err: err}
	}
	res, err := p.Hasher.File(job.Path)
	return JobResult{Job: job, Result: res, Err: err}
}
