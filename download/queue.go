package download

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tilestream/tiles"
)

const (
	DefaultMaxJobs = 10
)

// Job is a tile content download. Epoch is the tile load epoch at request
// time.
type Job struct {
	Tile  *tiles.Tile
	Epoch uint32
	URI   string
}

// Stale reports whether the tile was disposed or reloaded since the job was
// created.
func (j Job) Stale() bool {
	return j.Tile.Epoch() != j.Epoch
}

// Result is the outcome of a job.
type Result struct {
	Job

	Data     []byte
	Err      error
	Duration time.Duration

	// Reports whether the job was skipped because it went stale before
	// being fetched.
	Skipped bool
}

// Queue runs jobs on at most MaxJobs workers.
//
// Enqueue, Dispatch and Drain must be called from the same goroutine, which
// is the frame loop of the viewer. Downloading can be called from any
// goroutine.
type Queue struct {
	// Less orders pending jobs before they are dispatched. Jobs are
	// dispatched in insertion order when nil.
	Less func(a, b Job) bool

	fetcher Fetcher
	maxJobs int

	pending  []Job
	inflight int

	downloading atomic.Int64
	jobs        chan Job
	results     chan Result

	startOnce sync.Once
	closeOnce sync.Once
	cancel    func()
	wg        sync.WaitGroup
}

// NewQueue creates a queue. maxJobs defaults to DefaultMaxJobs when not
// positive.
func NewQueue(f Fetcher, maxJobs int) *Queue {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}

	return &Queue{
		fetcher: f,
		maxJobs: maxJobs,
		jobs:    make(chan Job, maxJobs),
		results: make(chan Result, maxJobs),
		cancel:  func() {},
	}
}

// Start starts the workers. They stop when the context is canceled or when
// the queue is closed.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		q.cancel = cancel

		for i := 0; i < q.maxJobs; i++ {
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				q.work(ctx)
			}()
		}
	})
}

// Close stops the workers and waits for them to return.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

// MaxJobs returns the number of concurrent downloads.
func (q *Queue) MaxJobs() int {
	return q.maxJobs
}

// Downloading returns the number of jobs enqueued and not yet drained.
func (q *Queue) Downloading() int {
	return int(q.downloading.Load())
}

// Pending returns the number of jobs waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.pending)
}

// Enqueue adds a job to the pending jobs.
func (q *Queue) Enqueue(j Job) {
	q.pending = append(q.pending, j)
	q.updateDownloading()
}

// Dispatch hands the pending jobs with the highest priority to the idle
// workers. Stale jobs are dropped before ordering.
func (q *Queue) Dispatch() {
	n := 0
	for _, j := range q.pending {
		if j.Stale() {
			instrumentStale()
			continue
		}
		q.pending[n] = j
		n++
	}
	clear(q.pending[n:])
	q.pending = q.pending[:n]

	if q.Less != nil && len(q.pending) > 1 {
		slices.SortStableFunc(q.pending, func(a, b Job) int {
			switch {
			case q.Less(a, b):
				return -1
			case q.Less(b, a):
				return 1
			default:
				return 0
			}
		})
	}

	sent := 0
	for _, j := range q.pending {
		if q.inflight >= q.maxJobs {
			break
		}

		q.inflight++
		q.jobs <- j
		sent++
	}

	q.pending = slices.Delete(q.pending, 0, sent)
	q.updateDownloading()
}

// Drain calls apply with every result available without blocking and
// returns the number of drained results. Skipped results are not applied.
func (q *Queue) Drain(apply func(Result)) int {
	n := 0

	for {
		select {
		case r := <-q.results:
			n++
			q.inflight--
			q.updateDownloading()

			if r.Skipped {
				instrumentStale()
				continue
			}
			apply(r)

		default:
			return n
		}
	}
}

func (q *Queue) updateDownloading() {
	q.downloading.Store(int64(len(q.pending) + q.inflight))
	instrumentDownloading(len(q.pending), q.inflight)
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case j := <-q.jobs:
			r := q.fetch(ctx, j)

			select {
			case <-ctx.Done():
				return
			case q.results <- r:
			}
		}
	}
}

func (q *Queue) fetch(ctx context.Context, j Job) Result {
	if j.Stale() {
		return Result{Job: j, Skipped: true}
	}

	start := time.Now()
	data, err := q.fetcher.Fetch(ctx, j.URI)
	r := Result{
		Job:      j,
		Data:     data,
		Err:      err,
		Duration: time.Since(start),
	}

	instrumentFetch(r)
	if err != nil && !errors.Is(err, context.Canceled) {
		logs.WithTag("tile_id", j.Tile.ID).
			WithTag("uri", j.URI).
			WithTag("epoch", j.Epoch).
			Debug("fetching tile content failed")
	}
	return r
}
