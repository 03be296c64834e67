package runner

import (
	"fmt"
	"sync/atomic"

	"github.com/aisjump/detector/internal/queue"
	"github.com/aisjump/detector/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkerCount is the pool size used by Concurrent when none is set.
const DefaultWorkerCount = 4

// Detector evaluates one vessel track.
type Detector interface {
	Detect(t core.VesselTrack) ([]core.AnomalyEvent, error)
}

// Strategy runs a detector over a set of tracks. Implementations give no
// ordering guarantee across tracks; use core.SortEvents before comparing.
type Strategy interface {
	Name() string
	Run(tracks []core.VesselTrack) ([]core.AnomalyEvent, error)
}

// ExecutionError reports a failure inside a strategy, either a detector
// error or a recovered panic.
type ExecutionError struct {
	Strategy string
	Worker   int
	VesselID int64
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s worker %d failed on vessel %d: %v", e.Strategy, e.Worker, e.VesselID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Sequential processes tracks one after another on the calling goroutine.
type Sequential struct {
	Detector Detector
}

func (s *Sequential) Name() string { return "sequential" }

// Run stops at the first failing track.
func (s *Sequential) Run(tracks []core.VesselTrack) (events []core.AnomalyEvent, err error) {
	var current int64
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = &ExecutionError{Strategy: s.Name(), VesselID: current, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	events = make([]core.AnomalyEvent, 0)
	for _, t := range tracks {
		current = t.VesselID
		found, err := s.Detector.Detect(t)
		if err != nil {
			return nil, &ExecutionError{Strategy: s.Name(), VesselID: t.VesselID, Err: err}
		}
		events = append(events, found...)
	}
	return events, nil
}

// Concurrent processes tracks with a fixed pool of workers pulling from a
// shared queue. Each track is handled start to finish by one worker.
type Concurrent struct {
	Detector Detector
	Workers  int
}

func (c *Concurrent) Name() string { return "concurrent" }

// Run returns the first failure once every worker has returned. Workers
// stop taking new tracks after any worker fails.
func (c *Concurrent) Run(tracks []core.VesselTrack) ([]core.AnomalyEvent, error) {
	workers := c.Workers
	if workers < 1 {
		workers = DefaultWorkerCount
	}

	q := queue.New(tracks...)
	results := make([][]core.AnomalyEvent, workers)
	var failed atomic.Bool

	var g errgroup.Group
	for w := range workers {
		g.Go(func() (err error) {
			var current int64
			defer func() {
				if r := recover(); r != nil {
					failed.Store(true)
					err = &ExecutionError{Strategy: c.Name(), Worker: w, VesselID: current, Err: fmt.Errorf("panic: %v", r)}
				}
			}()

			for !failed.Load() {
				t, ok := q.Pop()
				if !ok {
					return nil
				}
				current = t.VesselID
				found, err := c.Detector.Detect(t)
				if err != nil {
					failed.Store(true)
					return &ExecutionError{Strategy: c.Name(), Worker: w, VesselID: t.VesselID, Err: err}
				}
				results[w] = append(results[w], found...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	events := make([]core.AnomalyEvent, 0, total)
	for _, r := range results {
		events = append(events, r...)
	}
	return events, nil
}
