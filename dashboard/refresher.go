package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tailview/common"
)

// refresher owns the periodic fetch-parse-publish cycle. It is the only
// writer of the current snapshot; the UI reads whatever was last
// published. Cycles are strictly sequential: a trigger arriving while a
// cycle is in flight is dropped, never queued, so two status fetches can
// never overlap.
type refresher struct {
	fetch    func(ctx context.Context, prev *common.Snapshot) (*common.Snapshot, error)
	interval time.Duration

	// publish and fail deliver cycle outcomes; both are called from the
	// refresher goroutine with a fully built value.
	publish func(*common.Snapshot)
	fail    func(error)

	state   atomic.Int32 // refreshState
	trigger chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *common.Snapshot
}

type refreshState int32

const (
	stateIdle refreshState = iota
	stateFetching
	statePublishing
)

func newRefresher(interval time.Duration, fetch func(context.Context, *common.Snapshot) (*common.Snapshot, error), publish func(*common.Snapshot), fail func(error)) *refresher {
	return &refresher{
		fetch:    fetch,
		interval: interval,
		publish:  publish,
		fail:     fail,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Snapshot returns the last successfully published snapshot, nil before
// the first good cycle.
func (r *refresher) Snapshot() *common.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Trigger requests an immediate refresh. Returns false when the request
// was coalesced because a cycle is already running or pending.
func (r *refresher) Trigger() bool {
	if refreshState(r.state.Load()) != stateIdle {
		return false
	}
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Start runs one immediate cycle and then the timer loop.
func (r *refresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.cycle()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.cycle()
			case <-r.trigger:
				// A manual refresh restarts the countdown.
				ticker.Reset(r.interval)
				r.cycle()
			}
		}
	}()
}

func (r *refresher) Stop() {
	close(r.done)
	r.wg.Wait()
}

// cycle is one Idle -> Fetching -> Publishing -> Idle pass. On fetch
// failure the previous snapshot stays in place and only the error is
// surfaced.
func (r *refresher) cycle() {
	r.state.Store(int32(stateFetching))
	defer func() {
		r.state.Store(int32(stateIdle))
		// Drop any trigger that slipped in mid-cycle.
		select {
		case <-r.trigger:
		default:
		}
	}()

	snap, err := r.fetch(context.Background(), r.Snapshot())
	if err != nil {
		common.VLogf("refresh failed: %v", err)
		if r.fail != nil {
			r.fail(err)
		}
		return
	}

	r.state.Store(int32(statePublishing))
	r.mu.Lock()
	r.last = snap
	r.mu.Unlock()
	if r.publish != nil {
		r.publish(snap)
	}
}
