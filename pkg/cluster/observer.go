package cluster

import (
	"sync"
	"time"
)

// ChangeListener is called exactly once by Observer.WaitForNextChange,
// with exactly one of its three methods invoked. Modeled as an interface
// rather than three separate callback parameters so a retrying primary
// phase can hold it as a single value across the suspension point (see
// pkg/replication).
type ChangeListener interface {
	OnNewState(state *ClusterState)
	OnClusterServiceClose()
	OnTimeout(remaining time.Duration)
}

// ChangeListenerFuncs adapts three plain functions into a ChangeListener,
// the way the teacher repo's event broker favors small function-typed
// fields over hand-rolled interface implementations at every call site.
type ChangeListenerFuncs struct {
	NewState          func(state *ClusterState)
	ClusterServiceClose func()
	Timeout           func(remaining time.Duration)
}

func (f ChangeListenerFuncs) OnNewState(state *ClusterState) {
	if f.NewState != nil {
		f.NewState(state)
	}
}

func (f ChangeListenerFuncs) OnClusterServiceClose() {
	if f.ClusterServiceClose != nil {
		f.ClusterServiceClose()
	}
}

func (f ChangeListenerFuncs) OnTimeout(remaining time.Duration) {
	if f.Timeout != nil {
		f.Timeout(remaining)
	}
}

// Publisher is the external cluster-state service's consumed surface:
// the current snapshot and a channel of every subsequently published
// one. pkg/clusterharness is Meridian's reference implementation; the
// interface here is deliberately small enough that a production
// deployment's consensus layer can satisfy it directly.
type Publisher interface {
	Current() *ClusterState
	Subscribe() (changes <-chan *ClusterState, unsubscribe func())
	// Closing reports whether the publisher has begun shutting down; once
	// true it stays true.
	Closing() bool
}

// Observer remembers one observed snapshot and lets a caller wait for a
// snapshot strictly newer than it, with a timeout. It owns exactly one
// outstanding listener at a time: a second call to WaitForNextChange
// before the first has fired is a programming error and panics, matching
// the single-writer discipline the teacher's translog applies to its own
// state transitions.
//
// Pinning the observed state between retries (it only advances when
// WaitForNextChange actually fires with a new state) is what makes
// block-checks and shard-resolution deterministic within one primary-phase
// attempt: spec.md §4.1 calls this out as the reason retries wait on an
// Observer instead of spinning against a live, mutating cluster-state
// view.
type Observer struct {
	pub Publisher

	mu       sync.Mutex
	observed *ClusterState
	timedOut bool
	waiting  bool
}

// NewObserver pins the observer to the publisher's current snapshot.
func NewObserver(pub Publisher) *Observer {
	return &Observer{pub: pub, observed: pub.Current()}
}

// ObservedState returns the snapshot this Observer is currently pinned
// to.
func (o *Observer) ObservedState() *ClusterState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.observed
}

// IsTimedOut reports whether the most recent WaitForNextChange ended in a
// timeout without the observed state advancing.
func (o *Observer) IsTimedOut() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timedOut
}

// WaitForNextChange fires listener exactly once: with a snapshot strictly
// newer than ObservedState() (and advances the pin to it), with
// OnClusterServiceClose if the publisher is shutting down, or with
// OnTimeout after timeout elapses with no newer snapshot observed (the
// pin stays put and IsTimedOut becomes true).
//
// If a snapshot newer than the observed one is already available from the
// publisher, the listener fires synchronously and immediately — no need
// to wait on the channel at all.
func (o *Observer) WaitForNextChange(listener ChangeListener, timeout time.Duration) {
	o.mu.Lock()
	if o.waiting {
		o.mu.Unlock()
		panic("cluster: Observer already has an outstanding listener")
	}
	o.waiting = true
	base := o.observed
	o.mu.Unlock()

	if o.pub.Closing() {
		o.finish(listener.OnClusterServiceClose, nil, false)
		return
	}

	if cur := o.pub.Current(); isNewer(cur, base) {
		o.finish(func() { listener.OnNewState(cur) }, cur, false)
		return
	}

	changes, unsubscribe := o.pub.Subscribe()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case state, ok := <-changes:
			if !ok {
				unsubscribe()
				o.finish(listener.OnClusterServiceClose, nil, false)
				return
			}
			if !isNewer(state, base) {
				continue
			}
			unsubscribe()
			o.finish(func() { listener.OnNewState(state) }, state, false)
			return
		case <-timer.C:
			unsubscribe()
			o.finish(func() { listener.OnTimeout(0) }, nil, true)
			return
		}
	}
}

func isNewer(candidate, base *ClusterState) bool {
	if candidate == nil {
		return false
	}
	if base == nil {
		return true
	}
	return candidate.Version > base.Version
}

func (o *Observer) finish(fire func(), advanceTo *ClusterState, timedOut bool) {
	o.mu.Lock()
	o.waiting = false
	if advanceTo != nil {
		o.observed = advanceTo
		o.timedOut = false
	} else if timedOut {
		o.timedOut = true
	}
	o.mu.Unlock()
	fire()
}
