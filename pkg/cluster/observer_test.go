package cluster

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePublisher is a minimal in-memory Publisher used to drive the
// Observer in tests without standing up pkg/clusterharness's Raft FSM.
type fakePublisher struct {
	mu      sync.Mutex
	current *ClusterState
	subs    map[chan *ClusterState]struct{}
	closing bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		current: NewClusterState(),
		subs:    map[chan *ClusterState]struct{}{},
	}
}

func (p *fakePublisher) Current() *ClusterState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePublisher) Closing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closing
}

func (p *fakePublisher) Subscribe() (<-chan *ClusterState, func()) {
	ch := make(chan *ClusterState, 4)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
}

func (p *fakePublisher) publish(s *ClusterState) {
	p.mu.Lock()
	p.current = s
	for ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
	p.mu.Unlock()
}

func TestObserverFiresOnNewerState(t *testing.T) {
	pub := newFakePublisher()
	obs := NewObserver(pub)

	done := make(chan *ClusterState, 1)
	go obs.WaitForNextChange(ChangeListenerFuncs{
		NewState: func(s *ClusterState) { done <- s },
	}, time.Second)

	time.Sleep(20 * time.Millisecond)
	next := NewClusterState().WithVersion(1)
	pub.publish(next)

	select {
	case got := <-done:
		require.Equal(t, uint64(1), got.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired")
	}
	require.Equal(t, uint64(1), obs.ObservedState().Version)
	require.False(t, obs.IsTimedOut())
}

func TestObserverTimesOutAndPinsState(t *testing.T) {
	pub := newFakePublisher()
	obs := NewObserver(pub)

	done := make(chan struct{}, 1)
	go obs.WaitForNextChange(ChangeListenerFuncs{
		Timeout: func(time.Duration) { done <- struct{}{} },
	}, 30*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired")
	}
	require.True(t, obs.IsTimedOut())
	require.Equal(t, uint64(0), obs.ObservedState().Version)
}

func TestObserverFiresSynchronouslyWhenAlreadyNewer(t *testing.T) {
	pub := newFakePublisher()
	pub.publish(NewClusterState().WithVersion(5))
	obs := &Observer{pub: pub, observed: NewClusterState()}

	fired := false
	obs.WaitForNextChange(ChangeListenerFuncs{
		NewState: func(s *ClusterState) { fired = true },
	}, time.Second)

	require.True(t, fired)
	require.Equal(t, uint64(5), obs.ObservedState().Version)
}
