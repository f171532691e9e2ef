package replication

import (
	"context"
	"time"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
)

// awaitNewState blocks until the observer reports a cluster-state change,
// the context is cancelled, or remaining elapses, whichever comes first.
// It is the coordinator's sole suspension point for a retryable failure
// (spec.md §4.3: "the coordinator does not poll or spin; it registers
// interest and waits").
func awaitNewState(ctx context.Context, observer *cluster.Observer, remaining time.Duration) (*cluster.ClusterState, error) {
	type outcome struct {
		state    *cluster.ClusterState
		timedOut bool
		closed   bool
	}
	done := make(chan outcome, 1)

	listener := cluster.ChangeListenerFuncs{
		NewState: func(s *cluster.ClusterState) {
			select {
			case done <- outcome{state: s}:
			default:
			}
		},
		ClusterServiceClose: func() {
			select {
			case done <- outcome{closed: true}:
			default:
			}
		},
		Timeout: func(time.Duration) {
			select {
			case done <- outcome{timedOut: true}:
			default:
			}
		},
	}

	go observer.WaitForNextChange(listener, remaining)

	select {
	case o := <-done:
		switch {
		case o.closed:
			return nil, coordfail.New(coordfail.KindNodeClosed, "cluster service closed while waiting for a retry", nil)
		case o.timedOut:
			return nil, coordfail.New(coordfail.KindShardNotAvailableYet, "timed out waiting for shard to become available", nil)
		default:
			return o.state, nil
		}
	case <-ctx.Done():
		return nil, coordfail.New(coordfail.KindTransportDisconnect, "request context cancelled while waiting for a retry", ctx.Err())
	}
}
