package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
)

// Coordinator drives the two-phase write spec.md §4.3-§4.4 describes. One
// Coordinator serves every write action on a node; Action values supply
// the per-operation behavior.
type Coordinator struct {
	NodeID    string
	Cluster   cluster.Publisher
	Local     LocalShards
	Transport Transport
	Reporter  ReplicaFailureReporter
	Logger    zerolog.Logger
}

// Execute runs action against req to completion, retrying internally
// (via a fresh cluster.Observer) until the write succeeds, a terminal
// coordfail.Kind is hit, or ctx is cancelled.
func (c *Coordinator) Execute(ctx context.Context, action *Action, req WriteRequest) (Response, error) {
	deadline := time.Now().Add(req.Timeout)
	observer := cluster.NewObserver(c.Cluster)

	for {
		resp, err := c.attempt(ctx, action, &req, observer)
		if err == nil {
			return resp, nil
		}

		cf, ok := err.(*coordfail.Error)
		if !ok || !cf.Kind.Retryable() {
			return Response{}, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Response{}, coordfail.New(coordfail.KindWriteConsistencyUnmet,
				fmt.Sprintf("%s: timed out after repeated retries", action.Name), err)
		}

		if _, waitErr := awaitNewState(ctx, observer, remaining); waitErr != nil {
			return Response{}, waitErr
		}
		// observer.ObservedState() now pins the newer snapshot; loop and
		// re-resolve against it.
	}
}

// attempt runs exactly one primary-phase attempt against the observer's
// currently pinned snapshot. A retryable failure returns a *coordfail.Error
// for Execute's retry loop to act on; nothing here blocks.
func (c *Coordinator) attempt(ctx context.Context, action *Action, req *WriteRequest, observer *cluster.Observer) (Response, error) {
	state := observer.ObservedState()

	if b, ok := state.GlobalBlock(); ok {
		return Response{}, blockError(b, coordfail.KindGlobalBlockRetryable, coordfail.KindGlobalBlockTerminal)
	}
	if b, ok := state.IndexBlock(req.TargetIndex); ok {
		return Response{}, blockError(b, coordfail.KindIndexBlockRetryable, coordfail.KindIndexBlockTerminal)
	}

	shardID, err := action.Resolve(state, *req)
	if err != nil {
		return Response{}, coordfail.New(coordfail.KindValidation, "resolving target shard", err)
	}

	copies := state.ShardCopies(shardID)
	if action.CheckWriteConsistency {
		required := cluster.RequiredActiveShards(req.Consistency, len(copies))
		if cluster.ActiveShardCount(copies) < required {
			return Response{}, coordfail.New(coordfail.KindWriteConsistencyUnmet,
				fmt.Sprintf("%s: need %d active copies of %s, have %d", action.Name, required, shardID, cluster.ActiveShardCount(copies)), nil)
		}
	}

	primary, ok := cluster.Primary(copies)
	if !ok || !primary.Active() || !state.HasNode(primary.NodeID) {
		return Response{}, coordfail.New(coordfail.KindUnavailableShards,
			fmt.Sprintf("%s: no active primary for %s", action.Name, shardID), nil)
	}

	if primary.NodeID != c.NodeID {
		resp, err := c.Transport.SendPrimary(ctx, primary.NodeID, action.Name, *req)
		if err != nil {
			if cf, ok := err.(*coordfail.Error); ok && cf.Kind.Retryable() {
				// The remote side may have already applied the write
				// before this transport failure was observed here
				// (spec.md §4.3 step 4); the retried attempt must carry
				// that forward.
				req.CanHaveDuplicates = true
				return Response{}, cf
			}
			return Response{}, coordfail.New(coordfail.KindUnexpectedPrimary,
				fmt.Sprintf("%s: forwarding to primary node %s", action.Name, primary.NodeID), err)
		}
		return resp, nil
	}

	return c.runPrimaryLocally(ctx, action, *req, state, shardID, copies, primary)
}

func blockError(b cluster.Block, retryable, terminal coordfail.Kind) *coordfail.Error {
	kind := terminal
	if b.Retryable {
		kind = retryable
	}
	return coordfail.New(kind, fmt.Sprintf("blocked: %s", b.Description), nil)
}
