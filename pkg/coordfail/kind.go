package coordfail

import "fmt"

// Kind is a closed classification of the errors the coordination core
// reasons about. It pins down spec.md §9 open question 2: the exact
// engine-side exception kinds admitted as retryable, ignorable, or
// terminal.
type Kind int

const (
	// KindUnknown is never produced by this package; it is the zero value
	// guard against an unclassified error reaching a disposition switch.
	KindUnknown Kind = iota

	// Retryable kinds: the primary phase schedules a retry via the
	// Observer rather than failing the caller.
	KindGlobalBlockRetryable
	KindIndexBlockRetryable
	KindUnavailableShards
	KindWriteConsistencyUnmet
	KindTransportDisconnect
	KindNodeClosed
	KindShardNotAvailableYet

	// Terminal kinds: the primary phase fails the caller immediately.
	KindGlobalBlockTerminal
	KindIndexBlockTerminal
	KindValidation
	KindVersionConflictPrimary
	KindUnexpectedPrimary

	// Ignorable kinds: only meaningful for a replica-apply outcome. The
	// replication phase counts the replica as failed in its tally but
	// never reports it to the shard-state reporter and never fails the
	// replica's local engine.
	KindVersionConflictReplica
	KindDocumentAlreadyExistsReplica

	// Unexpected-on-replica: any other replica-apply failure. A
	// shard-not-available-yet condition is classified as
	// KindShardNotAvailableYet instead, which is ignorable. For this kind
	// the replication phase counts the replica as failed and notifies the
	// shard-state reporter; it does not fail the replica's local engine.
	KindUnexpectedReplica
)

// Error pairs a Kind with the underlying cause, the "one level of
// unwrapping" spec.md §7 calls for when classifying a remote error's root
// cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified Error.
func New(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Retryable reports whether the primary phase should schedule a retry for
// this kind rather than failing terminally.
func (k Kind) Retryable() bool {
	switch k {
	case KindGlobalBlockRetryable, KindIndexBlockRetryable, KindUnavailableShards,
		KindWriteConsistencyUnmet, KindTransportDisconnect, KindNodeClosed,
		KindShardNotAvailableYet:
		return true
	default:
		return false
	}
}

// IgnorableOnReplica reports whether a replica-apply failure of this kind
// should be absorbed into the response tally without being reported to
// the shard-state reporter or failing the local replica engine, per
// spec.md §4.4 "ignorable replica failures".
func (k Kind) IgnorableOnReplica() bool {
	switch k {
	case KindVersionConflictReplica, KindDocumentAlreadyExistsReplica, KindShardNotAvailableYet:
		return true
	default:
		return false
	}
}
