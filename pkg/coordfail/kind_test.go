package coordfail

import "testing"

func TestRetryableClassification(t *testing.T) {
	retryable := []Kind{
		KindGlobalBlockRetryable, KindIndexBlockRetryable, KindUnavailableShards,
		KindWriteConsistencyUnmet, KindTransportDisconnect, KindNodeClosed,
		KindShardNotAvailableYet,
	}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("kind %v should be retryable", k)
		}
	}

	terminal := []Kind{KindValidation, KindVersionConflictPrimary, KindUnexpectedPrimary}
	for _, k := range terminal {
		if k.Retryable() {
			t.Errorf("kind %v should not be retryable", k)
		}
	}
}

func TestIgnorableOnReplica(t *testing.T) {
	ignorable := []Kind{KindVersionConflictReplica, KindDocumentAlreadyExistsReplica, KindShardNotAvailableYet}
	for _, k := range ignorable {
		if !k.IgnorableOnReplica() {
			t.Errorf("kind %v should be ignorable on replica", k)
		}
	}
	if KindUnexpectedReplica.IgnorableOnReplica() {
		t.Error("unexpected-replica should not be ignorable by default")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := New(KindValidation, "bad field", nil)
	wrapped := New(KindUnexpectedPrimary, "apply failed", cause)
	if wrapped.Unwrap() != cause {
		t.Fatal("Unwrap should return the wrapped cause")
	}
}
