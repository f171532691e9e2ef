package transport

import (
	"fmt"
	"reflect"

	"github.com/cuemby/meridian/pkg/replication"
)

// registeredAction pairs an Action with the factories the wire decoder
// needs to turn a WriteRequest.Body or ReplicaRequest.Payload back into
// the concrete type that Action's ApplyOnPrimary/ApplyOnReplica type-
// assert against. NewBody and NewReplicaPayload must each return a
// pointer to a zero value of that concrete type.
type registeredAction struct {
	action            *replication.Action
	newBody           func() any
	newReplicaPayload func() any
}

// ActionRegistry maps an action's name (the same string carried as
// Action.Name and as WriteRequest/ReplicaRequest's wire ActionName) to
// the Action and its body factories. One registry is shared by a node's
// Server and by whatever local dispatch needs to look an action up by
// name.
type ActionRegistry struct {
	actions map[string]registeredAction
}

// NewActionRegistry returns an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: map[string]registeredAction{}}
}

// Register adds action under its own Name, with factories for decoding
// its wire body and replica payload. newBody/newReplicaPayload must
// return pointers (e.g. func() any { return new(actions.IndexRequest) }).
func (r *ActionRegistry) Register(action *replication.Action, newBody, newReplicaPayload func() any) {
	r.actions[action.Name] = registeredAction{
		action:            action,
		newBody:           newBody,
		newReplicaPayload: newReplicaPayload,
	}
}

func (r *ActionRegistry) lookup(name string) (registeredAction, error) {
	entry, ok := r.actions[name]
	if !ok {
		return registeredAction{}, fmt.Errorf("transport: unknown action %q", name)
	}
	return entry, nil
}

// decodeValue unmarshals raw JSON into a fresh value produced by
// newPtr, then dereferences the pointer so the result matches the
// value-type assertions pkg/actions makes (req.Body.(IndexRequest), not
// req.Body.(*IndexRequest)).
func decodeValue(newPtr func() any, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ptr := newPtr()
	if err := jsonCodec{}.Unmarshal(raw, ptr); err != nil {
		return nil, fmt.Errorf("transport: decoding payload: %w", err)
	}
	return reflect.ValueOf(ptr).Elem().Interface(), nil
}
