package transport

import "encoding/json"

// writeRequestWire is replication.WriteRequest flattened for the wire:
// Body travels as raw JSON so the server can defer decoding it into a
// concrete type until it knows, from ActionName, which type that is.
type writeRequestWire struct {
	ActionName        string
	TargetIndex       string
	RoutingKey        string
	Body              json.RawMessage
	Consistency       int
	TimeoutMillis     int64
	CanHaveDuplicates bool
}

// responseWire is replication.Response flattened for the wire.
type responseWire struct {
	Payload    json.RawMessage
	Total      int
	Successful int
	Failed     int
	Skipped    int
}

// replicaRequestWire is replication.ReplicaRequest flattened for the
// wire, with the target ShardID split into its two comparable fields.
type replicaRequestWire struct {
	ActionName        string
	ShardIndex        string
	ShardNum          int
	Payload           json.RawMessage
	CanHaveDuplicates bool
}

// replicaAckWire is the reply to SendReplica. Ok=false carries enough
// of the original coordfail.Error (Kind, Reason) for the client to
// reconstruct it — in particular so an ignorable-on-replica failure
// still reads as ignorable after crossing the network, which a bare
// grpc status error would lose.
type replicaAckWire struct {
	Ok     bool
	Kind   int
	Reason string
}
