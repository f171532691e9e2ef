/*
Package transport is the grpc.Transport that lets one node's
replication.Coordinator reach another node's shard copies:
SendPrimary forwards a write to the node that owns a shard's primary
copy, SendReplica forwards the primary's replicated payload to one
replica copy.

There is no .proto file here and nothing generated by protoc. Every
message travels as JSON through a hand-registered grpc Codec (codec.go)
and a hand-built grpc.ServiceDesc (server.go) instead of the usual
protoc-gen-go-grpc output — the wire shape is ordinary Go structs with
json tags, decoded through an ActionRegistry (registry.go) that knows,
per action name, what concrete type a WriteRequest.Body or
ReplicaRequest.Payload decodes into. grpc itself still supplies
framing, multiplexing, deadlines, and connection management; only code
generation is skipped.
*/
package transport
