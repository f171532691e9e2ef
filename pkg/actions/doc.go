/*
Package actions wires concrete write operations — index and delete — onto
pkg/replication's Action shape and pkg/engine's reference Shard, and
supplies the RoutingKey-to-ShardID resolution every write action shares.
It is the glue cmd/meridiond uses to assemble a runnable node; none of it
is consumed by pkg/replication itself, which only ever sees *Action
values.
*/
package actions
