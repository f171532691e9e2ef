/*
Package engine is the reference IndexShard/Engine implementation spec.md
§6 calls for as a non-goal boundary: a real document store (Lucene or
otherwise) is out of scope, but the replication core still needs
something concrete to apply operations against in tests and in the
reference cmd/meridiond binary.

Shard keeps documents in memory, keyed by UID, and durably logs every
mutation to a pkg/translog.Translog before acknowledging it — the same
acquire/apply/translog-append sequence spec.md §4.3-§4.4 describes for a
real engine, just without the segment-merging machinery a production
store would add on top.
*/
package engine
