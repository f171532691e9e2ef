/*
Package translog implements the per-shard, append-only operation log
spec.md §4.5 describes: a durable record of every index/delete operation
applied between engine flushes, so a shard can recover its unflushed
writes after a restart.

# File set

Exactly one current file and at most one transient file exist at any
time, named translog-<id> (signed 64-bit decimal) inside whichever
configured data-path directory has the least free space — preserved
as-is from the source system despite looking backwards; see
spec.md §9 open question 1 and DESIGN.md. A file whose id matches neither
the current nor the transient id is an orphan, eligible for deletion by
ClearUnreferenced.

# Concurrency

A single sync.RWMutex guards structural transitions (NewTranslog,
NewTransientTranslog, MakeTransientCurrent, RevertTransient, Close,
ClearUnreferenced take the write lock) versus data-plane operations (Add,
Read, Snapshot, Sync take the read lock). Within one file, appends are
serialized by that file's own mutex; reads are position-addressed and may
run concurrently with appends to the same file.

# Ownership

Each on-disk file is reference-counted (see file.go): the Translog itself
holds one reference for as long as the file is current or transient, and
every outstanding Snapshot holds one more. A file is only actually closed
and deleted from disk once its reference count reaches zero, which is
what lets a Location returned before a rotation stay readable by a
Snapshot that was already in flight when the rotation happened.
*/
package translog
