/*
Package events is a small pub-sub broker for operator-facing
notifications — a shard failing, a relocation starting, an index block
being applied — distinct from the ClusterState snapshots pkg/cluster's
Observer waits on. Subscribers get an Event on a buffered channel;
Publish never blocks the caller waiting on a slow subscriber, it drops
from that subscriber's own buffer instead.
*/
package events
