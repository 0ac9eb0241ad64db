// Package replication implements the replicated-queue bridge (C7): an
// optional strategy that mirrors every event written to a node's local
// event bus across a cluster, so a tap opened on any node observes the
// same event sequence regardless of which node the producing executor
// runs on.
package replication

import (
	"context"

	"github.com/a2aserver/a2acore/a2a"
)

// Strategy is the pluggable outbound half of the bridge. It satisfies
// eventqueue.ReplicationSender, so any Strategy value can be passed
// directly to eventqueue.NewMainEventBus without this package importing
// eventqueue (avoiding the cycle noted in eventqueue/bus.go).
type Strategy interface {
	Send(ctx context.Context, item a2a.ReplicatedEventQueueItem) error
}

// Receiver is the inbound half: wiring code outside this package bridges
// a Strategy's delivery callback to eventqueue.MainEventBus.InjectReplicated,
// one call per (taskID, *eventqueue.MainQueue) pair the local node has an
// active main queue for.
type Receiver interface {
	// OnReplicated is invoked once per applied log entry, in commit order,
	// for every node in the cluster including the one that originated it.
	// Implementations MUST tolerate receiving an item for a task with no
	// local main queue (the task may not be active on this node) by
	// dropping it.
	OnReplicated(ctx context.Context, item a2a.ReplicatedEventQueueItem)
}
