package replication

import (
	"context"

	"github.com/a2aserver/a2acore/a2a"
)

// Noop is the single-node default strategy: Send is a no-op, since there
// is no cluster to mirror events to. Wiring code uses this when no
// replication backend is configured, matching the teacher's own pattern
// of a nil-safe optional dependency (eventqueue.NewMainEventBus already
// accepts a nil ReplicationSender; Noop exists for callers that want an
// explicit, always-non-nil value instead).
type Noop struct{}

// Send implements Strategy.
func (Noop) Send(ctx context.Context, item a2a.ReplicatedEventQueueItem) error {
	return nil
}

var _ Strategy = Noop{}
