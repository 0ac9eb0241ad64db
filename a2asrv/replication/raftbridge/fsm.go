package raftbridge

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/a2aserver/a2acore/a2a"
)

// FSM applies committed ReplicatedEventQueueItem log entries to whatever
// Receiver is wired up. It keeps no state of its own beyond a monotonic
// applied counter snapshotted for Raft's log-compaction bookkeeping: the
// durable state of record is each node's own TaskStore, not the FSM.
type FSM struct {
	mu       sync.Mutex
	applied  uint64
	receiver receiverFunc
}

// receiverFunc is the callback the FSM forwards each decoded item to; it
// has replication.Receiver.OnReplicated's shape minus the context.
type receiverFunc func(item a2a.ReplicatedEventQueueItem)

// NewFSM constructs an FSM that forwards applied entries to onApplied.
func NewFSM(onApplied func(item a2a.ReplicatedEventQueueItem)) *FSM {
	return &FSM{receiver: onApplied}
}

// Apply decodes a committed log entry and forwards it to the receiver.
// Malformed entries are dropped and logged via the returned error value,
// which raft surfaces through the apply future on the submitting node
// only — every other node silently skips the bad entry, matching the
// receive-side drop-malformed error taxonomy.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var item a2a.ReplicatedEventQueueItem
	if err := json.Unmarshal(log.Data, &item); err != nil {
		return fmt.Errorf("raftbridge: decode log entry %d: %w", log.Index, err)
	}
	f.mu.Lock()
	f.applied = log.Index
	f.mu.Unlock()
	if f.receiver != nil {
		f.receiver(item)
	}
	return nil
}

// Snapshot returns an empty snapshot: replicated state is rehydrated from
// each node's own TaskStore on restart, not from the Raft log, so there
// is nothing FSM-local to persist.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return emptySnapshot{applied: f.applied}, nil
}

// Restore is a no-op for the same reason Snapshot is empty.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	_, err := io.Copy(io.Discard, rc)
	return err
}

type emptySnapshot struct{ applied uint64 }

func (s emptySnapshot) Persist(sink raft.SnapshotSink) error {
	_, err := sink.Write([]byte(fmt.Sprintf("%d", s.applied)))
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (emptySnapshot) Release() {}
