package raftbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv/replication"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// DefaultApplyTimeout bounds a single Strategy.Send call (§5, §7
// replication-error taxonomy: send-side failures are tolerated and
// logged, never fatal to the producing executor).
const DefaultApplyTimeout = 5 * time.Second

// Config configures a single-node-bootstrap or join-existing-cluster
// Strategy, mirroring the teacher-pack's own Raft node configuration
// shape.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	// Bootstrap, when true, initializes a brand-new single-node cluster.
	// Set false when joining an existing cluster via AddVoter from
	// another node.
	Bootstrap bool
}

// Strategy is a hashicorp/raft-backed replication.Strategy and the
// object wiring code starts an FSM through: construct it with New, whose
// onApplied callback is the bridge back into the local bus, call Start,
// then pass it as eventqueue.NewMainEventBus's ReplicationSender.
type Strategy struct {
	cfg  Config
	raft *raft.Raft
	fsm  *FSM
}

// New constructs a Strategy and its FSM, wiring onApplied as the FSM's
// receiver callback. onApplied should call
// eventqueue.MainEventBus.InjectReplicated for the node's local main
// queue corresponding to item.TaskID, dropping items for tasks with no
// local queue.
func New(cfg Config, onApplied func(item a2a.ReplicatedEventQueueItem)) *Strategy {
	return &Strategy{cfg: cfg, fsm: NewFSM(onApplied)}
}

// Start brings up the Raft node: TCP transport, BoltDB log and stable
// stores, file snapshot store, and (if cfg.Bootstrap) a fresh single-node
// cluster configuration.
func (s *Strategy) Start() error {
	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(s.cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("raftbridge: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(s.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("raftbridge: create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(s.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("raftbridge: create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(s.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("raftbridge: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(s.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("raftbridge: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, s.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("raftbridge: create raft node: %w", err)
	}
	s.raft = r

	if s.cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftCfg.LocalID, Address: transport.LocalAddr()},
			},
		}
		if err := s.raft.BootstrapCluster(configuration).Error(); err != nil {
			return fmt.Errorf("raftbridge: bootstrap cluster: %w", err)
		}
	}
	return nil
}

// AddVoter adds another node as a full voting member; called on the
// current leader when a new node joins the cluster.
func (s *Strategy) AddVoter(nodeID, addr string) error {
	return s.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
// Only the leader may accept Send calls; followers should route incoming
// requests to the leader at the transport layer (out of scope here).
func (s *Strategy) IsLeader() bool {
	return s.raft.State() == raft.Leader
}

// Shutdown gracefully stops the Raft node.
func (s *Strategy) Shutdown() error {
	return s.raft.Shutdown().Error()
}

// Send implements replication.Strategy: marshal item and submit it to the
// Raft log. Failures are returned to the caller (eventqueue.MainEventBus
// logs them at WARN per §7) but never block or fail the local dispatch
// that originated them.
func (s *Strategy) Send(ctx context.Context, item a2a.ReplicatedEventQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("raftbridge: marshal replicated item: %w", err)
	}
	future := s.raft.Apply(data, DefaultApplyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftbridge: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok && applyErr != nil {
			telemetry.Warn(ctx, "raftbridge.apply_fsm_error", telemetry.Str("taskId", string(item.TaskID)), telemetry.Err(applyErr))
		}
	}
	return nil
}

var _ replication.Strategy = (*Strategy)(nil)
