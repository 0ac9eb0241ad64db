package main

import (
	"context"
	"fmt"
	"os"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv"
	"github.com/a2aserver/a2acore/a2asrv/eventqueue"
	"github.com/a2aserver/a2acore/a2asrv/push"
	"github.com/a2aserver/a2acore/a2asrv/replication"
	"github.com/a2aserver/a2acore/a2asrv/replication/raftbridge"
	"github.com/a2aserver/a2acore/a2asrv/taskstore"
	"github.com/a2aserver/a2acore/a2asrv/taskstore/sqlstore"
	"github.com/a2aserver/a2acore/internal/telemetry"
)

// demoServer bundles the wired-together core (C2-C9) this harness drives
// directly via Go calls, per SPEC_FULL.md §2's "scaffolding, not a
// transport" scope.
type demoServer struct {
	Handler   *a2asrv.RequestHandler
	Processor *a2asrv.TaskStateProcessor
	Queues    *eventqueue.QueueManager
	Store     taskstore.TaskStateProvider
	Metrics   *telemetry.Metrics
	Providers *telemetry.Providers

	bus          *eventqueue.MainEventBus
	raftStrategy *raftbridge.Strategy
	graceCancel  context.CancelFunc
}

// buildDemoServer wires every C2-C9 component from cfg, following the
// teacher's own pattern of constructing providers first (telemetry),
// passing them down to every subsequent constructor (cmd/launcher/console.Run).
func buildDemoServer(ctx context.Context, cfg serveConfig) (*demoServer, error) {
	var opts []telemetry.Option
	if cfg.PrometheusPort {
		opts = append(opts, telemetry.WithPrometheusExporter())
	}
	if cfg.OTLPTraceEndpoint != "" {
		opts = append(opts, telemetry.WithOTLPTraceEndpoint(cfg.OTLPTraceEndpoint))
	}
	if cfg.OTLPLogEndpoint != "" {
		opts = append(opts, telemetry.WithOTLPLogEndpoint(cfg.OTLPLogEndpoint))
	}
	if cfg.OTLPInsecure {
		opts = append(opts, telemetry.WithOTLPInsecure())
	}
	providers, err := telemetry.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("a2acoreserver: init telemetry: %w", err)
	}
	providers.SetGlobalOtelProviders()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("a2acoreserver: init metrics: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	processor := a2asrv.NewTaskStateProcessor()
	pushCfgs := push.NewInMemoryConfigStore()
	sender := push.NewSender(pushCfgs, push.WithTimeout(cfg.PushSendTimeout), push.WithMetrics(metrics))

	// queues and bus are assigned below, but the raft strategy's receive
	// callback needs to reach the bus that doesn't exist yet at the point
	// the callback closure is constructed; forward-declaring both and
	// closing over the pointers lets the callback see the real values
	// once InjectReplicated is actually invoked (always after Start
	// returns and wiring below completes).
	var queues *eventqueue.QueueManager
	var bus *eventqueue.MainEventBus
	var replicationSender eventqueue.ReplicationSender
	var raftStrategy *raftbridge.Strategy
	if cfg.Replication == "raft" {
		raftStrategy = raftbridge.New(raftbridge.Config{
			NodeID:    cfg.RaftNodeID,
			BindAddr:  cfg.RaftBindAddr,
			DataDir:   cfg.RaftDataDir,
			Bootstrap: true,
		}, func(item a2a.ReplicatedEventQueueItem) {
			if mq := queues.Get(item.TaskID); mq != nil {
				_ = bus.InjectReplicated(ctx, mq, item)
			}
		})
		if err := raftStrategy.Start(); err != nil {
			return nil, fmt.Errorf("a2acoreserver: start raft replication: %w", err)
		}
		replicationSender = raftStrategy
	} else {
		replicationSender = replication.Noop{}
	}

	bus = eventqueue.NewMainEventBus(processor, store, sender, replicationSender)
	bus.WithMetrics(metrics)
	queues = eventqueue.NewQueueManager(bus, eventqueue.DefaultBufferSize)
	bus.SetManager(queues)

	handler := a2asrv.NewRequestHandler(processor, store, queues, echoExecutor{},
		a2asrv.WithAgentTimeout(cfg.AgentTimeout),
		a2asrv.WithConsumeTimeout(cfg.ConsumeTimeout),
		a2asrv.WithCancelTimeout(cfg.CancelTimeout),
		a2asrv.WithPushConfigStore(pushCfgs),
		a2asrv.WithAgentCard(a2a.AgentCard{
			Name:            "a2acore-demo",
			Description:     "in-process demo agent exercising the A2A server core",
			ProtocolVersion: "1.0",
			Capabilities: a2a.AgentCapabilities{
				Streaming:         true,
				PushNotifications: true,
			},
			SupportedTransports: []string{"grpc", "jsonrpc", "rest"},
			Skills:              []string{"echo"},
		}),
	)

	graceCfg := a2asrv.DefaultGraceSweepConfig()
	if cfg.GraceWindow > 0 {
		graceCfg.Window = cfg.GraceWindow
	}
	graceCtx, graceCancel := context.WithCancel(context.Background())
	go a2asrv.RunGraceSweep(graceCtx, processor, graceCfg, func(taskID a2a.TaskID) bool {
		return queues.Get(taskID) == nil
	})

	return &demoServer{
		Handler:      handler,
		Processor:    processor,
		Queues:       queues,
		Store:        store,
		Metrics:      metrics,
		Providers:    providers,
		bus:          bus,
		raftStrategy: raftStrategy,
		graceCancel:  graceCancel,
	}, nil
}

func buildStore(cfg serveConfig) (taskstore.TaskStateProvider, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return taskstore.NewInMemoryStore(), nil
	case "sqlite":
		dsn := cfg.SQLiteDSN
		if dsn == "" {
			dsn = "a2acore.db"
		}
		return sqlstore.Open(dsn)
	default:
		return nil, fmt.Errorf("a2acoreserver: unknown store backend %q", cfg.StoreBackend)
	}
}

// Shutdown stops the grace-sweep goroutine, drains the bus's async push/
// replication worker pool, stops the Raft node (if any), and flushes the
// telemetry providers.
func (s *demoServer) Shutdown(ctx context.Context) error {
	s.graceCancel()
	s.bus.Close()
	if s.raftStrategy != nil {
		if err := s.raftStrategy.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "a2acoreserver: raft shutdown: %v\n", err)
		}
	}
	return s.Providers.Shutdown(ctx)
}
