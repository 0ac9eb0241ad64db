package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/a2aserver/a2acore/a2a"
	"github.com/a2aserver/a2acore/a2asrv"
)

// rootCmd mirrors the pack's own single-binary-many-subcommands shape
// (cuemby-warren's cmd/warren), scaled down to this module's one concern:
// driving the core directly, never over a wire transport.
var rootCmd = &cobra.Command{
	Use:   "a2acoreserver",
	Short: "In-process demo harness for the A2A server core",
	Long: `a2acoreserver boots the A2A server core's components (task-state
processor, task store, event queue system, request handler, push sender,
and optionally a Raft-backed replication bridge) wired to a small echo
agent, for manual exercise of the core's request/event lifecycle.

This is not a transport: it speaks to the core through Go calls, never
JSON-RPC/gRPC/REST wire protocol.`,
}

var serveFlags serveConfig

func init() {
	defaults := defaultServeConfig()
	serveCmd.Flags().StringVar(&serveFlags.StoreBackend, "store", defaults.StoreBackend, "task store backend (memory|sqlite)")
	serveCmd.Flags().StringVar(&serveFlags.SQLiteDSN, "sqlite-dsn", defaults.SQLiteDSN, "sqlite DSN, used when --store=sqlite")
	serveCmd.Flags().StringVar(&serveFlags.Replication, "replication", defaults.Replication, "replication strategy (noop|raft)")
	serveCmd.Flags().StringVar(&serveFlags.RaftNodeID, "raft-node-id", defaults.RaftNodeID, "raft local node id, used when --replication=raft")
	serveCmd.Flags().StringVar(&serveFlags.RaftBindAddr, "raft-bind-addr", defaults.RaftBindAddr, "raft TCP transport bind address")
	serveCmd.Flags().StringVar(&serveFlags.RaftDataDir, "raft-data-dir", defaults.RaftDataDir, "raft log/stable/snapshot store directory")
	serveCmd.Flags().DurationVar(&serveFlags.AgentTimeout, "agent-timeout", defaults.AgentTimeout, "blocking-agent timeout (§5)")
	serveCmd.Flags().DurationVar(&serveFlags.ConsumeTimeout, "consume-timeout", defaults.ConsumeTimeout, "event-consumption timeout (§5)")
	serveCmd.Flags().DurationVar(&serveFlags.CancelTimeout, "cancel-timeout", defaults.CancelTimeout, "cancel-await timeout (§5)")
	serveCmd.Flags().DurationVar(&serveFlags.GraceWindow, "grace-window", defaults.GraceWindow, "in-memory retention window after finalization (§9 open question 1)")
	serveCmd.Flags().BoolVar(&serveFlags.PrometheusPort, "prometheus", defaults.PrometheusPort, "expose metrics via a Prometheus pull exporter")
	serveCmd.Flags().DurationVar(&serveFlags.PushSendTimeout, "push-send-timeout", defaults.PushSendTimeout, "push-notification HTTP send timeout (§5)")
	serveCmd.Flags().StringVar(&serveFlags.OTLPTraceEndpoint, "otlp-trace-endpoint", defaults.OTLPTraceEndpoint, "OTLP/HTTP collector endpoint (host:port) for spans; empty disables export")
	serveCmd.Flags().StringVar(&serveFlags.OTLPLogEndpoint, "otlp-log-endpoint", defaults.OTLPLogEndpoint, "OTLP/HTTP collector endpoint (host:port) for logs; empty disables export")
	serveCmd.Flags().BoolVar(&serveFlags.OTLPInsecure, "otlp-insecure", defaults.OTLPInsecure, "disable TLS on the OTLP exporters (local collectors only)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the demo server and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		server, err := buildDemoServer(ctx, serveFlags)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "a2acoreserver: shutdown: %v\n", err)
			}
		}()

		fmt.Fprintln(cmd.OutOrStdout(), "a2acoreserver: demo core running, Ctrl-C to stop")
		<-ctx.Done()
		return nil
	},
}

var sendText string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build an in-process core and send it one message, printing the resulting task",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		server, err := buildDemoServer(ctx, serveFlags)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		if sendText == "" {
			sendText = "hello from the a2acoreserver CLI"
		}
		msg, err := a2a.NewMessage(a2a.RoleUser, a2a.NewTextPart(sendText, nil))
		if err != nil {
			return err
		}

		call := &a2asrv.ServerCallContext{User: "cli"}
		result, err := server.Handler.OnMessageSend(ctx, call, a2a.MessageSendParams{Message: msg})
		if err != nil {
			return err
		}

		task, ok := result.(*a2a.Task)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "received bare message reply: %+v\n", result)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s: state=%s artifacts=%d\n", task.ID, task.Status.State, len(task.Artifacts))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendText, "text", "", "message text to send (default: a canned greeting)")
}
