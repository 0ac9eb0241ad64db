package main

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// serveConfig holds the serve and send commands' settings, mirroring the
// teacher's own flag-struct-plus-decode idiom (cmd/launcher's
// consoleConfig). The CLI binds its flags directly into it;
// decodeServeConfig overlays a config map (e.g. unmarshaled from YAML by
// an embedding caller) onto the same defaults via mapstructure. The CLI
// itself does not call decodeServeConfig.
type serveConfig struct {
	StoreBackend    string        `mapstructure:"store"`
	SQLiteDSN       string        `mapstructure:"sqlite_dsn"`
	Replication     string        `mapstructure:"replication"`
	RaftNodeID      string        `mapstructure:"raft_node_id"`
	RaftBindAddr    string        `mapstructure:"raft_bind_addr"`
	RaftDataDir     string        `mapstructure:"raft_data_dir"`
	AgentTimeout    time.Duration `mapstructure:"agent_timeout"`
	ConsumeTimeout  time.Duration `mapstructure:"consume_timeout"`
	CancelTimeout   time.Duration `mapstructure:"cancel_timeout"`
	GraceWindow     time.Duration `mapstructure:"grace_window"`
	PrometheusPort  bool          `mapstructure:"prometheus"`
	PushSendTimeout time.Duration `mapstructure:"push_send_timeout"`

	OTLPTraceEndpoint string `mapstructure:"otlp_trace_endpoint"`
	OTLPLogEndpoint   string `mapstructure:"otlp_log_endpoint"`
	OTLPInsecure      bool   `mapstructure:"otlp_insecure"`
}

// defaultServeConfig mirrors §5's documented defaults (60s/30s/30s) and
// C9's grace-sweep default.
func defaultServeConfig() serveConfig {
	return serveConfig{
		StoreBackend:    "memory",
		Replication:     "noop",
		RaftNodeID:      "node1",
		RaftBindAddr:    "127.0.0.1:7950",
		RaftDataDir:     "./a2acore-raft",
		AgentTimeout:    60 * time.Second,
		ConsumeTimeout:  30 * time.Second,
		CancelTimeout:   30 * time.Second,
		GraceWindow:     10 * time.Minute,
		PushSendTimeout: 10 * time.Second,
	}
}

// decodeServeConfig overlays raw (typically sourced from a YAML/JSON file
// an embedding caller already unmarshaled into a map) onto the defaults via
// mapstructure, so callers never hand-roll field-by-field assignment.
func decodeServeConfig(raw map[string]any) (serveConfig, error) {
	cfg := defaultServeConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("a2acoreserver: build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("a2acoreserver: decode config: %w", err)
	}
	return cfg, nil
}
