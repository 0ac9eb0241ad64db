package a2a

// MessageSendParams is the input to SendMessage/SendStreamingMessage (§6).
type MessageSendParams struct {
	Message *Message
	// HistoryLength truncates the returned task's history to its most
	// recent N messages, if > 0.
	HistoryLength int
}

// TaskIDParams is the input to SubscribeToTask/CancelTask (§6).
type TaskIDParams struct {
	TaskID TaskID
}

// TaskQueryParams is the input to GetTask (§6).
type TaskQueryParams struct {
	TaskID        TaskID
	HistoryLength int
}

// ListTasksParams filters and paginates ListTasks (§6); it mirrors
// taskstore.ListParams except that it has no StatusTimestampAfter filter,
// and lives in this package so transports don't need to import the
// storage package.
type ListTasksParams struct {
	ContextID ContextID
	State     TaskState

	HistoryLength    int
	IncludeArtifacts bool

	PageSize  int
	PageToken string
}

// AgentCapabilities advertises which optional protocol features this
// server supports (§6).
type AgentCapabilities struct {
	Streaming              bool
	PushNotifications      bool
	StateTransitionHistory bool
}

// AgentCard is the public, unauthenticated descriptor served from
// /.well-known/agent-card.json (§6).
type AgentCard struct {
	Name                string
	Description         string
	ProtocolVersion     string
	Capabilities        AgentCapabilities
	SupportedTransports []string
	Skills              []string
}
