package a2a

// Role identifies the sender of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is an out-of-band or in-task conversational turn: a non-empty
// ordered sequence of Part under a single Role.
type Message struct {
	Role             Role
	Parts            []Part
	MessageID        MessageID
	TaskID           TaskID
	ContextID        ContextID
	Metadata         map[string]any
	Extensions       []string
	ReferenceTaskIDs []TaskID
}

// NewMessage constructs a Message with a freshly generated MessageID.
// Returns InvalidParamsError if parts is empty.
func NewMessage(role Role, parts ...Part) (*Message, error) {
	if len(parts) == 0 {
		return nil, InvalidParamsError("message must have at least one part")
	}
	return &Message{
		Role:      role,
		Parts:     CloneParts(parts),
		MessageID: NewMessageID(),
	}, nil
}

// NewMessageForTask constructs a Message addressed to task's id/context,
// for use when building the message carried inside a TaskStatus.
func NewMessageForTask(role Role, task TaskInfoProvider, parts ...Part) *Message {
	msg, err := NewMessage(role, parts...)
	if err != nil {
		// parts is always non-empty at call sites within this package;
		// a panic here would indicate a programmer error, not caller input.
		panic(err)
	}
	msg.TaskID = task.GetTaskID()
	msg.ContextID = task.GetContextID()
	return msg
}

// WithMessageID returns a copy of m with MessageID set to id, used when the
// caller supplies its own id instead of a generated one.
func (m Message) WithMessageID(id MessageID) Message {
	m.MessageID = id
	return m
}

// Clone returns a defensive deep copy of m.
func (m Message) Clone() Message {
	m.Parts = CloneParts(m.Parts)
	m.Metadata = CloneMetadata(m.Metadata)
	if m.Extensions != nil {
		m.Extensions = append([]string(nil), m.Extensions...)
	}
	if m.ReferenceTaskIDs != nil {
		m.ReferenceTaskIDs = append([]TaskID(nil), m.ReferenceTaskIDs...)
	}
	return m
}

func (*Message) Kind() EventKind { return EventKindMessage }
