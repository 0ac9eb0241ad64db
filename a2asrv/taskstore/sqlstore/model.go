// Package sqlstore is a durable gorm-backed TaskStore, grounded on the
// same gorm/glebarez-sqlite stack the teacher uses for its own persistence
// layer. It satisfies taskstore.TaskStore/TaskStateProvider and adds the
// (contextId), (status.state), (status.timestamp) indexes §6 requires.
package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/a2aserver/a2acore/a2a"
)

// taskRow is the gorm model backing a Task row. History, Artifacts, and
// Metadata are stored as JSON blobs since their contents are polymorphic
// (Part) or free-form maps and don't map cleanly onto relational columns;
// the query-relevant fields are promoted to indexed columns.
type taskRow struct {
	ID        string `gorm:"primaryKey"`
	ContextID string `gorm:"column:context_id;index:idx_task_context_id"`

	StatusState     string    `gorm:"column:status_state;index:idx_task_status_state"`
	StatusTimestamp time.Time `gorm:"column:status_timestamp;index:idx_task_status_timestamp"`
	StatusMessage   []byte    `gorm:"column:status_message"`

	History   []byte `gorm:"column:history"`
	Artifacts []byte `gorm:"column:artifacts"`
	Metadata  []byte `gorm:"column:metadata"`
}

func (taskRow) TableName() string { return "a2a_tasks" }

func toRow(task *a2a.Task) (*taskRow, error) {
	history, err := json.Marshal(task.History)
	if err != nil {
		return nil, a2a.InternalErrorFrom(err, false)
	}
	artifacts, err := json.Marshal(task.Artifacts)
	if err != nil {
		return nil, a2a.InternalErrorFrom(err, false)
	}
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return nil, a2a.InternalErrorFrom(err, false)
	}
	var statusMessage []byte
	if task.Status.Message != nil {
		statusMessage, err = json.Marshal(task.Status.Message)
		if err != nil {
			return nil, a2a.InternalErrorFrom(err, false)
		}
	}
	return &taskRow{
		ID:              string(task.ID),
		ContextID:       string(task.ContextID),
		StatusState:     string(task.Status.State),
		StatusTimestamp: task.Status.Timestamp,
		StatusMessage:   statusMessage,
		History:         history,
		Artifacts:       artifacts,
		Metadata:        metadata,
	}, nil
}

func fromRow(row *taskRow) (*a2a.Task, error) {
	var history []a2a.Message
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &history); err != nil {
			return nil, a2a.InternalErrorFrom(err, false)
		}
	}
	var artifacts []a2a.Artifact
	if len(row.Artifacts) > 0 {
		if err := json.Unmarshal(row.Artifacts, &artifacts); err != nil {
			return nil, a2a.InternalErrorFrom(err, false)
		}
	}
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, a2a.InternalErrorFrom(err, false)
		}
	}
	var statusMessage *a2a.Message
	if len(row.StatusMessage) > 0 {
		statusMessage = &a2a.Message{}
		if err := json.Unmarshal(row.StatusMessage, statusMessage); err != nil {
			return nil, a2a.InternalErrorFrom(err, false)
		}
	}
	return &a2a.Task{
		ID:        a2a.TaskID(row.ID),
		ContextID: a2a.ContextID(row.ContextID),
		Status: a2a.TaskStatus{
			State:     a2a.TaskState(row.StatusState),
			Message:   statusMessage,
			Timestamp: row.StatusTimestamp,
		},
		History:   history,
		Artifacts: artifacts,
		Metadata:  metadata,
	}, nil
}
