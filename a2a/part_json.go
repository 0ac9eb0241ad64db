package a2a

import (
	"encoding/json"
	"fmt"
)

type partKind string

const (
	partKindText partKind = "text"
	partKindFile partKind = "file"
	partKindData partKind = "data"
)

func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     partKind       `json:"kind"`
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{partKindText, p.Text, p.Metadata})
}

func (p FilePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     partKind       `json:"kind"`
		File     FileContent    `json:"file"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{partKindFile, p.File, p.Metadata})
}

func (p DataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     partKind       `json:"kind"`
		Data     map[string]any `json:"data"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{partKindData, p.Data, p.Metadata})
}

// DecodePart deserializes a single Part from its tagged wire form.
func DecodePart(data []byte) (Part, error) {
	var tag struct {
		Kind partKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode part tag: %w", err)
	}
	switch tag.Kind {
	case partKindText:
		var v struct {
			Text     string         `json:"text"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return TextPart{Text: v.Text, Metadata: v.Metadata}, nil
	case partKindFile:
		var v struct {
			File     FileContent    `json:"file"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return FilePart{File: v.File, Metadata: v.Metadata}, nil
	case partKindData:
		var v struct {
			Data     map[string]any `json:"data"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return DataPart{Data: v.Data, Metadata: v.Metadata}, nil
	default:
		return nil, InvalidParamsError(fmt.Sprintf("unknown part kind %q", tag.Kind))
	}
}

func decodePartsArray(raw json.RawMessage) ([]Part, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rawParts []json.RawMessage
	if err := json.Unmarshal(raw, &rawParts); err != nil {
		return nil, fmt.Errorf("decode parts array: %w", err)
	}
	parts := make([]Part, len(rawParts))
	for i, rp := range rawParts {
		p, err := DecodePart(rp)
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	return parts, nil
}

// MarshalJSON gives Message a stable wire shape despite its polymorphic
// Parts field.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role             Role           `json:"role"`
		Parts            []Part         `json:"parts"`
		MessageID        MessageID      `json:"messageId,omitempty"`
		TaskID           TaskID         `json:"taskId,omitempty"`
		ContextID        ContextID      `json:"contextId,omitempty"`
		Metadata         map[string]any `json:"metadata,omitempty"`
		Extensions       []string       `json:"extensions,omitempty"`
		ReferenceTaskIDs []TaskID       `json:"referenceTaskIds,omitempty"`
	}
	return json.Marshal(alias{
		Role: m.Role, Parts: m.Parts, MessageID: m.MessageID, TaskID: m.TaskID,
		ContextID: m.ContextID, Metadata: m.Metadata, Extensions: m.Extensions,
		ReferenceTaskIDs: m.ReferenceTaskIDs,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role             Role            `json:"role"`
		Parts            json.RawMessage `json:"parts"`
		MessageID        MessageID       `json:"messageId"`
		TaskID           TaskID          `json:"taskId"`
		ContextID        ContextID       `json:"contextId"`
		Metadata         map[string]any  `json:"metadata"`
		Extensions       []string        `json:"extensions"`
		ReferenceTaskIDs []TaskID        `json:"referenceTaskIds"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts, err := decodePartsArray(raw.Parts)
	if err != nil {
		return err
	}
	*m = Message{
		Role: raw.Role, Parts: parts, MessageID: raw.MessageID, TaskID: raw.TaskID,
		ContextID: raw.ContextID, Metadata: raw.Metadata, Extensions: raw.Extensions,
		ReferenceTaskIDs: raw.ReferenceTaskIDs,
	}
	return nil
}

// MarshalJSON gives Artifact a stable wire shape despite its polymorphic
// Parts field.
func (a Artifact) MarshalJSON() ([]byte, error) {
	type alias struct {
		ArtifactID  ArtifactID     `json:"artifactId"`
		Name        string         `json:"name,omitempty"`
		Description string         `json:"description,omitempty"`
		Parts       []Part         `json:"parts"`
		Metadata    map[string]any `json:"metadata,omitempty"`
		Extensions  []string       `json:"extensions,omitempty"`
	}
	return json.Marshal(alias{
		ArtifactID: a.ArtifactID, Name: a.Name, Description: a.Description,
		Parts: a.Parts, Metadata: a.Metadata, Extensions: a.Extensions,
	})
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var raw struct {
		ArtifactID  ArtifactID      `json:"artifactId"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parts       json.RawMessage `json:"parts"`
		Metadata    map[string]any  `json:"metadata"`
		Extensions  []string        `json:"extensions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts, err := decodePartsArray(raw.Parts)
	if err != nil {
		return err
	}
	*a = Artifact{
		ArtifactID: raw.ArtifactID, Name: raw.Name, Description: raw.Description,
		Parts: parts, Metadata: raw.Metadata, Extensions: raw.Extensions,
	}
	return nil
}
