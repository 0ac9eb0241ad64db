package a2a

import "maps"

// Metadata is an opaque string-keyed mapping carried by most entities.
// Equality ignores key order (it's a Go map already); callers get a
// defensive copy whenever one crosses an entity boundary.
type Metadata map[string]any

// CloneMetadata returns a defensive copy of m, or nil if m is empty.
func CloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

// MergeMetadata returns a new map with base's entries overwritten by
// overlay's (overlay wins on key collision), or nil if both are empty.
func MergeMetadata(base, overlay map[string]any) map[string]any {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(overlay))
	maps.Copy(out, base)
	maps.Copy(out, overlay)
	return out
}

// Part is the closed tagged-variant over the part kinds the protocol
// defines. The set is closed: TextPart, FilePart, DataPart. Callers
// switch exhaustively on the concrete type rather than relying on
// reflection.
type Part interface {
	partTag()
}

// TextPart carries plain text.
type TextPart struct {
	Text     string
	Metadata map[string]any
}

func (TextPart) partTag() {}

// NewTextPart constructs a TextPart with defensively copied metadata.
func NewTextPart(text string, metadata map[string]any) TextPart {
	return TextPart{Text: text, Metadata: CloneMetadata(metadata)}
}

// FileContent is a file's payload, given inline as Bytes or by reference
// as URI — exactly one of the two is normally populated.
type FileContent struct {
	Name     string
	MimeType string
	Bytes    []byte
	URI      string
}

// FilePart carries a file, inline or by reference.
type FilePart struct {
	File     FileContent
	Metadata map[string]any
}

func (FilePart) partTag() {}

// NewFilePart constructs a FilePart with defensively copied metadata.
func NewFilePart(file FileContent, metadata map[string]any) FilePart {
	if len(file.Bytes) > 0 {
		b := make([]byte, len(file.Bytes))
		copy(b, file.Bytes)
		file.Bytes = b
	}
	return FilePart{File: file, Metadata: CloneMetadata(metadata)}
}

// DataPart carries a JSON object as a string-keyed map. A top-level JSON
// array or scalar value cannot be carried as a DataPart.
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

func (DataPart) partTag() {}

// NewDataPart constructs a DataPart with defensively copied Data and metadata.
func NewDataPart(data map[string]any, metadata map[string]any) DataPart {
	return DataPart{Data: CloneMetadata(data), Metadata: CloneMetadata(metadata)}
}

// ClonePart returns a defensive copy of p.
func ClonePart(p Part) Part {
	switch v := p.(type) {
	case TextPart:
		return NewTextPart(v.Text, v.Metadata)
	case FilePart:
		return NewFilePart(v.File, v.Metadata)
	case DataPart:
		return NewDataPart(v.Data, v.Metadata)
	default:
		return p
	}
}

// CloneParts returns a defensive copy of a part sequence.
func CloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = ClonePart(p)
	}
	return out
}
