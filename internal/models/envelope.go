package models

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ExportPrefix is the key prefix shared by every exported envelope.
const ExportPrefix = "exports/"

// Key suffixes for the three ingestion sources.
const (
	FileExportSuffix   = "export"
	URLExportSuffix    = "url_export"
	ObjectExportSuffix = "object_export"
)

// Element is a single structured record produced by the partitioning backend.
// The gateway treats it as opaque beyond being serializable.
type Element struct {
	Type      string         `json:"type"`
	ElementID string         `json:"element_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
}

// Envelope wraps the extracted elements with the source descriptor and the
// generated identifier. Exactly one of FileName and Source is set.
type Envelope struct {
	FileName string    `json:"file_name,omitempty"`
	Source   string    `json:"source,omitempty"`
	FileID   string    `json:"file_id"`
	Content  []Element `json:"content"`
}

// NewFileEnvelope builds the envelope for an uploaded file.
func NewFileEnvelope(fileName, fileID string, elements []Element) *Envelope {
	return &Envelope{FileName: fileName, FileID: fileID, Content: nonNil(elements)}
}

// NewSourceEnvelope builds the envelope for a URL or a stored object.
func NewSourceEnvelope(source, fileID string, elements []Element) *Envelope {
	return &Envelope{Source: source, FileID: fileID, Content: nonNil(elements)}
}

func nonNil(elements []Element) []Element {
	if elements == nil {
		return []Element{}
	}
	return elements
}

// ExportKey returns the storage key for an envelope: exports/{id}_{suffix}.json.
func ExportKey(fileID, suffix string) string {
	return fmt.Sprintf("%s%s_%s.json", ExportPrefix, fileID, suffix)
}

// Encode writes the envelope as indented UTF-8 JSON without escaping
// non-ASCII or HTML characters.
func (e *Envelope) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(e)
}

// WriteFile writes the encoded envelope to path.
func (e *Envelope) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create envelope file at %s: %w", path, err)
	}
	if err := e.Encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to finalize envelope file: %w", err)
	}
	return nil
}
