package models

import "time"

// Source types recorded in the export ledger.
const (
	SourceTypeFile   = "file"
	SourceTypeURL    = "url"
	SourceTypeObject = "object"
)

// Export statuses.
const (
	StatusExported = "EXPORTED"
	StatusFailed   = "FAILED"
)

// ExportRecord represents one ingestion pass in the Firestore ledger.
// It is written after the pass finishes and never read back by the gateway.
type ExportRecord struct {
	FileID       string    `firestore:"fileId" json:"fileId"`
	Source       string    `firestore:"source,omitempty" json:"source,omitempty"`
	SourceType   string    `firestore:"sourceType,omitempty" json:"sourceType,omitempty"`
	StorageKey   string    `firestore:"storageKey,omitempty" json:"storageKey,omitempty"`
	Bucket       string    `firestore:"bucket,omitempty" json:"bucket,omitempty"`
	Status       string    `firestore:"status,omitempty" json:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	ElementCount int       `firestore:"elementCount" json:"elementCount"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
}
