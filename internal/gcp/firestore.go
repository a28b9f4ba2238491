package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/ingestiongateway/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// ExportLedger writes one document per ingestion pass, keyed by file id.
type ExportLedger struct {
	client     *firestore.Client
	collection string
}

// NewExportLedger creates a ledger writing to the given collection.
func NewExportLedger(ctx context.Context, projectID, collection string) (*ExportLedger, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection must be provided to create an export ledger")
	}
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ExportLedger{client: client, collection: collection}, nil
}

// RecordExport stores the record under {collection}/{fileId}.
func (l *ExportLedger) RecordExport(ctx context.Context, rec models.ExportRecord) error {
	if _, err := l.client.Collection(l.collection).Doc(rec.FileID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write export record %s: %w", rec.FileID, err)
	}
	return nil
}

// Close releases the underlying client.
func (l *ExportLedger) Close() error {
	return l.client.Close()
}
