package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/Lllllllleong/ingestiongateway/internal/fetch"
	"github.com/Lllllllleong/ingestiongateway/internal/gcp"
	"github.com/Lllllllleong/ingestiongateway/internal/models"
	"github.com/Lllllllleong/ingestiongateway/internal/objectstore"
	"github.com/Lllllllleong/ingestiongateway/internal/partition"
)

// Success messages returned to clients.
const (
	FileProcessedMessage = "File processed and uploaded to S3 successfully"
	URLProcessedMessage  = "URL processed and uploaded to S3 successfully"
)

// ObjectReader downloads stored objects for event-driven ingestion.
type ObjectReader interface {
	Download(ctx context.Context, bucket, object, destPath string) error
}

// ExportRecorder persists the outcome of an ingestion pass.
type ExportRecorder interface {
	RecordExport(ctx context.Context, rec models.ExportRecord) error
}

// ExportNotifier is told about every successful export.
type ExportNotifier interface {
	NotifyExport(ctx context.Context, rec models.ExportRecord) error
}

// Dependencies are the collaborators injected into the gateway. Store,
// Partitioner and Fetcher are required; the rest are optional.
type Dependencies struct {
	Store       objectstore.ObjectStore
	Partitioner partition.Partitioner
	Fetcher     fetch.Fetcher
	Objects     ObjectReader
	Recorder    ExportRecorder
	Notifier    ExportNotifier
	Logger      *slog.Logger
}

// GatewayFunction turns uploads, URLs and stored objects into JSON envelopes
// in object storage.
type GatewayFunction struct {
	store       objectstore.ObjectStore
	partitioner partition.Partitioner
	fetcher     fetch.Fetcher
	objects     ObjectReader
	recorder    ExportRecorder
	notifier    ExportNotifier
	pool        *ants.Pool
	tempDir     string
	logger      *slog.Logger
	newID       func() string
	closers     []io.Closer
}

// NewGateway loads configuration from the environment and builds every
// client the gateway needs.
func NewGateway(ctx context.Context) (*GatewayFunction, error) {
	cfg, err := LoadGatewayConfig()
	if err != nil {
		return nil, err
	}

	deps := Dependencies{Logger: slog.Default()}
	var closers []io.Closer
	fail := func(err error) (*GatewayFunction, error) {
		closeAll(closers)
		return nil, err
	}

	var gcsStore *gcp.GCSStore
	switch cfg.StorageBackend {
	case StorageBackendGCS:
		gcsStore, err = gcp.NewGCSStore(ctx, cfg.GCSExportBucket, cfg.UploadTimeout)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, gcsStore)
		deps.Store = gcsStore
	default:
		s3Store, err := objectstore.NewS3Store(cfg.S3, slog.Default())
		if err != nil {
			return fail(fmt.Errorf("failed to create S3 store: %w", err))
		}
		deps.Store = s3Store
	}

	if cfg.InboxEnabled {
		if gcsStore == nil {
			gcsStore, err = gcp.NewGCSStore(ctx, "", cfg.UploadTimeout)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, gcsStore)
		}
		deps.Objects = gcsStore
	}

	switch cfg.Partitioner {
	case PartitionerVertex:
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexAIModel)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, vertexClient)
		deps.Partitioner, err = partition.NewVertexPartitioner(vertexClient.PartitionerModel, cfg.VertexPageConcurrency, slog.Default())
		if err != nil {
			return fail(err)
		}
	default:
		deps.Partitioner = partition.NewUnstructuredClient(cfg.Unstructured)
	}

	deps.Fetcher = fetch.NewHTTPFetcher(cfg.FetchTimeout)

	if cfg.FirestoreCollection != "" {
		ledger, err := gcp.NewExportLedger(ctx, cfg.ProjectID, cfg.FirestoreCollection)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ledger)
		deps.Recorder = ledger
	}
	if cfg.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, trigger)
		deps.Notifier = trigger
	}

	g, err := New(*cfg, deps)
	if err != nil {
		return fail(err)
	}
	g.closers = closers

	slog.Info("Ingestion gateway initialized.",
		"storageBackend", cfg.StorageBackend,
		"bucket", deps.Store.Bucket(),
		"partitioner", cfg.Partitioner,
		"workerPoolSize", cfg.WorkerPoolSize,
		"inboxEnabled", cfg.InboxEnabled,
	)
	return g, nil
}

// New assembles a gateway from already constructed collaborators.
func New(cfg GatewayConfig, deps Dependencies) (*GatewayFunction, error) {
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}
	if deps.Partitioner == nil {
		return nil, ErrPartitionerRequired
	}
	if deps.Fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	size := cfg.WorkerPoolSize
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &GatewayFunction{
		store:       deps.Store,
		partitioner: deps.Partitioner,
		fetcher:     deps.Fetcher,
		objects:     deps.Objects,
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
		pool:        pool,
		tempDir:     tempDir,
		logger:      deps.Logger,
		newID:       uuid.NewString,
	}, nil
}

// Close releases the worker pool and any clients created by NewGateway.
func (g *GatewayFunction) Close() error {
	g.pool.Release()
	return closeAll(g.closers)
}

// ProcessFile partitions an uploaded file and exports the envelope.
func (g *GatewayFunction) ProcessFile(ctx context.Context, filename string, content io.Reader) (*models.ProcessResponse, error) {
	fileID := g.newID()
	name := sanitizeFilename(filename)
	key := models.ExportKey(fileID, models.FileExportSuffix)
	logCtx := g.logger.With("fileId", fileID, "filename", name)
	logCtx.Info("Processing uploaded file.")

	rec := newRecord(fileID, name, models.SourceTypeFile)
	err := g.runBlocking(ctx, func(ctx context.Context) error {
		ws, err := newWorkspace(g.tempDir, fileID)
		if err != nil {
			return err
		}
		defer g.release(logCtx, ws)

		rawPath, size, err := ws.writeFile(fileID+"_"+name, content)
		if err != nil {
			return err
		}
		logCtx.Info("Upload saved to workspace.", "bytes", size)

		elements, err := g.partitioner.PartitionFile(ctx, rawPath)
		if err != nil {
			return fmt.Errorf("failed to partition %s: %w", name, err)
		}
		rec.ElementCount = len(elements)
		return g.export(ctx, logCtx, ws, models.NewFileEnvelope(name, fileID, elements), key)
	})
	g.finish(ctx, logCtx, &rec, key, err)
	if err != nil {
		return nil, err
	}
	return &models.ProcessResponse{Message: FileProcessedMessage, S3Key: key}, nil
}

// ProcessURL fetches a URL, partitions the body as text and exports the envelope.
func (g *GatewayFunction) ProcessURL(ctx context.Context, url string) (*models.ProcessResponse, error) {
	fileID := g.newID()
	key := models.ExportKey(fileID, models.URLExportSuffix)
	logCtx := g.logger.With("fileId", fileID, "source", url)
	logCtx.Info("Processing URL.")

	rec := newRecord(fileID, url, models.SourceTypeURL)
	err := g.runBlocking(ctx, func(ctx context.Context) error {
		body, err := g.fetcher.Fetch(ctx, url)
		if err != nil {
			return &FetchError{Err: err}
		}
		logCtx.Info("Content fetched from URL.", "bytes", len(body))

		elements, err := g.partitioner.PartitionText(ctx, body)
		if err != nil {
			return fmt.Errorf("failed to partition content from %s: %w", url, err)
		}
		rec.ElementCount = len(elements)

		ws, err := newWorkspace(g.tempDir, fileID)
		if err != nil {
			return err
		}
		defer g.release(logCtx, ws)
		return g.export(ctx, logCtx, ws, models.NewSourceEnvelope(url, fileID, elements), key)
	})
	g.finish(ctx, logCtx, &rec, key, err)
	if err != nil {
		return nil, err
	}
	return &models.ProcessResponse{Message: URLProcessedMessage, S3Key: key}, nil
}

// ProcessObject partitions a stored GCS object and exports the envelope.
// Objects under the export prefix of the export bucket are skipped and
// yield a nil response with a nil error.
func (g *GatewayFunction) ProcessObject(ctx context.Context, e models.GCSEvent) (*models.ProcessResponse, error) {
	logCtx := g.logger.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if g.objects == nil {
		return nil, ErrInboxDisabled
	}
	if e.Bucket == g.store.Bucket() && strings.HasPrefix(e.Name, models.ExportPrefix) {
		logCtx.Info("Object is an export. Skipping.")
		return nil, nil
	}

	fileID := g.newID()
	name := sanitizeFilename(e.Name)
	source := fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name)
	key := models.ExportKey(fileID, models.ObjectExportSuffix)
	logCtx = logCtx.With("fileId", fileID)
	logCtx.Info("Processing stored object.")

	rec := newRecord(fileID, source, models.SourceTypeObject)
	err := g.runBlocking(ctx, func(ctx context.Context) error {
		ws, err := newWorkspace(g.tempDir, fileID)
		if err != nil {
			return err
		}
		defer g.release(logCtx, ws)

		rawPath := ws.path(fileID + "_" + name)
		if err := g.objects.Download(ctx, e.Bucket, e.Name, rawPath); err != nil {
			return err
		}

		elements, err := g.partitioner.PartitionFile(ctx, rawPath)
		if err != nil {
			return fmt.Errorf("failed to partition %s: %w", source, err)
		}
		rec.ElementCount = len(elements)
		return g.export(ctx, logCtx, ws, models.NewSourceEnvelope(source, fileID, elements), key)
	})
	g.finish(ctx, logCtx, &rec, key, err)
	if err != nil {
		return nil, err
	}
	return &models.ProcessResponse{Message: FileProcessedMessage, S3Key: key}, nil
}

// export writes the envelope into the workspace and uploads it once.
func (g *GatewayFunction) export(ctx context.Context, logCtx *slog.Logger, ws *workspace, env *models.Envelope, key string) error {
	jsonPath := ws.path(env.FileID + "_export.json")
	if err := env.WriteFile(jsonPath); err != nil {
		return err
	}
	logCtx.Info("Envelope written. Uploading to storage.", "key", key, "elements", len(env.Content))

	if err := g.store.UploadFile(ctx, jsonPath, key); err != nil {
		return &StorageError{Err: err}
	}
	logCtx.Info("Envelope uploaded.", "bucket", g.store.Bucket(), "key", key)
	return nil
}

// runBlocking executes task on the worker pool and waits for it. The task
// context is detached from the caller's cancellation. A panic inside task is
// returned as an error.
func (g *GatewayFunction) runBlocking(ctx context.Context, task func(ctx context.Context) error) error {
	workCtx := context.WithoutCancel(ctx)
	done := make(chan error, 1)
	err := g.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic during processing: %v", r)
			}
		}()
		done <- task(workCtx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule processing: %w", err)
	}
	return <-done
}

func (g *GatewayFunction) release(logCtx *slog.Logger, ws *workspace) {
	if err := ws.close(); err != nil {
		logCtx.Warn("Failed to remove workspace.", "path", ws.dir, "error", err)
	}
}

// finish records the outcome and notifies downstream on success. Neither
// side effect can change the result of the pass.
func (g *GatewayFunction) finish(ctx context.Context, logCtx *slog.Logger, rec *models.ExportRecord, key string, err error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		rec.Status = models.StatusFailed
		rec.ErrorDetails = err.Error()
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			logCtx.Error("Failed to upload envelope.", "error", err)
		} else {
			logCtx.Error("Ingestion failed.", "error", err)
		}
	} else {
		rec.Status = models.StatusExported
		rec.StorageKey = key
		rec.Bucket = g.store.Bucket()
	}

	if g.recorder != nil {
		if rerr := g.recorder.RecordExport(ctx, *rec); rerr != nil {
			logCtx.Error("Failed to record export.", "error", rerr)
		}
	}
	if err == nil && g.notifier != nil {
		if nerr := g.notifier.NotifyExport(ctx, *rec); nerr != nil {
			logCtx.Error("Failed to notify export.", "error", nerr)
		} else {
			logCtx.Info("Export notification sent.")
		}
	}
}

func newRecord(fileID, source, sourceType string) models.ExportRecord {
	return models.ExportRecord{
		FileID:     fileID,
		Source:     source,
		SourceType: sourceType,
		CreatedAt:  time.Now().UTC(),
	}
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
