package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ingestiongateway/internal/models"
)

type upload struct {
	key      string
	envelope models.Envelope
}

type fakeStore struct {
	mu      sync.Mutex
	bucket  string
	err     error
	uploads []upload
}

func (s *fakeStore) Bucket() string { return s.bucket }

func (s *fakeStore) UploadFile(_ context.Context, localPath, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	s.uploads = append(s.uploads, upload{key: key, envelope: env})
	return nil
}

type fakePartitioner struct {
	fileFn func(path string) ([]models.Element, error)
	textFn func(text string) ([]models.Element, error)
	seen   []string
}

func (p *fakePartitioner) PartitionFile(_ context.Context, path string) ([]models.Element, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p.seen = append(p.seen, string(raw))
	if p.fileFn != nil {
		return p.fileFn(path)
	}
	return []models.Element{{Type: "Title", Text: "first"}, {Type: "NarrativeText", Text: "second"}}, nil
}

func (p *fakePartitioner) PartitionText(_ context.Context, text string) ([]models.Element, error) {
	p.seen = append(p.seen, text)
	if p.textFn != nil {
		return p.textFn(text)
	}
	return []models.Element{{Type: "NarrativeText", Text: text}}, nil
}

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	return f.body, f.err
}

type fakeObjects struct {
	content string
	err     error
}

func (o *fakeObjects) Download(_ context.Context, _, _, destPath string) error {
	if o.err != nil {
		return o.err
	}
	return os.WriteFile(destPath, []byte(o.content), 0o600)
}

type fakeLedger struct {
	records  []models.ExportRecord
	notified []models.ExportRecord
	err      error
}

func (l *fakeLedger) RecordExport(_ context.Context, rec models.ExportRecord) error {
	l.records = append(l.records, rec)
	return l.err
}

func (l *fakeLedger) NotifyExport(_ context.Context, rec models.ExportRecord) error {
	l.notified = append(l.notified, rec)
	return l.err
}

type gatewayFixture struct {
	gateway     *GatewayFunction
	store       *fakeStore
	partitioner *fakePartitioner
	fetcher     *fakeFetcher
	tempDir     string
}

func newFixture(t *testing.T, mutate ...func(*Dependencies)) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		store:       &fakeStore{bucket: "exports-bucket"},
		partitioner: &fakePartitioner{},
		fetcher:     &fakeFetcher{body: "hello from the web"},
		tempDir:     t.TempDir(),
	}
	deps := Dependencies{
		Store:       f.store,
		Partitioner: f.partitioner,
		Fetcher:     f.fetcher,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&deps)
	}
	g, err := New(GatewayConfig{WorkerPoolSize: 2, TempDir: f.tempDir}, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	f.gateway = g
	return f
}

func (f *gatewayFixture) assertWorkspaceEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp root should be empty after processing")
}

var urlKeyPattern = regexp.MustCompile(`^exports/[0-9a-f-]{36}_url_export\.json$`)

func TestNew_RequiresDependencies(t *testing.T) {
	base := Dependencies{Store: &fakeStore{}, Partitioner: &fakePartitioner{}, Fetcher: &fakeFetcher{}}

	deps := base
	deps.Store = nil
	_, err := New(GatewayConfig{}, deps)
	assert.ErrorIs(t, err, ErrStoreRequired)

	deps = base
	deps.Partitioner = nil
	_, err = New(GatewayConfig{}, deps)
	assert.ErrorIs(t, err, ErrPartitionerRequired)

	deps = base
	deps.Fetcher = nil
	_, err = New(GatewayConfig{}, deps)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	g, err := New(GatewayConfig{}, base)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, os.TempDir(), g.tempDir)
}

func TestProcessFile_UploadsEnvelope(t *testing.T) {
	f := newFixture(t)

	resp, err := f.gateway.ProcessFile(context.Background(), "report.pdf", strings.NewReader("%PDF-1.7 body"))
	require.NoError(t, err)

	assert.Equal(t, FileProcessedMessage, resp.Message)
	require.Len(t, f.store.uploads, 1)
	up := f.store.uploads[0]
	assert.Equal(t, resp.S3Key, up.key)
	assert.True(t, strings.HasPrefix(up.key, "exports/"))
	assert.Equal(t, models.ExportKey(up.envelope.FileID, models.FileExportSuffix), up.key)
	assert.Equal(t, "report.pdf", up.envelope.FileName)
	assert.Empty(t, up.envelope.Source)
	require.Len(t, up.envelope.Content, 2)
	assert.Equal(t, "first", up.envelope.Content[0].Text)
	assert.Equal(t, "second", up.envelope.Content[1].Text)
	assert.Equal(t, []string{"%PDF-1.7 body"}, f.partitioner.seen)
	f.assertWorkspaceEmpty(t)
}

func TestProcessFile_SanitizesFilename(t *testing.T) {
	f := newFixture(t)
	var partitioned string
	f.partitioner.fileFn = func(path string) ([]models.Element, error) {
		partitioned = filepath.Base(path)
		return nil, nil
	}

	_, err := f.gateway.ProcessFile(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)

	require.Len(t, f.store.uploads, 1)
	assert.Equal(t, "passwd", f.store.uploads[0].envelope.FileName)
	assert.Equal(t, f.store.uploads[0].envelope.FileID+"_passwd", partitioned)
	assert.NotNil(t, f.store.uploads[0].envelope.Content)
	assert.Empty(t, f.store.uploads[0].envelope.Content)
}

func TestProcessFile_DistinctIdsForIdenticalRequests(t *testing.T) {
	f := newFixture(t)

	first, err := f.gateway.ProcessFile(context.Background(), "same.txt", strings.NewReader("same"))
	require.NoError(t, err)
	second, err := f.gateway.ProcessFile(context.Background(), "same.txt", strings.NewReader("same"))
	require.NoError(t, err)

	assert.NotEqual(t, first.S3Key, second.S3Key)
	require.Len(t, f.store.uploads, 2)
	assert.NotEqual(t, f.store.uploads[0].envelope.FileID, f.store.uploads[1].envelope.FileID)
}

func TestProcessFile_PartitionFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.partitioner.fileFn = func(string) ([]models.Element, error) {
		return nil, errors.New("unsupported file type")
	}

	_, err := f.gateway.ProcessFile(context.Background(), "a.bin", strings.NewReader("x"))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "unsupported file type")
	var storageErr *StorageError
	assert.False(t, errors.As(err, &storageErr))
	assert.Empty(t, f.store.uploads)
	f.assertWorkspaceEmpty(t)
}

func TestProcessFile_UploadFailureIsStorageError(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("unable to locate credentials")

	_, err := f.gateway.ProcessFile(context.Background(), "a.txt", strings.NewReader("x"))
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "S3 Error: unable to locate credentials", err.Error())
	f.assertWorkspaceEmpty(t)
}

func TestProcessFile_PanicIsRecoveredAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.partitioner.fileFn = func(string) ([]models.Element, error) {
		panic("partitioner exploded")
	}

	_, err := f.gateway.ProcessFile(context.Background(), "a.txt", strings.NewReader("x"))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "partitioner exploded")
	assert.Empty(t, f.store.uploads)
	f.assertWorkspaceEmpty(t)
}

func TestProcessFile_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.gateway.ProcessFile(ctx, "a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Len(t, f.store.uploads, 1)
}

func TestProcessURL_UploadsEnvelope(t *testing.T) {
	f := newFixture(t)

	resp, err := f.gateway.ProcessURL(context.Background(), "https://example.com/page")
	require.NoError(t, err)

	assert.Equal(t, URLProcessedMessage, resp.Message)
	assert.Regexp(t, urlKeyPattern, resp.S3Key)
	require.Len(t, f.store.uploads, 1)
	env := f.store.uploads[0].envelope
	assert.Equal(t, "https://example.com/page", env.Source)
	assert.Empty(t, env.FileName)
	assert.Equal(t, models.ExportKey(env.FileID, models.URLExportSuffix), resp.S3Key)
	require.Len(t, env.Content, 1)
	assert.Equal(t, "hello from the web", env.Content[0].Text)
	f.assertWorkspaceEmpty(t)
}

func TestProcessURL_FetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("404 Not Found for url: https://example.com/missing")

	_, err := f.gateway.ProcessURL(context.Background(), "https://example.com/missing")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "Failed to fetch URL: 404 Not Found for url: https://example.com/missing", err.Error())
	assert.Empty(t, f.partitioner.seen)
	assert.Empty(t, f.store.uploads)
	f.assertWorkspaceEmpty(t)
}

func TestProcessURL_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("AccessDenied: Access Denied")

	_, err := f.gateway.ProcessURL(context.Background(), "https://example.com")
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.True(t, strings.HasPrefix(err.Error(), "S3 Error: "))
	f.assertWorkspaceEmpty(t)
}

func TestProcessObject(t *testing.T) {
	objects := &fakeObjects{content: "stored bytes"}
	f := newFixture(t, func(d *Dependencies) { d.Objects = objects })

	resp, err := f.gateway.ProcessObject(context.Background(), models.GCSEvent{Bucket: "inbox", Name: "docs/manual.pdf"})
	require.NoError(t, err)

	require.Len(t, f.store.uploads, 1)
	env := f.store.uploads[0].envelope
	assert.Equal(t, "gs://inbox/docs/manual.pdf", env.Source)
	assert.Equal(t, models.ExportKey(env.FileID, models.ObjectExportSuffix), resp.S3Key)
	assert.Equal(t, []string{"stored bytes"}, f.partitioner.seen)
	f.assertWorkspaceEmpty(t)
}

func TestProcessObject_SkipsExports(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Objects = &fakeObjects{} })

	resp, err := f.gateway.ProcessObject(context.Background(), models.GCSEvent{Bucket: "exports-bucket", Name: "exports/abc_export.json"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, f.store.uploads)
}

func TestProcessObject_Disabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.gateway.ProcessObject(context.Background(), models.GCSEvent{Bucket: "inbox", Name: "a.pdf"})
	assert.ErrorIs(t, err, ErrInboxDisabled)
}

func TestProcessObject_DownloadFailure(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Objects = &fakeObjects{err: errors.New("object not found")} })

	_, err := f.gateway.ProcessObject(context.Background(), models.GCSEvent{Bucket: "inbox", Name: "a.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object not found")
	f.assertWorkspaceEmpty(t)
}

func TestLedgerAndNotifier(t *testing.T) {
	ledger := &fakeLedger{}
	f := newFixture(t, func(d *Dependencies) {
		d.Recorder = ledger
		d.Notifier = ledger
	})

	resp, err := f.gateway.ProcessURL(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.Len(t, ledger.records, 1)
	rec := ledger.records[0]
	assert.Equal(t, models.StatusExported, rec.Status)
	assert.Equal(t, resp.S3Key, rec.StorageKey)
	assert.Equal(t, "exports-bucket", rec.Bucket)
	assert.Equal(t, models.SourceTypeURL, rec.SourceType)
	assert.Equal(t, 1, rec.ElementCount)
	assert.Len(t, ledger.notified, 1)

	f.fetcher.err = errors.New("connection refused")
	_, err = f.gateway.ProcessURL(context.Background(), "https://example.com")
	require.Error(t, err)

	require.Len(t, ledger.records, 2)
	assert.Equal(t, models.StatusFailed, ledger.records[1].Status)
	assert.Contains(t, ledger.records[1].ErrorDetails, "connection refused")
	assert.Empty(t, ledger.records[1].StorageKey)
	assert.Len(t, ledger.notified, 1, "failures must not be announced")
}

func TestLedgerFailureDoesNotChangeResult(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("firestore unavailable")}
	f := newFixture(t, func(d *Dependencies) {
		d.Recorder = ledger
		d.Notifier = ledger
	})

	resp, err := f.gateway.ProcessFile(context.Background(), "a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, FileProcessedMessage, resp.Message)
}
