package services

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultUploadName replaces client file names that cannot be used on disk.
const defaultUploadName = "upload"

// workspace is a request-scoped temporary directory. Everything written for
// one ingestion pass lives inside it and is removed by close.
type workspace struct {
	dir string
}

func newWorkspace(root, fileID string) (*workspace, error) {
	dir, err := os.MkdirTemp(root, "ingest-"+fileID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// writeFile copies r into a new file inside the workspace.
func (w *workspace) writeFile(name string, r io.Reader) (string, int64, error) {
	p := w.path(name)
	f, err := os.Create(p)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file at %s: %w", p, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return "", 0, fmt.Errorf("failed to write temp file %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize temp file %s: %w", p, err)
	}
	return p, n, nil
}

func (w *workspace) close() error {
	return os.RemoveAll(w.dir)
}

// sanitizeFilename keeps only the final path element of a client file name.
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return defaultUploadName
	}
	return base
}
