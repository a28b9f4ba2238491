// Package partition turns raw documents and text into structured elements
// by delegating to an external partitioning backend.
package partition

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/ingestiongateway/internal/models"
)

// Partitioner extracts ordered elements from a file on disk or from raw text.
type Partitioner interface {
	PartitionFile(ctx context.Context, path string) ([]models.Element, error)
	PartitionText(ctx context.Context, text string) ([]models.Element, error)
}

// documentTypes covers extensions that are missing from the platform MIME table.
var documentTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".rtf":      "text/rtf",
	".eml":      "message/rfc822",
	".pdf":      "application/pdf",
	".html":     "text/html",
	".htm":      "text/html",
	".xml":      "application/xml",
	".json":     "application/json",
	".doc":      "application/msword",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":      "application/vnd.ms-powerpoint",
	".pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xls":      "application/vnd.ms-excel",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".odt":      "application/vnd.oasis.opendocument.text",
	".epub":     "application/epub+zip",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".tiff":     "image/tiff",
	".heic":     "image/heic",
}

// MIMEType returns the media type for a file name without parameters.
func MIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := documentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mediaType, _, _ := strings.Cut(t, ";")
		return strings.TrimSpace(mediaType)
	}
	return "application/octet-stream"
}
