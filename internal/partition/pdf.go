package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// splitPDFPages validates and optimizes the PDF at path, then writes one file
// per page next to it. The returned cleanup removes every page file.
func splitPDFPages(path string) ([]string, func(), error) {
	pagesDir, err := os.MkdirTemp(filepath.Dir(path), "pages-*")
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to create pages dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(pagesDir) }

	optimizedPdfPath := filepath.Join(pagesDir, "optimized.pdf")
	if err := optimizePDF(path, optimizedPdfPath); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimizedPdfPath)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := api.SplitFile(optimizedPdfPath, pagesDir, 1, nil); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to split PDF: %w", err)
	}

	splitFileBase := strings.TrimSuffix(optimizedPdfPath, filepath.Ext(optimizedPdfPath))
	pages := make([]string, pageCount)
	for i := range pages {
		pages[i] = fmt.Sprintf("%s_%d.pdf", splitFileBase, i+1)
	}
	return pages, cleanup, nil
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}
