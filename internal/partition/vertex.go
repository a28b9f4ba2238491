package partition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/ingestiongateway/internal/gcp"
	"github.com/Lllllllleong/ingestiongateway/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultPageConcurrency bounds concurrent page requests for a single PDF.
const DefaultPageConcurrency = 4

// ErrModelRequired is returned when no generative model is provided.
var ErrModelRequired = errors.New("generative model required")

// ContentGenerator is the subset of *genai.GenerativeModel used for partitioning.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexPartitioner partitions documents with a Gemini model on Vertex AI.
// PDFs are split into single pages which are partitioned concurrently.
type VertexPartitioner struct {
	model           ContentGenerator
	pageConcurrency int
	logger          *slog.Logger
}

// parsedElement is the structure of the JSON objects we expect from the model.
type parsedElement struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewVertexPartitioner wraps a configured model such as gcp.VertexClient.PartitionerModel.
func NewVertexPartitioner(model ContentGenerator, pageConcurrency int, logger *slog.Logger) (*VertexPartitioner, error) {
	if model == nil {
		return nil, ErrModelRequired
	}
	if pageConcurrency < 1 {
		pageConcurrency = DefaultPageConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VertexPartitioner{model: model, pageConcurrency: pageConcurrency, logger: logger}, nil
}

// PartitionFile implements Partitioner.
func (p *VertexPartitioner) PartitionFile(ctx context.Context, path string) ([]models.Element, error) {
	filename := filepath.Base(path)
	filetype := MIMEType(filename)
	logCtx := p.logger.With("filename", filename, "filetype", filetype)

	if filetype != "application/pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		parsed, err := p.generate(ctx, genai.Blob{MIMEType: filetype, Data: data})
		if err != nil {
			logCtx.Error("Call to Vertex AI for partitioning failed", "error", err)
			return nil, err
		}
		return toElements(parsed, filename, filetype, 0), nil
	}

	pages, cleanup, err := splitPDFPages(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	logCtx.Info("PDF split into pages.", "pageCount", len(pages))

	results := make([][]models.Element, len(pages))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.pageConcurrency)
	for i, pagePath := range pages {
		pageNumber := i + 1
		eg.Go(func() error {
			data, err := os.ReadFile(pagePath)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			parsed, err := p.generate(gctx, genai.Blob{MIMEType: filetype, Data: data})
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			results[pageNumber-1] = toElements(parsed, filename, filetype, pageNumber)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("One or more pages failed to partition", "error", err)
		return nil, err
	}

	var elements []models.Element
	for _, pageElements := range results {
		elements = append(elements, pageElements...)
	}
	return elements, nil
}

// PartitionText implements Partitioner.
func (p *VertexPartitioner) PartitionText(ctx context.Context, text string) ([]models.Element, error) {
	parsed, err := p.generate(ctx, genai.Text(text))
	if err != nil {
		p.logger.Error("Call to Vertex AI for text partitioning failed", "error", err)
		return nil, err
	}
	return toElements(parsed, "", "text/plain", 0), nil
}

func (p *VertexPartitioner) generate(ctx context.Context, content genai.Part) ([]parsedElement, error) {
	resp, err := p.model.GenerateContent(ctx, content, genai.Text(gcp.PartitionerUserPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate elements from gemini: %w", err)
	}

	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		p.logger.Warn("No content extracted from partition response. Treating as empty.")
		return nil, nil
	}

	var parsed []parsedElement
	if err := json.Unmarshal([]byte(jsonString), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return parsed, nil
}

// extractJSONContent gets the raw text content from the model response.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var contentBuilder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			contentBuilder.WriteString(string(txt))
		}
	}
	// Clean potential markdown fences just in case
	cleanJSON := strings.TrimSpace(contentBuilder.String())
	cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
	cleanJSON = strings.TrimPrefix(cleanJSON, "```")
	cleanJSON = strings.TrimSuffix(cleanJSON, "```")
	return strings.TrimSpace(cleanJSON)
}

func toElements(parsed []parsedElement, filename, filetype string, pageNumber int) []models.Element {
	elements := make([]models.Element, 0, len(parsed))
	for i, pe := range parsed {
		elementType := pe.Type
		if elementType == "" {
			elementType = "UncategorizedText"
		}
		metadata := map[string]any{"filetype": filetype}
		if filename != "" {
			metadata["filename"] = filename
		}
		if pageNumber > 0 {
			metadata["page_number"] = pageNumber
		}
		elements = append(elements, models.Element{
			Type:      elementType,
			ElementID: elementID(filename, pageNumber, i, pe.Text),
			Text:      pe.Text,
			Metadata:  metadata,
		})
	}
	return elements
}

func elementID(filename string, pageNumber, index int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", filename, pageNumber, index, text)))
	return hex.EncodeToString(sum[:])[:32]
}
