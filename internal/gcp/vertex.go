package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultPartitionModel is used when VERTEX_AI_MODEL is not set.
const DefaultPartitionModel = "gemini-1.5-pro"

// --- Partitioner Model Prompts ---
const PartitionerSystemPrompt = "You are a document partitioning tool. Your task is to break a document into its structural elements and return them as a valid JSON array. Accuracy and information preservation are of utmost importance."
const PartitionerUserPrompt = `Partition the provided content into an ordered list of document elements.

Follow these rules precisely:
1.  Walk the content in reading order and emit one JSON object per element.
2.  Each JSON object must have exactly two keys:
    - "type": one of "Title", "NarrativeText", "ListItem", "Table", "Image", "Header", "Footer", "Address", "EmailAddress", "FigureCaption", "Formula", "PageBreak", "UncategorizedText".
    - "text": the full text of the element. Tables are rendered as markdown tables. Images are replaced by a detailed description of their content.
3.  Do not summarize, merge or drop content. Headers and footers are kept with their own types.
4.  The final output MUST be a single, valid JSON array of these objects. Do not include any text before or after the JSON array.

Example output format:
[
  {"type": "Title", "text": "1. Introduction"},
  {"type": "NarrativeText", "text": "This is the full text of the first paragraph..."},
  {"type": "ListItem", "text": "First bullet point"}
]`

// VertexClient holds the pre-configured partitioning model.
type VertexClient struct {
	PartitionerModel *genai.GenerativeModel
	baseClient       *genai.Client
}

// NewVertexClient creates a new client holding the partitioning model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultPartitionModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	partitionerModel := baseClient.GenerativeModel(modelName)
	partitionerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(PartitionerSystemPrompt)},
	}
	partitionerModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	partitionerModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		PartitionerModel: partitionerModel,
		baseClient:       baseClient,
	}, nil
}

// Close releases the underlying genai client.
func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
