package llm

import "context"

// VisionRequest carries one image plus the instruction for the model.
type VisionRequest struct {
	ImageBytes  []byte
	ContentType string // e.g. "image/jpeg"
	Prompt      string // system prompt; empty means DefaultSystemPrompt
}

// VisionClient is the interface the pipeline depends on. AnalyzeImage returns
// the raw text content of the model's reply; callers own parsing.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, req VisionRequest) (string, error)
	// RunPrompt sends a text-only prompt and returns the raw reply. Used by
	// the categorization batch and the connectivity probe.
	RunPrompt(ctx context.Context, prompt string) (string, error)
}
