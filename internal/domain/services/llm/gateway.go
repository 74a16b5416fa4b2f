package llm

import "context"

// Gateway is the single chokepoint through which every model call passes
// (spec.md §4.1). Every operation returns the created/updated LLMRequest id
// alongside its typed result, so callers (chiefly Step implementations) can
// thread the id into a FlowStepRun.
type Gateway interface {
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, requestID string, err error)
	GenerateStructured(ctx context.Context, req *StructuredRequest) (*StructuredResponse, requestID string, err error)
	GenerateAudio(ctx context.Context, req *AudioRequest) (*AudioResponse, requestID string, err error)
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, requestID string, err error)
}
