package content

import (
	"context"

	"meridian/internal/domain/models"
	"meridian/internal/domain/services/flowengine"
	"meridian/internal/service/content/steps"
)

// LessonCreationFlow runs one lesson's artifact-generation steps of
// spec.md §4.4.2, in either the standard (discrete-step) or fast
// (combined-call) variant.
type LessonCreationFlow struct {
	ExtractLessonMetadata    *steps.ExtractLessonMetadata
	GenerateMisconceptionBank *steps.GenerateMisconceptionBank
	GenerateDidacticSnippet   *steps.GenerateDidacticSnippet
	GenerateGlossary          *steps.GenerateGlossary
	GenerateMCQs              *steps.GenerateMCQs
	GenerateShortAnswers      *steps.GenerateShortAnswers
	FastLessonMetadata        *steps.FastLessonMetadata
}

// Run drives the lesson's step sequence against flowRunID, selecting the
// standard or fast variant per models.FlowType.
func (f *LessonCreationFlow) Run(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, flowType models.FlowType, input flowengine.FlowContext) (flowengine.FlowContext, error) {
	if flowType == models.FlowTypeFast {
		return f.runFast(ctx, runtime, flowRunID, input)
	}
	return f.runStandard(ctx, runtime, flowRunID, input)
}

func (f *LessonCreationFlow) runStandard(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (flowengine.FlowContext, error) {
	flowCtx, err := runtime.RunStep(ctx, flowRunID, f.ExtractLessonMetadata, input)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateMisconceptionBank, flowCtx)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateDidacticSnippet, flowCtx)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateGlossary, flowCtx)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateMCQs, flowCtx)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateShortAnswers, flowCtx)
	if err != nil {
		return nil, err
	}
	return flowCtx, nil
}

func (f *LessonCreationFlow) runFast(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (flowengine.FlowContext, error) {
	flowCtx, err := runtime.RunStep(ctx, flowRunID, f.FastLessonMetadata, input)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateMCQs, flowCtx)
	if err != nil {
		return nil, err
	}
	return flowCtx, nil
}
