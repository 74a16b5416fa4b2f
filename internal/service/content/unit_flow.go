// Package content implements the Content Orchestrator of spec.md §4.4: the
// domain-aware composition of flows that turns a unit request into a
// persisted Unit and its Lessons.
package content

import (
	"context"

	"meridian/internal/domain/services/flowengine"
	"meridian/internal/service/content/steps"
)

// UnitCreationFlow runs the unit-plan steps of spec.md §4.4.1: an optional
// source-material synthesis, metadata extraction, and an optional podcast
// summary.
type UnitCreationFlow struct {
	GenerateSourceMaterial *steps.GenerateSourceMaterial
	ExtractUnitMetadata    *steps.ExtractUnitMetadata
	GenerateUnitSummary    *steps.GenerateUnitSummary
}

// Run drives the flow's steps in order against flowRunID, which the caller
// must have already started via FlowRuntime.StartFlow.
func (f *UnitCreationFlow) Run(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (flowengine.FlowContext, error) {
	flowCtx := input

	if _, ok := flowCtx.Get(steps.KeySourceMaterial); !ok {
		next, err := runtime.RunStep(ctx, flowRunID, f.GenerateSourceMaterial, flowCtx)
		if err != nil {
			return nil, err
		}
		flowCtx = next
	}

	flowCtx, err := runtime.RunStep(ctx, flowRunID, f.ExtractUnitMetadata, flowCtx)
	if err != nil {
		return nil, err
	}

	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateUnitSummary, flowCtx)
	if err != nil {
		return nil, err
	}

	return flowCtx, nil
}
