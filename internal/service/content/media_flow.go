package content

import (
	"context"
	"fmt"

	"meridian/internal/domain/services/flowengine"
	objstore "meridian/internal/domain/services/objectstore"
	"meridian/internal/service/content/steps"
)

// UnitArtCreationFlow produces a cover-art image for a unit: an art brief,
// then the rendered image, stored in an objstore.Store (spec.md §4.4.4).
type UnitArtCreationFlow struct {
	GenerateUnitArtDescription *steps.GenerateUnitArtDescription
	GenerateImage              *steps.GenerateImage
	Objects                    objstore.Store
}

// UnitArtResult is the outcome of a successful UnitArtCreationFlow run.
type UnitArtResult struct {
	ImageObjectID string
}

func (f *UnitArtCreationFlow) Run(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (*UnitArtResult, error) {
	flowCtx, err := runtime.RunStep(ctx, flowRunID, f.GenerateUnitArtDescription, input)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, f.GenerateImage, flowCtx)
	if err != nil {
		return nil, err
	}

	imageBytes, ok := flowCtx.Get(steps.KeyImageBytes)
	if !ok {
		return nil, fmt.Errorf("generate image: image_bytes missing from flow context")
	}
	data, ok := imageBytes.([]byte)
	if !ok {
		return nil, fmt.Errorf("generate image: image_bytes has unexpected type")
	}

	id, err := f.Objects.Put(ctx, "image/png", data)
	if err != nil {
		return nil, err
	}
	return &UnitArtResult{ImageObjectID: id}, nil
}

// UnitPodcastFlow produces a narrated podcast for a unit's summary: a
// transcript, then the rendered audio, stored in an objstore.Store.
type UnitPodcastFlow struct {
	GeneratePodcastTranscript *steps.GeneratePodcastTranscript
	GenerateAudio             *steps.GenerateAudio
	Objects                   objstore.Store
}

// PodcastResult is the outcome of a successful podcast flow run.
type PodcastResult struct {
	Transcript      string
	AudioObjectID   string
	DurationSeconds float64
}

func (f *UnitPodcastFlow) Run(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (*PodcastResult, error) {
	return runPodcastFlow(ctx, runtime, flowRunID, input, f.GeneratePodcastTranscript, f.GenerateAudio, f.Objects)
}

// LessonPodcastFlow is the lesson-scoped counterpart of UnitPodcastFlow
// (spec.md §4.4.4 "LessonPodcastFlow"), built from a lesson's didactic
// snippet rather than a unit summary — the step sequence is identical, and
// the caller passes the snippet under the same unit_summary flow context key.
type LessonPodcastFlow struct {
	GeneratePodcastTranscript *steps.GeneratePodcastTranscript
	GenerateAudio             *steps.GenerateAudio
	Objects                   objstore.Store
}

func (f *LessonPodcastFlow) Run(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext) (*PodcastResult, error) {
	return runPodcastFlow(ctx, runtime, flowRunID, input, f.GeneratePodcastTranscript, f.GenerateAudio, f.Objects)
}

func runPodcastFlow(ctx context.Context, runtime flowengine.FlowRuntime, flowRunID string, input flowengine.FlowContext, transcriptStep *steps.GeneratePodcastTranscript, audioStep *steps.GenerateAudio, objects objstore.Store) (*PodcastResult, error) {
	flowCtx, err := runtime.RunStep(ctx, flowRunID, transcriptStep, input)
	if err != nil {
		return nil, err
	}
	flowCtx, err = runtime.RunStep(ctx, flowRunID, audioStep, flowCtx)
	if err != nil {
		return nil, err
	}

	transcript, _ := flowCtx.Get(steps.KeyPodcastTranscript)
	transcriptStr, _ := transcript.(string)

	audioBytes, ok := flowCtx.Get(steps.KeyAudioBytes)
	if !ok {
		return nil, fmt.Errorf("generate audio: audio_bytes missing from flow context")
	}
	data, ok := audioBytes.([]byte)
	if !ok {
		return nil, fmt.Errorf("generate audio: audio_bytes has unexpected type")
	}

	var duration float64
	if d, ok := flowCtx.Get(steps.KeyAudioDurationSec); ok {
		if f, ok := d.(float64); ok {
			duration = f
		}
	}

	id, err := objects.Put(ctx, "audio/mpeg", data)
	if err != nil {
		return nil, err
	}
	return &PodcastResult{Transcript: transcriptStr, AudioObjectID: id, DurationSeconds: duration}, nil
}
