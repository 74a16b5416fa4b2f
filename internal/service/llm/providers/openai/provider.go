// Package openai adapts go-openai to the Gateway's Provider contract,
// serving the audio (TTS) and image (DALL-E) capabilities that Anthropic
// does not offer (spec.md §4.1 ops 3-4).
package openai

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"meridian/internal/domain"
	domainllm "meridian/internal/domain/services/llm"
)

// Provider implements domainllm.Provider against OpenAI's audio and image
// endpoints.
type Provider struct {
	client *openai.Client
}

// NewProvider creates a new OpenAI provider with the given API key.
func NewProvider(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &Provider{client: openai.NewClient(apiKey)}, nil
}

func (p *Provider) Name() string { return "openai" }

// SupportsModel serves audio for "tts-"-prefixed models and image for
// "dall-e-"-prefixed models; it never serves text or structured.
func (p *Provider) SupportsModel(model string, capability domainllm.Capability) bool {
	switch capability {
	case domainllm.CapabilityAudio:
		return strings.HasPrefix(model, "tts-")
	case domainllm.CapabilityImage:
		return strings.HasPrefix(model, "dall-e-")
	default:
		return false
	}
}

func (p *Provider) GenerateResponse(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	return nil, fmt.Errorf("%w: openai provider does not support text", domain.ErrProviderError)
}

func (p *Provider) GenerateStructured(ctx context.Context, req *domainllm.StructuredRequest) (*domainllm.StructuredResponse, error) {
	return nil, fmt.Errorf("%w: openai provider does not support structured calls", domain.ErrProviderError)
}

func (p *Provider) GenerateAudio(ctx context.Context, req *domainllm.AudioRequest) (*domainllm.AudioResponse, error) {
	model := req.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := openai.SpeechVoice(req.Voice)
	if voice == "" {
		voice = openai.VoiceAlloy
	}
	format := openai.SpeechResponseFormat(req.AudioFormat)
	if format == "" {
		format = openai.SpeechResponseFormatMp3
	}

	ttsReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
	}
	if req.Speed != nil {
		ttsReq.Speed = *req.Speed
	}

	resp, err := p.client.CreateSpeech(ctx, ttsReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai speech call failed: %v", domain.ErrTransport, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read speech audio: %v", domain.ErrTransport, err)
	}

	return &domainllm.AudioResponse{
		Audio:    audio,
		Model:    model,
		Provider: p.Name(),
	}, nil
}

func (p *Provider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (*domainllm.ImageResponse, error) {
	size := req.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	quality := req.Quality
	if quality == "" {
		quality = openai.CreateImageQualityStandard
	}

	imgReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          openai.CreateImageModelDallE3,
		Size:           size,
		Quality:        quality,
		Style:          req.Style,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}

	resp, err := p.client.CreateImage(ctx, imgReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai image call failed: %v", domain.ErrTransport, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no image", domain.ErrInvalidResponse)
	}

	return &domainllm.ImageResponse{
		ImageURL:      resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
		Model:         imgReq.Model,
		Provider:      p.Name(),
	}, nil
}
