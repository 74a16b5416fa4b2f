package pricing

// ModelPrice is the per-million-token (or per-unit, for audio/image) cost of
// one model, keyed by provider+model in the embedded registry.
type ModelPrice struct {
	DisplayName        string  `yaml:"display_name"`
	InputPerMillion     float64 `yaml:"input_per_million"`
	OutputPerMillion    float64 `yaml:"output_per_million"`
	// AudioPerMinute prices audio generation, billed per minute synthesized.
	AudioPerMinute      float64 `yaml:"audio_per_minute"`
	// ImageFlatRate prices one image generation call.
	ImageFlatRate       float64 `yaml:"image_flat_rate"`
}

// ProviderPrices is every priced model of one provider.
type ProviderPrices struct {
	Provider string                `yaml:"provider"`
	Models   map[string]ModelPrice `yaml:"models"`
}
