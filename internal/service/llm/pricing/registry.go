// Package pricing loads the embedded per-model cost table used to compute
// LLMRequest.cost_estimate and the FlowRun/FlowStepRun cost roll-ups
// (spec.md §3, §4.1).
package pricing

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry holds every provider's priced models, loaded once at startup.
type Registry struct {
	providers map[string]*ProviderPrices
	mu        sync.RWMutex
}

// NewRegistry loads the embedded per-provider YAML price lists.
func NewRegistry() (*Registry, error) {
	r := &Registry{providers: make(map[string]*ProviderPrices)}

	entries, err := configFiles.ReadDir("config")
	if err != nil {
		return nil, fmt.Errorf("read pricing config dir: %w", err)
	}
	for _, entry := range entries {
		if err := r.loadFile(entry.Name()); err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
	}
	return r, nil
}

func (r *Registry) loadFile(filename string) error {
	data, err := configFiles.ReadFile("config/" + filename)
	if err != nil {
		return err
	}
	var prices ProviderPrices
	if err := yaml.Unmarshal(data, &prices); err != nil {
		return err
	}

	r.mu.Lock()
	r.providers[prices.Provider] = &prices
	r.mu.Unlock()
	return nil
}

// Price returns the priced model, or false if neither the provider nor
// model is registered (in which case callers should treat cost as zero
// rather than fail the call).
func (r *Registry) Price(provider, model string) (ModelPrice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerPrices, ok := r.providers[provider]
	if !ok {
		return ModelPrice{}, false
	}
	price, ok := providerPrices.Models[model]
	return price, ok
}

// TextCost estimates the dollar cost of a text/structured call from its
// token counts, per spec.md §4.1 "cost_estimate ... computed from a
// per-model pricing table".
func (r *Registry) TextCost(provider, model string, inputTokens, outputTokens int) float64 {
	price, ok := r.Price(provider, model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*price.InputPerMillion +
		float64(outputTokens)/1_000_000*price.OutputPerMillion
}

// AudioCost estimates the dollar cost of a synthesized audio clip.
func (r *Registry) AudioCost(provider, model string, durationSeconds float64) float64 {
	price, ok := r.Price(provider, model)
	if !ok {
		return 0
	}
	return durationSeconds / 60 * price.AudioPerMinute
}

// ImageCost returns the flat per-call cost of one image generation.
func (r *Registry) ImageCost(provider, model string) float64 {
	price, ok := r.Price(provider, model)
	if !ok {
		return 0
	}
	return price.ImageFlatRate
}
