package pricing

import "testing"

func TestNewRegistry_LoadsEmbeddedProviders(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	for _, tc := range []struct {
		provider, model string
	}{
		{"anthropic", "claude-sonnet-4-5-20250929"},
		{"openai", "tts-1"},
		{"lorem", "lorem-text"},
	} {
		if _, ok := r.Price(tc.provider, tc.model); !ok {
			t.Errorf("expected %s/%s to be priced", tc.provider, tc.model)
		}
	}
}

func TestPrice_UnknownProviderOrModel(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	if _, ok := r.Price("not-a-provider", "whatever"); ok {
		t.Error("expected unknown provider to report not found")
	}
	if _, ok := r.Price("anthropic", "not-a-model"); ok {
		t.Error("expected unknown model to report not found")
	}
}

func TestTextCost(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// claude-haiku-4-5-20251001: $0.80/$4.00 per million input/output tokens.
	got := r.TextCost("anthropic", "claude-haiku-4-5-20251001", 1_000_000, 1_000_000)
	want := 0.80 + 4.00
	if got != want {
		t.Errorf("TextCost = %v, want %v", got, want)
	}

	if got := r.TextCost("unknown", "unknown", 1_000_000, 1_000_000); got != 0 {
		t.Errorf("TextCost for unpriced model = %v, want 0", got)
	}
}

func TestAudioCost(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	// tts-1: $0.015/minute, so 120 seconds = 2 minutes = $0.03.
	got := r.AudioCost("openai", "tts-1", 120)
	want := 0.03
	if got != want {
		t.Errorf("AudioCost = %v, want %v", got, want)
	}
}

func TestImageCost(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	got := r.ImageCost("openai", "dall-e-3")
	want := 0.040
	if got != want {
		t.Errorf("ImageCost = %v, want %v", got, want)
	}

	if got := r.ImageCost("lorem", "lorem-image"); got != 0 {
		t.Errorf("ImageCost for a model with no image_flat_rate = %v, want 0", got)
	}
}
