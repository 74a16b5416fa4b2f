// Package sourcematerial sanitizes and normalizes HTML source_material
// supplied by the (external, out-of-scope) learner-resource ingestion
// pipeline before it is fed to a step prompt, grounded in the teacher's
// docsystem HTML converter/sanitizer pair.
package sourcematerial

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"

	"meridian/internal/config"
	"meridian/internal/domain"
)

// Normalizer strips dangerous HTML and converts what remains to markdown.
// The orchestrator applies it to caller-supplied source_material only;
// material written by GenerateSourceMaterial is not passed through it.
type Normalizer struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

// NewNormalizer builds a Normalizer with a UGC sanitization policy — the
// same balance of safety and formatting fidelity the teacher's own
// HTMLSanitizer uses.
func NewNormalizer() *Normalizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &Normalizer{
		policy:    policy,
		converter: md.NewConverter("", true, nil),
	}
}

// Normalize sanitizes html and converts it to markdown, enforcing
// config.MaxSourceMaterialLength on the result.
func (n *Normalizer) Normalize(html string) (string, error) {
	sanitized := n.policy.Sanitize(html)

	markdown, err := n.converter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("%w: convert source material to markdown: %v", domain.ErrInternal, err)
	}

	if len(markdown) > config.MaxSourceMaterialLength {
		return "", fmt.Errorf("%w: source_material exceeds %d characters", domain.ErrValidation, config.MaxSourceMaterialLength)
	}
	return markdown, nil
}
