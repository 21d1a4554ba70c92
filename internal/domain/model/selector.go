package model

import (
	"fmt"

	"github.com/rs/zerolog"

	"scribe-server/internal/infrastructure/logger"
)

// NoModelAvailableError means no catalog entry with usable credentials could
// serve the request. The message tells the operator what to fix.
type NoModelAvailableError struct {
	NeedsVision bool
}

func (e *NoModelAvailableError) Error() string {
	if e.NeedsVision {
		return "no vision-capable models available, configure an API key for a provider with a vision model"
	}
	return "no models available, configure at least one provider API key"
}

// VisionRequiredError rejects an explicit model choice that cannot read the
// attached image. Only raised in strict mode.
type VisionRequiredError struct {
	Model string
}

func (e *VisionRequiredError) Error() string {
	return fmt.Sprintf("model %q does not support image input", e.Model)
}

// Selector picks the model for a request: an explicit user choice wins when
// usable, otherwise preference-ordered fallbacks, otherwise any available
// model of the right capability.
type Selector struct {
	registry      *Registry
	creds         CredentialChecker
	defaultText   string
	defaultVision string
	strictVision  bool
}

func NewSelector(registry *Registry, creds CredentialChecker, defaultText, defaultVision string, strictVision bool) *Selector {
	return &Selector{
		registry:      registry,
		creds:         creds,
		defaultText:   defaultText,
		defaultVision: defaultVision,
		strictVision:  strictVision,
	}
}

// fallback preference orders, the default model first. Stable known-good
// models across providers so a single missing key never stalls intake.
func (s *Selector) visionFallbacks() []string {
	return []string{
		s.defaultVision,
		"gemini/gemini-2.0-flash-exp",
		"gemini/gemini-1.5-flash",
		"gemini/gemini-1.5-pro",
		"openai/gpt-4o-mini",
		"openai/gpt-4o",
		"anthropic/claude-3-5-sonnet-20241022",
	}
}

func (s *Selector) textFallbacks() []string {
	return []string{
		s.defaultText,
		"gemini/gemini-2.0-flash-exp",
		"gemini/gemini-1.5-flash",
		"gemini/gemini-1.5-pro",
		"openai/gpt-4o-mini",
		"anthropic/claude-3-5-haiku-20241022",
	}
}

// Select resolves the model id for a request.
//
// An explicit user choice is honored when the model exists and its provider
// has credentials. Choosing a text-only model for an image request is a
// warning unless strict vision is on, which turns it into an error. An
// unusable choice falls through to automatic selection.
func (s *Selector) Select(hasImage bool, userChoice string) (string, error) {
	log := logger.GetLogger()

	if userChoice != "" {
		meta, ok := s.registry.Lookup(userChoice)
		if ok && s.creds.IsProviderAvailable(meta.Provider) {
			if hasImage && !meta.SupportsVision {
				if s.strictVision {
					return "", &VisionRequiredError{Model: userChoice}
				}
				log.Warn().
					Str("model", userChoice).
					Msg("selected model does not support images, request may fail")
			}
			return userChoice, nil
		}
		log.Warn().
			Str("model", userChoice).
			Msg("selected model not available, falling back to automatic selection")
	}

	if hasImage {
		return s.selectVision(log)
	}
	return s.selectText(log)
}

func (s *Selector) selectVision(log zerolog.Logger) (string, error) {
	visionModels := s.registry.VisionModels()
	if len(visionModels) == 0 {
		return "", &NoModelAvailableError{NeedsVision: true}
	}

	available := idSet(visionModels)
	for _, candidate := range s.visionFallbacks() {
		if available[candidate] {
			if candidate != s.defaultVision {
				log.Info().Str("model", candidate).Msg("using fallback vision model")
			}
			return candidate, nil
		}
	}

	log.Info().Str("model", visionModels[0].ID).Msg("using first available vision model")
	return visionModels[0].ID, nil
}

func (s *Selector) selectText(log zerolog.Logger) (string, error) {
	availableAll := s.registry.Available()
	if len(availableAll) == 0 {
		return "", &NoModelAvailableError{}
	}

	available := idSet(availableAll)
	for _, candidate := range s.textFallbacks() {
		if available[candidate] {
			if candidate != s.defaultText {
				log.Info().Str("model", candidate).Msg("using fallback text model")
			}
			return candidate, nil
		}
	}

	if textModels := s.registry.TextModels(); len(textModels) > 0 {
		log.Info().Str("model", textModels[0].ID).Msg("using first available text model")
		return textModels[0].ID, nil
	}

	log.Info().Str("model", availableAll[0].ID).Msg("using first available model")
	return availableAll[0].ID, nil
}

func idSet(models []Descriptor) map[string]bool {
	set := make(map[string]bool, len(models))
	for _, m := range models {
		set[m.ID] = true
	}
	return set
}
