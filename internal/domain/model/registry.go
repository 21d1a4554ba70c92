package model

import (
	"sort"

	"scribe-server/internal/utils/functional"
)

// CredentialChecker reports whether a provider, named by its canonical id,
// has usable credentials configured.
type CredentialChecker interface {
	IsProviderAvailable(provider string) bool
}

// Registry is the immutable view over the model catalog. Availability is
// evaluated per call so credential changes between restarts never need cache
// invalidation.
type Registry struct {
	models []Descriptor
	creds  CredentialChecker
}

func NewRegistry(models []Descriptor, creds CredentialChecker) *Registry {
	sorted := make([]Descriptor, len(models))
	copy(sorted, models)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DisplayProvider != sorted[j].DisplayProvider {
			return sorted[i].DisplayProvider < sorted[j].DisplayProvider
		}
		return sorted[i].Name < sorted[j].Name
	})
	return &Registry{models: sorted, creds: creds}
}

// All returns every catalog entry regardless of credentials.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.models))
	copy(out, r.models)
	return out
}

// Available returns the entries whose provider has configured credentials.
func (r *Registry) Available() []Descriptor {
	return functional.Filter(r.models, func(m Descriptor) bool {
		return r.creds.IsProviderAvailable(m.Provider)
	})
}

// Lookup finds a catalog entry by id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return Descriptor{}, false
}

// VisionModels returns the available vision-capable entries.
func (r *Registry) VisionModels() []Descriptor {
	return r.byVision(true)
}

// TextModels returns the available entries without vision support.
func (r *Registry) TextModels() []Descriptor {
	return r.byVision(false)
}

func (r *Registry) byVision(vision bool) []Descriptor {
	return functional.Filter(r.Available(), func(m Descriptor) bool {
		return m.SupportsVision == vision
	})
}
