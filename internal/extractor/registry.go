package extractor

import (
	"sync"

	"github.com/level10nurd/documentExtraction/internal/models"
)

// Extractor reads a vendor's invoice text into a record
type Extractor interface {
	Vendor() models.Vendor
	Extract(text, filename string) *models.Record
}

// Registry maps vendors to extractors
type Registry struct {
	mu         sync.RWMutex
	extractors map[models.Vendor]Extractor
}

// NewEmptyRegistry creates a registry without extractors
func NewEmptyRegistry() *Registry {
	return &Registry{extractors: make(map[models.Vendor]Extractor)}
}

// NewRegistry creates a registry holding the built-in rule extractors
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, rules := range VendorRules() {
		r.Register(NewRuleExtractor(rules))
	}
	return r
}

// Register adds or replaces the extractor for its vendor
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Vendor()] = e
}

// Get returns the extractor for vendor
func (r *Registry) Get(vendor models.Vendor) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[vendor]
	return e, ok
}

// Supported lists the vendors with an extractor, in the fixed vendor order
func (r *Registry) Supported() []models.Vendor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Vendor
	for _, v := range models.KnownVendors() {
		if _, ok := r.extractors[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
