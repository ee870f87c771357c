package httpapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/quasaranchor/anchor/core/toml"
)

// DiscoveryModule mounts the SEP-1 discovery document (spec.md §6.1).
type DiscoveryModule struct {
	publisher *toml.Publisher
}

// NewDiscoveryModule builds a DiscoveryModule serving publisher's
// rendered document.
func NewDiscoveryModule(publisher *toml.Publisher) *DiscoveryModule {
	return &DiscoveryModule{publisher: publisher}
}

// Register mounts GET /.well-known/stellar.toml.
func (m *DiscoveryModule) Register(r chi.Router) {
	r.Get("/.well-known/stellar.toml", m.publisher.Handler())
}
