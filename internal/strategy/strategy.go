package strategy

import (
	"github.com/proxykit/reverseproxy/internal/backend"
)

// Strategy picks one backend from a non-empty list of healthy candidates.
// Implementations must return nil when the list is empty.
type Strategy interface {
	SelectBackend(backends []*backend.Backend) *backend.Backend
}
