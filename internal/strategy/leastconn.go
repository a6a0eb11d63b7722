package strategy

import (
	"math"

	"github.com/proxykit/reverseproxy/internal/backend"
)

type leastConnStrategy struct{}

func (l *leastConnStrategy) SelectBackend(backends []*backend.Backend) *backend.Backend {
	if len(backends) == 0 {
		return nil
	}

	var chosen *backend.Backend
	best := math.MaxInt32

	for _, b := range backends {
		if conns := b.ActiveConnections(); conns < best {
			best = conns
			chosen = b
		}
	}

	return chosen
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}
