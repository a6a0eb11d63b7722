package strategy

import (
	"sync/atomic"

	"github.com/proxykit/reverseproxy/internal/backend"
)

type roundRobinStrategy struct {
	current atomic.Uint64
}

func (rr *roundRobinStrategy) SelectBackend(backends []*backend.Backend) *backend.Backend {
	if len(backends) == 0 {
		return nil
	}

	n := rr.current.Add(1)
	return backends[(n-1)%uint64(len(backends))]
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{}
}
