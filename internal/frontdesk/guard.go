package frontdesk

import "sync"

// guards rejects a second submission of the same operation from the same
// session while the first is pending. Nothing is queued.
type guards struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func newGuards() *guards {
	return &guards{inflight: map[string]struct{}{}}
}

func (g *guards) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return nil, ErrOperationInProgress
	}
	g.inflight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}, nil
}

func (g *guards) busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[key]
	return ok
}
