package window

import "sync"

// Memo caches index maps by geometry key. It is safe for concurrent use.
// A nil *Memo computes every map afresh.
type Memo struct {
	mu       sync.Mutex
	limit    int
	forward  map[string]*IndexMap
	inverse  map[string]*InverseMap
	hits     int
	requests int
}

// DefaultMemoLimit bounds the number of geometries kept by NewMemo(0).
const DefaultMemoLimit = 256

// NewMemo returns a memo holding at most limit geometries. When full, it is
// emptied before the next insertion.
func NewMemo(limit int) *Memo {
	if limit <= 0 {
		limit = DefaultMemoLimit
	}
	return &Memo{
		limit:   limit,
		forward: make(map[string]*IndexMap),
		inverse: make(map[string]*InverseMap),
	}
}

// IndexMap returns the memoised forward map of g.
func (m *Memo) IndexMap(g *Geometry) *IndexMap {
	if m == nil {
		return g.IndexMap()
	}
	key := g.Key()

	m.mu.Lock()
	m.requests++
	if im, ok := m.forward[key]; ok {
		m.hits++
		m.mu.Unlock()
		return im
	}
	m.mu.Unlock()

	im := g.IndexMap()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.forward) >= m.limit {
		clear(m.forward)
		clear(m.inverse)
	}
	m.forward[key] = im
	return im
}

// Inverse returns the memoised inverse map of g.
func (m *Memo) Inverse(g *Geometry) *InverseMap {
	if m == nil {
		return g.IndexMap().Inverse()
	}
	key := g.Key()

	m.mu.Lock()
	if inv, ok := m.inverse[key]; ok {
		m.mu.Unlock()
		return inv
	}
	m.mu.Unlock()

	inv := m.IndexMap(g).Inverse()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inverse) >= m.limit {
		clear(m.inverse)
	}
	m.inverse[key] = inv
	return inv
}

// Stats returns the number of forward lookups and how many were served from cache.
func (m *Memo) Stats() (requests, hits int) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests, m.hits
}
