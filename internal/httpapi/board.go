package httpapi

import (
	"sync"

	"geopanel/map-core/internal/interact"
)

// Board is the renderer the HTTP surface hands to the controller: it keeps
// the live marker set the controller draws into and serves it as JSON. It
// has its own lock because the controller emits draw events from timer
// callbacks as well as request handlers.
type Board struct {
	mu      sync.Mutex
	markers map[string]interact.Marker
	order   []string

	tooltip        string
	tooltipVisible bool
}

func NewBoard() *Board {
	return &Board{markers: make(map[string]interact.Marker)}
}

func (b *Board) DrawMarker(m interact.Marker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.markers[m.ID]; !ok {
		b.order = append(b.order, m.ID)
	}
	b.markers[m.ID] = m
}

func (b *Board) RemoveMarker(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.markers[id]; !ok {
		return
	}
	delete(b.markers, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Board) SetMarkerSelected(id string, selected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.markers[id]
	if !ok {
		return
	}
	m.Selected = selected
	b.markers[id] = m
}

func (b *Board) ShowTooltip(content string, x, y float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tooltip = content
	b.tooltipVisible = true
}

func (b *Board) HideTooltip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tooltipVisible = false
}

// Tooltip returns the current tooltip content and whether it is shown.
func (b *Board) Tooltip() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tooltip, b.tooltipVisible
}

// Markers returns the marker set in draw order.
func (b *Board) Markers() []interact.Marker {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interact.Marker, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.markers[id])
	}
	return out
}
