package interact

import "geopanel/map-core/internal/hierarchy"

// Marker is the logical representation of one entity at the currently
// displayed level, ready to draw.
type Marker struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Level      int     `json:"level"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Selected   bool    `json:"selected"`
	SizeFactor float64 `json:"size_factor"`
}

// Renderer is the drawing capability the controller consumes. How pixels
// get drawn is the renderer's business; the controller only emits draw,
// remove, style and tooltip events. DrawMarker doubles as an update for a
// marker that is already on screen.
type Renderer interface {
	DrawMarker(m Marker)
	RemoveMarker(id string)
	SetMarkerSelected(id string, selected bool)
	ShowTooltip(content string, x, y float64)
	HideTooltip()
}

// Callbacks are the events the controller emits to the host UI layer. All
// fields are optional. Callbacks run synchronously inside the controller's
// event handling and must not call back into the controller.
type Callbacks struct {
	OnMarkerClick       func(node *hierarchy.GeoNode, isSelected bool)
	OnMarkerDoubleClick func(node *hierarchy.GeoNode)
	OnSelectionChange   func(nodes []*hierarchy.GeoNode)
	OnZoomLevelChange   func(level int)
	OnFilterChange      func(filters hierarchy.FilterSet)
}
