package hierarchy

import (
	"encoding/json"

	"geopanel/map-core/internal/projection"
)

// Well-known property keys. Properties are a multimap but consumers only
// ever read the first value for a key.
const (
	PropCategoryValue = "CategoryValue"
	PropCategoryName  = "CategoryName"
)

// Semantic hierarchy levels recognised by the map.
const (
	LevelRegion = 1
	LevelSub    = 2
	LevelSite   = 3
)

// Property is one key/value pair on a node.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Geometry carries a node's geographic position as a (longitude, latitude)
// pair. It is required for the node to be displayable, optional for the node
// to exist in the tree.
type Geometry struct {
	Coordinates []float64 `json:"coordinates"`
}

// GeoNode is one entity in the region -> sub-region -> site tree. Children
// are owned exclusively by their parent; the structure is strictly a tree.
type GeoNode struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Properties []Property `json:"properties,omitempty"`
	Geometry   *Geometry  `json:"geometry,omitempty"`
	Children   []*GeoNode `json:"children,omitempty"`
}

// Data is the root payload supplied by the data producer.
type Data struct {
	GeoLocations []*GeoNode `json:"GeoLocations"`
}

// ParseData decodes a root data payload.
func ParseData(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Property returns the first value for key, matching the first-match-wins
// read rule for the property multimap.
func (n *GeoNode) Property(key string) (string, bool) {
	for _, p := range n.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Coordinate returns the node's geographic position. ok is false when the
// node has no geometry or the pair is incomplete or out of domain; such
// nodes exist in the tree but cannot be displayed.
func (n *GeoNode) Coordinate() (projection.Coordinate, bool) {
	if n.Geometry == nil || len(n.Geometry.Coordinates) < 2 {
		return projection.Coordinate{}, false
	}
	c := projection.Coordinate{
		Lon: n.Geometry.Coordinates[0],
		Lat: n.Geometry.Coordinates[1],
	}
	if !c.Valid() {
		return projection.Coordinate{}, false
	}
	return c, true
}

// IsLeaf reports whether the node has no children.
func (n *GeoNode) IsLeaf() bool { return len(n.Children) == 0 }

// regionValue is the value the region filter matches against for a level-1
// node: the CategoryValue property when present, else the label.
func regionValue(n *GeoNode) string {
	if v, ok := n.Property(PropCategoryValue); ok {
		return v
	}
	return n.Label
}

// clone copies the node without its children.
func (n *GeoNode) clone() *GeoNode {
	out := &GeoNode{
		ID:    n.ID,
		Label: n.Label,
	}
	if n.Properties != nil {
		out.Properties = make([]Property, len(n.Properties))
		copy(out.Properties, n.Properties)
	}
	if n.Geometry != nil {
		coords := make([]float64, len(n.Geometry.Coordinates))
		copy(coords, n.Geometry.Coordinates)
		out.Geometry = &Geometry{Coordinates: coords}
	}
	return out
}
