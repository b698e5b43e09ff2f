package hierarchy

import (
	"fmt"
	"math"
)

// ValidationError locates one structural problem in a tree.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult collects every error found; validation never
// short-circuits on the first problem.
type ValidationResult struct {
	Errors []ValidationError `json:"errors"`
}

// Valid reports whether the tree passed with zero errors.
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Validate checks every node for a non-empty id and label and a displayable
// coordinate pair, recursing through children. Each error carries a
// path-like locator into the forest.
func Validate(forest []*GeoNode) ValidationResult {
	var res ValidationResult
	for i, n := range forest {
		validateNode(n, fmt.Sprintf("GeoLocations[%d]", i), &res)
	}
	return res
}

func validateNode(n *GeoNode, path string, res *ValidationResult) {
	if n == nil {
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: "node is nil"})
		return
	}
	if n.ID == "" {
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: "missing id"})
	}
	if n.Label == "" {
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: "missing label"})
	}

	switch {
	case n.Geometry == nil || len(n.Geometry.Coordinates) == 0:
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: "missing geometry.coordinates"})
	case len(n.Geometry.Coordinates) < 2:
		res.Errors = append(res.Errors, ValidationError{Path: path, Message: "geometry.coordinates needs a (longitude, latitude) pair"})
	default:
		lon := n.Geometry.Coordinates[0]
		lat := n.Geometry.Coordinates[1]
		if math.IsNaN(lon) || lon < -180 || lon > 180 {
			res.Errors = append(res.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("longitude %v out of range [-180,180]", lon),
			})
		}
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			res.Errors = append(res.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("latitude %v out of range [-90,90]", lat),
			})
		}
	}

	for i, child := range n.Children {
		validateNode(child, fmt.Sprintf("%s.children[%d]", path, i), res)
	}
}
