package hierarchy

// Pure depth-first lookups over a forest. These work on any forest value,
// including the filtered copies returned by Store.FilterTree; the arena on
// Store offers the same lookups as O(1) map reads for the canonical tree.

// FindByID returns the first node with the given id in depth-first order,
// or nil when absent.
func FindByID(forest []*GeoNode, id string) *GeoNode {
	for _, n := range forest {
		if n == nil {
			continue
		}
		if n.ID == id {
			return n
		}
		if found := FindByID(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// ChildrenOf returns the direct children of the first node with the given
// id. A leaf and an unknown id both yield an empty result; the two cases
// are not distinguished.
func ChildrenOf(forest []*GeoNode, id string) []*GeoNode {
	n := FindByID(forest, id)
	if n == nil {
		return nil
	}
	return n.Children
}

// NodesAtLevel collects every node at the given depth in depth-first order.
// Roots are depth 1.
func NodesAtLevel(forest []*GeoNode, level int) []*GeoNode {
	var out []*GeoNode
	collectAtLevel(forest, 1, level, &out)
	return out
}

func collectAtLevel(forest []*GeoNode, depth, want int, out *[]*GeoNode) {
	for _, n := range forest {
		if n == nil {
			continue
		}
		if depth == want {
			*out = append(*out, n)
			continue
		}
		collectAtLevel(n.Children, depth+1, want, out)
	}
}

// LevelOf returns the 1-based depth of the first node with the given id,
// or 0 when absent.
func LevelOf(forest []*GeoNode, id string) int {
	return levelOf(forest, id, 1)
}

func levelOf(forest []*GeoNode, id string, depth int) int {
	for _, n := range forest {
		if n == nil {
			continue
		}
		if n.ID == id {
			return depth
		}
		if lvl := levelOf(n.Children, id, depth+1); lvl != 0 {
			return lvl
		}
	}
	return 0
}
