package hierarchy

import "sort"

// Store indexes one tree version into an arena keyed by node id, with
// parent and level maps so back-references are O(1) lookups instead of
// re-traversals. The tree is replaced wholesale on every data update; a
// Store is immutable once built.
type Store struct {
	roots  []*GeoNode
	byID   map[string]*GeoNode
	parent map[string]*GeoNode
	level  map[string]int
}

// NewStore indexes a forest. When two nodes carry the same id the first one
// seen depth-first wins, matching first-match lookup semantics.
func NewStore(roots []*GeoNode) *Store {
	s := &Store{
		roots:  roots,
		byID:   make(map[string]*GeoNode),
		parent: make(map[string]*GeoNode),
		level:  make(map[string]int),
	}
	s.index(roots, nil, 1)
	return s
}

func (s *Store) index(forest []*GeoNode, parent *GeoNode, depth int) {
	for _, n := range forest {
		if n == nil {
			continue
		}
		if _, seen := s.byID[n.ID]; !seen {
			s.byID[n.ID] = n
			s.level[n.ID] = depth
			if parent != nil {
				s.parent[n.ID] = parent
			}
		}
		s.index(n.Children, n, depth+1)
	}
}

// Roots returns the canonical forest.
func (s *Store) Roots() []*GeoNode { return s.roots }

// FindByID returns the indexed node for id, or nil.
func (s *Store) FindByID(id string) *GeoNode { return s.byID[id] }

// ParentOf returns the parent of the node with id, or nil for roots and
// unknown ids.
func (s *Store) ParentOf(id string) *GeoNode { return s.parent[id] }

// LevelOf returns the 1-based depth of the node with id, or 0 when unknown.
func (s *Store) LevelOf(id string) int { return s.level[id] }

// NodesAtLevel collects every canonical node at the given depth.
func (s *Store) NodesAtLevel(level int) []*GeoNode {
	return NodesAtLevel(s.roots, level)
}

// ChildrenOf returns the direct children of the node with id; empty for
// leaves and unknown ids alike.
func (s *Store) ChildrenOf(id string) []*GeoNode {
	n := s.byID[id]
	if n == nil {
		return nil
	}
	return n.Children
}

// Matches evaluates a single node against the filter set, AND across the
// non-wildcard keys. The region key matches the node's own region value at
// level 1 or that of its level-1 ancestor; the location key matches the
// level-2 self-or-ancestor label; the datacentre key matches the node's own
// label when the node is a leaf or sits at level 3.
func (s *Store) Matches(n *GeoNode, f FilterSet) bool {
	if n == nil {
		return false
	}
	f = f.Normalized()

	if f.Region != FilterAll {
		anc := s.ancestorAtLevel(n, LevelRegion)
		if anc == nil || regionValue(anc) != f.Region {
			return false
		}
	}
	if f.Location != FilterAll {
		anc := s.ancestorAtLevel(n, LevelSub)
		if anc == nil || anc.Label != f.Location {
			return false
		}
	}
	if f.Datacentre != FilterAll {
		if !(n.IsLeaf() || s.level[n.ID] == LevelSite) || n.Label != f.Datacentre {
			return false
		}
	}
	return true
}

// ancestorAtLevel walks from n up to its ancestor (or self) at the wanted
// level; nil when n sits above that level.
func (s *Store) ancestorAtLevel(n *GeoNode, level int) *GeoNode {
	cur := n
	for cur != nil {
		if s.level[cur.ID] == level {
			return cur
		}
		cur = s.parent[cur.ID]
	}
	return nil
}

// LeafCount counts the leaves under n that match the filter set. A leaf
// contributes 1 when it matches, 0 otherwise; an internal node is the sum
// over its children. Recomputed on every render pass; trees are expected to
// stay small (a few hundred displayable markers).
func (s *Store) LeafCount(n *GeoNode, f FilterSet) int {
	if n == nil {
		return 0
	}
	if n.IsLeaf() {
		if s.Matches(n, f) {
			return 1
		}
		return 0
	}
	total := 0
	for _, child := range n.Children {
		total += s.LeafCount(child, f)
	}
	return total
}

// FilterTree returns a filtered copy of the forest. A leaf survives iff it
// matches; an internal node survives iff at least one child survives, except
// that a level-1 node whose own region matches survives with an empty child
// list so an empty-but-matching region still shows on the map. Levels 2 and
// 3 have no such placeholder rule and disappear with zero matching leaves.
func (s *Store) FilterTree(f FilterSet) []*GeoNode {
	f = f.Normalized()
	return s.filterForest(s.roots, 1, f)
}

func (s *Store) filterForest(forest []*GeoNode, depth int, f FilterSet) []*GeoNode {
	var out []*GeoNode
	for _, n := range forest {
		if n == nil {
			continue
		}
		if n.IsLeaf() {
			if s.Matches(n, f) {
				out = append(out, n.clone())
			}
			continue
		}

		kept := s.filterForest(n.Children, depth+1, f)
		if len(kept) == 0 {
			if depth == LevelRegion && s.regionMatches(n, f) {
				out = append(out, n.clone())
			}
			continue
		}
		copied := n.clone()
		copied.Children = kept
		out = append(out, copied)
	}
	return out
}

func (s *Store) regionMatches(n *GeoNode, f FilterSet) bool {
	return f.Region == FilterAll || regionValue(n) == f.Region
}

// ExtractFilterOptions collects the selectable values per filter key:
// region values at level 1, labels at level 2, and labels of childless
// nodes or any level-3 node for datacentres. Each list is sorted with the
// wildcard prepended.
func (s *Store) ExtractFilterOptions() FilterOptions {
	regions := make(map[string]struct{})
	locations := make(map[string]struct{})
	datacentres := make(map[string]struct{})

	var walk func(forest []*GeoNode, depth int)
	walk = func(forest []*GeoNode, depth int) {
		for _, n := range forest {
			if n == nil {
				continue
			}
			switch depth {
			case LevelRegion:
				regions[regionValue(n)] = struct{}{}
			case LevelSub:
				locations[n.Label] = struct{}{}
			}
			if n.IsLeaf() || depth == LevelSite {
				datacentres[n.Label] = struct{}{}
			}
			walk(n.Children, depth+1)
		}
	}
	walk(s.roots, 1)

	return FilterOptions{
		Regions:     withAll(regions),
		Locations:   withAll(locations),
		Datacentres: withAll(datacentres),
	}
}

func withAll(values map[string]struct{}) []string {
	out := make([]string, 0, len(values)+1)
	for v := range values {
		out = append(out, v)
	}
	sort.Strings(out)
	return append([]string{FilterAll}, out...)
}
