// Package store loads the hierarchy tree from PostgreSQL. Row-to-tree
// assembly is a pure function so it stays testable without a database.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"geopanel/map-core/internal/hierarchy"
)

const loadTreeQuery = `
SELECT id, parent_id, label, category_name, category_value, lon, lat, position
FROM geo_nodes
ORDER BY position, id
`

// NodeRow is one geo_nodes row. ParentID is nil for roots.
type NodeRow struct {
	ID            string
	ParentID      *string
	Label         string
	CategoryName  *string
	CategoryValue *string
	Lon           float64
	Lat           float64
	Position      int32
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and verifies connectivity early.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &Store{pool: p}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity; nil stores report healthy so the service can
// run without a database.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// LoadTree reads every geo_nodes row and assembles the hierarchy forest.
func (s *Store) LoadTree(ctx context.Context) (*hierarchy.Data, error) {
	rows, err := s.pool.Query(ctx, loadTreeQuery)
	if err != nil {
		return nil, fmt.Errorf("query geo_nodes: %w", err)
	}
	defer rows.Close()

	var all []NodeRow
	for rows.Next() {
		var r NodeRow
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Label, &r.CategoryName, &r.CategoryValue, &r.Lon, &r.Lat, &r.Position); err != nil {
			return nil, fmt.Errorf("scan geo_nodes row: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read geo_nodes rows: %w", err)
	}

	return BuildTree(all)
}

// BuildTree assembles rows into the GeoNode forest. Sibling order follows
// the input row order, which LoadTree sorts by position. A duplicate id or
// a reference to a missing parent fails the whole build; nothing partial is
// returned.
func BuildTree(rows []NodeRow) (*hierarchy.Data, error) {
	nodes := make(map[string]*hierarchy.GeoNode, len(rows))
	for _, r := range rows {
		if _, dup := nodes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", r.ID)
		}
		n := &hierarchy.GeoNode{
			ID:       r.ID,
			Label:    r.Label,
			Geometry: &hierarchy.Geometry{Coordinates: []float64{r.Lon, r.Lat}},
		}
		if r.CategoryName != nil {
			n.Properties = append(n.Properties, hierarchy.Property{Key: hierarchy.PropCategoryName, Value: *r.CategoryName})
		}
		if r.CategoryValue != nil {
			n.Properties = append(n.Properties, hierarchy.Property{Key: hierarchy.PropCategoryValue, Value: *r.CategoryValue})
		}
		nodes[r.ID] = n
	}

	var roots []*hierarchy.GeoNode
	for _, r := range rows {
		n := nodes[r.ID]
		if r.ParentID == nil || *r.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*r.ParentID]
		if !ok {
			return nil, fmt.Errorf("node %q references missing parent %q", r.ID, *r.ParentID)
		}
		if parent == n {
			return nil, fmt.Errorf("node %q is its own parent", r.ID)
		}
		parent.Children = append(parent.Children, n)
	}

	return &hierarchy.Data{GeoLocations: roots}, nil
}
