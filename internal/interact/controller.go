// Package interact owns the map's interaction state: the zoom transform,
// the zoom-to-hierarchy-level state machine, click/double-click
// disambiguation, drill-down navigation, and filter application. It queries
// the hierarchy store and the selection manager and emits draw events to a
// renderer; it never draws anything itself.
package interact

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geopanel/map-core/internal/hierarchy"
	"geopanel/map-core/internal/metrics"
	"geopanel/map-core/internal/projection"
	"geopanel/map-core/internal/selection"
)

// State is a read-only snapshot of the controller for the host surface.
type State struct {
	Level         int                 `json:"level"`
	Scale         float64             `json:"scale"`
	TranslateX    float64             `json:"translate_x"`
	TranslateY    float64             `json:"translate_y"`
	ParentID      string              `json:"parent_id,omitempty"`
	Filters       hierarchy.FilterSet `json:"filters"`
	Transitioning bool                `json:"transitioning"`
	Markers       []Marker            `json:"markers"`
}

// click disambiguation phases: one physical gesture resolves to exactly one
// of single or double click, never both.
type clickPhase int

const (
	clickIdle clickPhase = iota
	clickAwaitingSecond
)

type clickState struct {
	phase        clickPhase
	targetID     string
	multi        bool
	timer        Timer
	seq          int
	lastResolved time.Time
}

// Controller coordinates the hierarchy store, selection manager, projector
// and renderer per user action. State mutates synchronously within each
// handler; the mutex serialises host events with timer callbacks so the
// single-threaded event model holds.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	clock    Clock
	renderer Renderer
	cb       Callbacks
	metrics  *metrics.Metrics

	store   *hierarchy.Store
	filters hierarchy.FilterSet
	sel     *selection.Manager
	proj    *projection.Projector

	scale      float64
	translateX float64
	translateY float64
	level      int
	parentID   string

	transitioning   bool
	transitionTimer Timer
	resizeTimer     Timer

	click clickState

	rendered map[string]Marker
	order    []string

	destroyed bool
}

// New builds a Controller over an empty tree. Supply data with UpdateData.
func New(log zerolog.Logger, renderer Renderer, cfg Config) *Controller {
	return NewWithClock(log, renderer, cfg, NewClock())
}

// NewWithClock is New with an explicit clock, for deterministic tests.
func NewWithClock(log zerolog.Logger, renderer Renderer, cfg Config, clock Clock) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:      cfg,
		log:      log,
		clock:    clock,
		renderer: renderer,
		store:    hierarchy.NewStore(nil),
		filters:  hierarchy.NewFilterSet(),
		sel:      selection.NewManager(cfg.MaxSelections),
		proj:     projection.New(cfg.ViewportWidth, cfg.ViewportHeight),
		scale:    cfg.MinScale,
		level:    hierarchy.LevelRegion,
		rendered: make(map[string]Marker),
	}
	c.sel.SetListener(c.onSelectionChanged)
	return c
}

// SetCallbacks registers the host event callbacks.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// SetMetrics attaches an optional metrics sink.
func (c *Controller) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// UpdateData replaces the tree wholesale. An invalid tree fails the call
// and leaves prior state untouched; the validation result carries every
// error found.
func (c *Controller) UpdateData(d *hierarchy.Data) (hierarchy.ValidationResult, bool) {
	var roots []*hierarchy.GeoNode
	if d != nil {
		roots = d.GeoLocations
	}
	res := hierarchy.Validate(roots)
	if !res.Valid() {
		return res, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return res, false
	}

	c.store = hierarchy.NewStore(roots)
	c.parentID = ""
	c.render()
	c.pruneSelection()
	c.log.Info().Int("roots", len(roots)).Int("markers", len(c.order)).Msg("tree replaced")
	return res, true
}

// ApplyFilters recomputes the filtered view, re-renders the current
// level/parent context, prunes the selection against the new visible set
// and notifies the filter observer.
func (c *Controller) ApplyFilters(f hierarchy.FilterSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.filters = f.Normalized()
	c.render()
	c.pruneSelection()
	c.metrics.IncFilterApply()
	if c.cb.OnFilterChange != nil {
		c.cb.OnFilterChange(c.filters)
	}
}

// GetFilters returns the active filter set.
func (c *Controller) GetFilters() hierarchy.FilterSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// GetSelection resolves the selected ids to their nodes in insertion order.
func (c *Controller) GetSelection() []*hierarchy.GeoNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedNodes()
}

// ClearSelection empties the selection, notifying the change listener.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel.Clear(true)
}

// SelectionLevel returns the level shared by the selection, 0 when empty.
func (c *Controller) SelectionLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Level()
}

// GetZoomLevel returns the current hierarchy level.
func (c *Controller) GetZoomLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// ZoomToLevel zooms programmatically to the lowest scale that maps to the
// requested level. Unknown levels are ignored.
func (c *Controller) ZoomToLevel(level int) {
	var target float64
	switch level {
	case hierarchy.LevelRegion:
		target = c.cfg.MinScale
	case hierarchy.LevelSub:
		target = c.cfg.CountryThreshold
	case hierarchy.LevelSite:
		target = c.cfg.CityThreshold
	default:
		return
	}
	c.HandleZoom(target, 0, 0)
}

// HandleZoom applies one zoom/pan gesture. The transform always updates
// (pan/zoom never drops); a level change additionally transitions the
// marker set unless a transition is already in flight, in which case the
// level is reconciled when the guard releases.
func (c *Controller) HandleZoom(scale, translateX, translateY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.scale = clamp(scale, c.cfg.MinScale, c.cfg.MaxScale)
	c.translateX = translateX
	c.translateY = translateY

	next := levelForScale(c.scale, c.cfg.CountryThreshold, c.cfg.CityThreshold)
	if next != c.level && !c.transitioning {
		c.transitionToLevel(next)
	} else {
		// Marker size tracks scale even when the level holds.
		c.restyleForScale()
	}
}

// ClickMarker records a single click on a marker. Resolution is deferred by
// the disambiguation delay; a double click arriving first wins exclusively.
func (c *Controller) ClickMarker(id string, multiSelect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	// Only one pending resolution at a time: a new click cancels the
	// previous timer.
	if c.click.timer != nil {
		c.click.timer.Stop()
	}
	c.click.seq++
	c.click.phase = clickAwaitingSecond
	c.click.targetID = id
	c.click.multi = multiSelect

	seq := c.click.seq
	c.click.timer = c.clock.AfterFunc(c.cfg.ClickDelay, func() {
		c.resolveSingleClick(seq)
	})
}

// DoubleClickMarker drills down into a node's children. It cancels any
// pending single click first, so the competing single click never fires.
func (c *Controller) DoubleClickMarker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.cancelPendingClick()

	if c.transitioning {
		return
	}
	if _, visible := c.rendered[id]; !visible {
		return
	}
	node := c.store.FindByID(id)
	if node == nil || node.IsLeaf() {
		return
	}

	lvl := c.store.LevelOf(id)
	var target float64
	switch lvl {
	case hierarchy.LevelRegion:
		target = c.cfg.CountryThreshold
	case hierarchy.LevelSub:
		target = c.cfg.CityThreshold
	default:
		target = clamp(c.scale*drillZoomFactor, c.cfg.MinScale, c.cfg.MaxScale)
	}

	c.scale = target
	if coord, ok := node.Coordinate(); ok {
		if pt, err := c.proj.Project(coord.Lon, coord.Lat); err == nil {
			// Centre the node under the zoomed transform:
			// screen = translate + scale * base.
			c.translateX = c.proj.Width()/2 - target*pt.X
			c.translateY = c.proj.Height()/2 - target*pt.Y
		}
	}

	c.parentID = id
	next := levelForScale(c.scale, c.cfg.CountryThreshold, c.cfg.CityThreshold)
	if next != c.level {
		c.transitionToLevel(next)
	} else {
		c.render()
	}

	if c.cb.OnMarkerDoubleClick != nil {
		c.cb.OnMarkerDoubleClick(node)
	}
}

// HoverMarker shows the tooltip for a rendered marker.
func (c *Controller) HoverMarker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rendered[id]
	if !ok {
		return
	}
	c.renderer.ShowTooltip(m.Label, m.X, m.Y)
}

// HoverEnd hides the tooltip.
func (c *Controller) HoverEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.HideTooltip()
}

// Resize re-fits the projector to a new viewport, debounced so a drag
// resize re-lays out once.
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
	}
	c.resizeTimer = c.clock.AfterFunc(c.cfg.ResizeDebounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return
		}
		c.proj = projection.New(width, height)
		c.render()
	})
}

// Reset clears filters, selection and drill context and returns the
// transform to identity at level 1.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	levelChanged := c.level != hierarchy.LevelRegion

	c.filters = hierarchy.NewFilterSet()
	c.sel.Clear(true)
	c.parentID = ""
	c.scale = c.cfg.MinScale
	c.translateX = 0
	c.translateY = 0
	c.level = hierarchy.LevelRegion
	c.render()

	if levelChanged && c.cb.OnZoomLevelChange != nil {
		c.cb.OnZoomLevelChange(c.level)
	}
	if c.cb.OnFilterChange != nil {
		c.cb.OnFilterChange(c.filters)
	}
}

// Destroy stops every pending timer and removes all markers. The controller
// ignores calls after Destroy.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.cancelPendingClick()
	if c.transitionTimer != nil {
		c.transitionTimer.Stop()
	}
	if c.resizeTimer != nil {
		c.resizeTimer.Stop()
	}
	for _, id := range c.order {
		c.renderer.RemoveMarker(id)
	}
	c.rendered = make(map[string]Marker)
	c.order = nil
}

// Snapshot returns the current interaction state and rendered marker set.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	markers := make([]Marker, 0, len(c.order))
	for _, id := range c.order {
		markers = append(markers, c.rendered[id])
	}
	return State{
		Level:         c.level,
		Scale:         c.scale,
		TranslateX:    c.translateX,
		TranslateY:    c.translateY,
		ParentID:      c.parentID,
		Filters:       c.filters,
		Transitioning: c.transitioning,
		Markers:       markers,
	}
}

// FilterOptions exposes the selectable filter values of the current tree.
func (c *Controller) FilterOptions() hierarchy.FilterOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ExtractFilterOptions()
}

// resolveSingleClick is the click timer firing: the gesture is now known to
// be a single click.
func (c *Controller) resolveSingleClick(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || seq != c.click.seq || c.click.phase != clickAwaitingSecond {
		return
	}

	id := c.click.targetID
	multi := c.click.multi
	c.click.phase = clickIdle
	c.click.timer = nil

	// Only markers currently on screen are clickable; filtering may have
	// removed the target since the click was recorded.
	if _, visible := c.rendered[id]; !visible {
		return
	}

	// Debounce resolved single clicks independently of the double-click
	// window.
	now := c.clock.Now()
	if !c.click.lastResolved.IsZero() && now.Sub(c.click.lastResolved) < c.cfg.RapidClickGuard {
		return
	}
	c.click.lastResolved = now

	node := c.store.FindByID(id)
	lvl := c.store.LevelOf(id)
	if node == nil || lvl == 0 {
		return
	}

	res := c.sel.Toggle(id, lvl, multi)
	if res.Status == selection.StatusRejected && res.Reason == selection.ReasonMaxSelections {
		c.metrics.IncSelectionReject()
		c.log.Debug().Str("id", id).Msg("selection rejected at max bound")
	}
	if c.cb.OnMarkerClick != nil {
		c.cb.OnMarkerClick(node, c.sel.IsSelected(id))
	}
}

func (c *Controller) cancelPendingClick() {
	if c.click.timer != nil {
		c.click.timer.Stop()
		c.click.timer = nil
	}
	c.click.phase = clickIdle
	c.click.seq++
}

// transitionToLevel swaps the displayed marker set and arms the transition
// guard for the animation duration. Drill context only applies going
// deeper: a decrease clears it.
func (c *Controller) transitionToLevel(next int) {
	if next < c.level {
		c.parentID = ""
	}
	c.level = next
	c.render()
	c.pruneSelection()

	c.transitioning = true
	c.transitionTimer = c.clock.AfterFunc(c.cfg.TransitionDuration, c.releaseTransition)

	c.metrics.IncZoomTransition(next)
	if c.cb.OnZoomLevelChange != nil {
		c.cb.OnZoomLevelChange(next)
	}
}

// releaseTransition ends the guard and reconciles the level with any scale
// changes that arrived while the transition was in flight.
func (c *Controller) releaseTransition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.transitioning = false
	c.transitionTimer = nil

	next := levelForScale(c.scale, c.cfg.CountryThreshold, c.cfg.CityThreshold)
	if next != c.level {
		c.transitionToLevel(next)
	}
}

// render recomputes the visible marker set for the current level, parent
// context and filters, and diffs it against what is on screen: entering
// markers are drawn, surviving ones updated, exiting ones removed.
func (c *Controller) render() {
	forest := c.store.FilterTree(c.filters)

	var nodes []*hierarchy.GeoNode
	if c.parentID != "" && c.level > hierarchy.LevelRegion {
		nodes = hierarchy.ChildrenOf(forest, c.parentID)
	} else {
		nodes = hierarchy.NodesAtLevel(forest, c.level)
	}

	factor := markerSizeFactor(c.scale)
	base := c.cfg.MarkerBaseSizes[c.level]

	type placed struct {
		node  *hierarchy.GeoNode
		point projection.Point
	}
	var visible []placed
	var points []projection.Point
	for _, n := range nodes {
		coord, ok := n.Coordinate()
		if !ok {
			// Not displayable; excluded from the marker set, not fatal.
			c.log.Debug().Str("id", n.ID).Msg("skipping marker without a displayable coordinate")
			continue
		}
		pt, err := c.proj.Project(coord.Lon, coord.Lat)
		if err != nil {
			c.log.Debug().Str("id", n.ID).Err(err).Msg("skipping unprojectable marker")
			continue
		}
		visible = append(visible, placed{node: n, point: pt})
		points = append(points, pt)
	}
	points = projection.ResolveOverlaps(points, base*factor)

	next := make(map[string]Marker, len(visible))
	order := make([]string, 0, len(visible))
	for i, v := range visible {
		// Counts come from the canonical node so a placeholder region
		// emptied by filters reports 0, not itself.
		count := c.leafCountByID(v.node.ID)
		m := Marker{
			ID:         v.node.ID,
			X:          points[i].X,
			Y:          points[i].Y,
			Level:      c.level,
			Label:      v.node.Label,
			Count:      count,
			Selected:   c.sel.IsSelected(v.node.ID),
			SizeFactor: factor,
		}
		next[m.ID] = m
		order = append(order, m.ID)
	}

	for _, id := range c.order {
		if _, keep := next[id]; !keep {
			c.renderer.RemoveMarker(id)
		}
	}
	for _, id := range order {
		c.renderer.DrawMarker(next[id])
	}

	c.rendered = next
	c.order = order
	c.metrics.SetMarkersRendered(len(order))
}

func (c *Controller) leafCountByID(id string) int {
	canonical := c.store.FindByID(id)
	if canonical == nil {
		return 0
	}
	if canonical.IsLeaf() {
		if c.store.Matches(canonical, c.filters) {
			return 1
		}
		return 0
	}
	return c.store.LeafCount(canonical, c.filters)
}

// restyleForScale redraws the current markers with the size factor for the
// new scale.
func (c *Controller) restyleForScale() {
	factor := markerSizeFactor(c.scale)
	for _, id := range c.order {
		m := c.rendered[id]
		if m.SizeFactor == factor {
			continue
		}
		m.SizeFactor = factor
		c.rendered[id] = m
		c.renderer.DrawMarker(m)
	}
}

// pruneSelection drops selected ids that are no longer visible.
func (c *Controller) pruneSelection() {
	visible := make(map[string]struct{}, len(c.order))
	for _, id := range c.order {
		visible[id] = struct{}{}
	}
	c.sel.Prune(visible)
}

// onSelectionChanged is the selection manager's sole listener: it refreshes
// the selected styling on rendered markers and fires the external callback.
func (c *Controller) onSelectionChanged(ids []string, level int) {
	member := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		member[id] = struct{}{}
	}
	for _, id := range c.order {
		m := c.rendered[id]
		_, selected := member[id]
		if m.Selected != selected {
			m.Selected = selected
			c.rendered[id] = m
			c.renderer.SetMarkerSelected(id, selected)
		}
	}

	c.metrics.IncSelectionChange()
	if c.cb.OnSelectionChange != nil {
		c.cb.OnSelectionChange(c.selectedNodes())
	}
}

func (c *Controller) selectedNodes() []*hierarchy.GeoNode {
	ids := c.sel.IDs()
	out := make([]*hierarchy.GeoNode, 0, len(ids))
	for _, id := range ids {
		if n := c.store.FindByID(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}
