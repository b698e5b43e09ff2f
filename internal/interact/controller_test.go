package interact

import (
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"geopanel/map-core/internal/hierarchy"
)

// fakeClock drives the controller's timers deterministically.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves time forward, firing due timers in deadline order.
func (f *fakeClock) Advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range f.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			break
		}
		f.now = next.deadline
		next.fired = true
		next.fn()
	}
	f.now = target
}

// recordingRenderer captures the draw events the controller emits.
type recordingRenderer struct {
	markers        map[string]Marker
	removed        []string
	tooltip        string
	tooltipVisible bool
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{markers: make(map[string]Marker)}
}

func (r *recordingRenderer) DrawMarker(m Marker) { r.markers[m.ID] = m }

func (r *recordingRenderer) RemoveMarker(id string) {
	delete(r.markers, id)
	r.removed = append(r.removed, id)
}

func (r *recordingRenderer) SetMarkerSelected(id string, selected bool) {
	if m, ok := r.markers[id]; ok {
		m.Selected = selected
		r.markers[id] = m
	}
}

func (r *recordingRenderer) ShowTooltip(content string, x, y float64) {
	r.tooltip = content
	r.tooltipVisible = true
}

func (r *recordingRenderer) HideTooltip() { r.tooltipVisible = false }

func (r *recordingRenderer) ids() []string {
	out := make([]string, 0, len(r.markers))
	for id := range r.markers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func chainData() *hierarchy.Data {
	return &hierarchy.Data{GeoLocations: []*hierarchy.GeoNode{
		{
			ID:         "emea",
			Label:      "Europe",
			Properties: []hierarchy.Property{{Key: hierarchy.PropCategoryValue, Value: "EMEA"}},
			Geometry:   &hierarchy.Geometry{Coordinates: []float64{10, 50}},
			Children: []*hierarchy.GeoNode{
				{
					ID:       "germany",
					Label:    "Germany",
					Geometry: &hierarchy.Geometry{Coordinates: []float64{10.4, 51.1}},
					Children: []*hierarchy.GeoNode{
						{
							ID:       "fra1",
							Label:    "Frankfurt",
							Geometry: &hierarchy.Geometry{Coordinates: []float64{8.68, 50.11}},
						},
					},
				},
			},
		},
	}}
}

func newTestController(t *testing.T) (*Controller, *recordingRenderer, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rend := newRecordingRenderer()
	c := NewWithClock(zerolog.Nop(), rend, Config{}, clock)
	if _, ok := c.UpdateData(chainData()); !ok {
		t.Fatalf("expected test data to validate")
	}
	return c, rend, clock
}

func TestLevelForScale(t *testing.T) {
	cases := []struct {
		scale float64
		want  int
	}{
		{1, 1},
		{2.49, 1},
		{2.5, 2},
		{4.99, 2},
		{5, 3},
		{12, 3},
	}
	for _, tc := range cases {
		if got := levelForScale(tc.scale, DefaultCountryThreshold, DefaultCityThreshold); got != tc.want {
			t.Fatalf("scale %v: want level %d, got %d", tc.scale, tc.want, got)
		}
	}
}

func TestMarkerSizeFactor(t *testing.T) {
	if got := markerSizeFactor(1); got != 1 {
		t.Fatalf("expected factor 1 at scale 1, got %v", got)
	}
	if got := markerSizeFactor(4); got != 0.5 {
		t.Fatalf("expected factor 0.5 at scale 4, got %v", got)
	}
	if got := markerSizeFactor(100); got != 0.3 {
		t.Fatalf("expected clamp at 0.3, got %v", got)
	}
}

func TestUpdateData_InvalidTreeLeavesStateUntouched(t *testing.T) {
	c, rend, _ := newTestController(t)
	before := c.Snapshot()

	bad := &hierarchy.Data{GeoLocations: []*hierarchy.GeoNode{
		{ID: "x", Label: "Broken", Geometry: &hierarchy.Geometry{Coordinates: []float64{200, 10}}},
	}}
	res, ok := c.UpdateData(bad)
	if ok {
		t.Fatalf("expected invalid tree to be rejected")
	}
	if len(res.Errors) == 0 {
		t.Fatalf("expected validation errors")
	}

	after := c.Snapshot()
	if len(after.Markers) != len(before.Markers) || after.Markers[0].ID != before.Markers[0].ID {
		t.Fatalf("expected prior state preserved, got %+v", after.Markers)
	}
	if got := rend.ids(); len(got) != 1 || got[0] != "emea" {
		t.Fatalf("expected the old marker set on screen, got %v", got)
	}
}

func TestInitialRender_LevelOneShowsRegionWithCount(t *testing.T) {
	c, rend, _ := newTestController(t)

	st := c.Snapshot()
	if st.Level != 1 || st.Scale != 1 {
		t.Fatalf("expected level 1 at scale 1, got level=%d scale=%v", st.Level, st.Scale)
	}
	if len(st.Markers) != 1 {
		t.Fatalf("expected one marker, got %d", len(st.Markers))
	}
	m := st.Markers[0]
	if m.ID != "emea" || m.Count != 1 || m.Level != 1 {
		t.Fatalf("unexpected marker %+v", m)
	}
	if got := rend.ids(); len(got) != 1 || got[0] != "emea" {
		t.Fatalf("expected renderer to hold the region marker, got %v", got)
	}
}

func TestDoubleClick_DrillsDownToChildren(t *testing.T) {
	c, rend, _ := newTestController(t)

	var dblClicked string
	var levelEvents []int
	c.SetCallbacks(Callbacks{
		OnMarkerDoubleClick: func(n *hierarchy.GeoNode) { dblClicked = n.ID },
		OnZoomLevelChange:   func(l int) { levelEvents = append(levelEvents, l) },
	})

	c.DoubleClickMarker("emea")

	st := c.Snapshot()
	if st.Level != 2 {
		t.Fatalf("expected level 2 after drill-down, got %d", st.Level)
	}
	if st.ParentID != "emea" {
		t.Fatalf("expected parent context emea, got %q", st.ParentID)
	}
	if st.Scale != DefaultCountryThreshold {
		t.Fatalf("expected scale at the country threshold, got %v", st.Scale)
	}
	if len(st.Markers) != 1 || st.Markers[0].ID != "germany" || st.Markers[0].Count != 1 {
		t.Fatalf("expected the country marker with count 1, got %+v", st.Markers)
	}
	if got := rend.ids(); len(got) != 1 || got[0] != "germany" {
		t.Fatalf("expected renderer swapped to the country marker, got %v", got)
	}
	if dblClicked != "emea" {
		t.Fatalf("expected double-click callback for emea, got %q", dblClicked)
	}
	if len(levelEvents) != 1 || levelEvents[0] != 2 {
		t.Fatalf("expected one level-change event to 2, got %v", levelEvents)
	}
}

func TestDoubleClick_LeafIsNoOp(t *testing.T) {
	c, _, _ := newTestController(t)
	c.DoubleClickMarker("emea")
	c.releaseNow()
	c.DoubleClickMarker("germany")
	c.releaseNow()

	before := c.Snapshot()
	c.DoubleClickMarker("fra1")
	after := c.Snapshot()
	if after.Level != before.Level || after.ParentID != before.ParentID || after.Scale != before.Scale {
		t.Fatalf("expected drill on a leaf to no-op, got %+v", after)
	}
}

// releaseNow ends an in-flight transition guard immediately (test helper).
func (c *Controller) releaseNow() {
	c.mu.Lock()
	pending := c.transitionTimer
	c.mu.Unlock()
	if pending != nil {
		pending.Stop()
	}
	c.releaseTransition()
}

func TestClick_ResolvesToSingleAfterDelay(t *testing.T) {
	c, _, clock := newTestController(t)

	var clicked string
	var clickedSelected bool
	c.SetCallbacks(Callbacks{
		OnMarkerClick: func(n *hierarchy.GeoNode, isSelected bool) {
			clicked = n.ID
			clickedSelected = isSelected
		},
	})

	c.ClickMarker("emea", false)
	if got := c.GetSelection(); len(got) != 0 {
		t.Fatalf("expected selection deferred until the disambiguation window closes")
	}

	clock.Advance(DefaultClickDelay)

	sel := c.GetSelection()
	if len(sel) != 1 || sel[0].ID != "emea" {
		t.Fatalf("expected emea selected, got %v", sel)
	}
	if clicked != "emea" || !clickedSelected {
		t.Fatalf("expected click callback with selected state, got %q selected=%v", clicked, clickedSelected)
	}
}

func TestClick_FilteredOutMarkerIsNoOp(t *testing.T) {
	c, rend, clock := newTestController(t)

	c.ApplyFilters(hierarchy.FilterSet{Region: "APAC"})
	if got := rend.ids(); len(got) != 0 {
		t.Fatalf("expected the filter to clear the marker set, got %v", got)
	}

	c.ClickMarker("emea", false)
	clock.Advance(DefaultClickDelay)

	if sel := c.GetSelection(); len(sel) != 0 {
		t.Fatalf("expected a click on a hidden marker to select nothing, got %v", sel)
	}
}

func TestDoubleClick_FilteredOutMarkerIsNoOp(t *testing.T) {
	c, _, _ := newTestController(t)
	c.ApplyFilters(hierarchy.FilterSet{Region: "APAC"})

	before := c.Snapshot()
	c.DoubleClickMarker("emea")
	after := c.Snapshot()
	if after.Level != before.Level || after.ParentID != before.ParentID || after.Scale != before.Scale {
		t.Fatalf("expected drill on a hidden marker to no-op, got %+v", after)
	}
}

func TestClick_DoubleClickCancelsPendingSingle(t *testing.T) {
	c, _, clock := newTestController(t)

	var singleFired bool
	c.SetCallbacks(Callbacks{
		OnMarkerClick: func(n *hierarchy.GeoNode, isSelected bool) { singleFired = true },
	})

	c.ClickMarker("emea", false)
	c.DoubleClickMarker("emea")
	clock.Advance(time.Second)

	if singleFired {
		t.Fatalf("single click must never fire after a confirmed double click")
	}
	if len(c.GetSelection()) != 0 {
		t.Fatalf("expected no selection from the cancelled single click")
	}
	if got := c.GetZoomLevel(); got != 2 {
		t.Fatalf("expected the double click to drill to level 2, got %d", got)
	}
}

func TestClick_RapidClickGuardSuppressesSecondResolution(t *testing.T) {
	clock := newFakeClock()
	rend := newRecordingRenderer()
	c := NewWithClock(zerolog.Nop(), rend, Config{
		ClickDelay:      30 * time.Millisecond,
		RapidClickGuard: 100 * time.Millisecond,
	}, clock)
	if _, ok := c.UpdateData(chainData()); !ok {
		t.Fatalf("expected test data to validate")
	}

	c.ClickMarker("emea", false)
	clock.Advance(30 * time.Millisecond)
	c.ClickMarker("emea", false)
	clock.Advance(30 * time.Millisecond)

	// The first resolution selected emea; the second resolved 30ms later,
	// inside the guard, so the toggle-deselect was suppressed.
	sel := c.GetSelection()
	if len(sel) != 1 || sel[0].ID != "emea" {
		t.Fatalf("expected the rapid second click to be ignored, got %v", sel)
	}
}

func TestHandleZoom_TransitionsLevelsAtThresholds(t *testing.T) {
	c, rend, _ := newTestController(t)

	var levels []int
	c.SetCallbacks(Callbacks{OnZoomLevelChange: func(l int) { levels = append(levels, l) }})

	c.HandleZoom(2.5, 0, 0)
	if got := c.GetZoomLevel(); got != 2 {
		t.Fatalf("expected level 2 at the country threshold, got %d", got)
	}
	if got := rend.ids(); len(got) != 1 || got[0] != "germany" {
		t.Fatalf("expected the level-2 marker set, got %v", got)
	}
	c.releaseNow()

	c.HandleZoom(5, 0, 0)
	if got := c.GetZoomLevel(); got != 3 {
		t.Fatalf("expected level 3 at the city threshold, got %d", got)
	}
	c.releaseNow()

	c.HandleZoom(1, 0, 0)
	if got := c.GetZoomLevel(); got != 1 {
		t.Fatalf("expected level 1 back at scale 1, got %d", got)
	}
	if len(levels) != 3 {
		t.Fatalf("expected three level-change events, got %v", levels)
	}
}

func TestHandleZoom_GuardDefersTransitionButKeepsTransform(t *testing.T) {
	c, _, clock := newTestController(t)

	c.HandleZoom(2.5, 10, 20)
	if st := c.Snapshot(); !st.Transitioning || st.Level != 2 {
		t.Fatalf("expected an in-flight transition to level 2, got %+v", st)
	}

	// A zoom crossing the city threshold during the transition still lands
	// on the transform but must not start another marker-set swap yet.
	c.HandleZoom(6, 30, 40)
	st := c.Snapshot()
	if st.Scale != 6 || st.TranslateX != 30 || st.TranslateY != 40 {
		t.Fatalf("pan/zoom must never drop: %+v", st)
	}
	if st.Level != 2 {
		t.Fatalf("expected level change deferred while transitioning, got %d", st.Level)
	}

	// When the guard releases, the level reconciles with the scale.
	clock.Advance(DefaultTransitionDuration)
	if got := c.GetZoomLevel(); got != 3 {
		t.Fatalf("expected reconciliation to level 3 after the guard released, got %d", got)
	}
}

func TestHandleZoom_ClampsScale(t *testing.T) {
	c, _, _ := newTestController(t)

	c.HandleZoom(50, 0, 0)
	if st := c.Snapshot(); st.Scale != DefaultMaxScale {
		t.Fatalf("expected scale clamped to %v, got %v", DefaultMaxScale, st.Scale)
	}
	c.releaseNow()
	c.HandleZoom(0.1, 0, 0)
	if st := c.Snapshot(); st.Scale != DefaultMinScale {
		t.Fatalf("expected scale clamped to %v, got %v", DefaultMinScale, st.Scale)
	}
}

func TestHandleZoom_ZoomOutClearsDrillContext(t *testing.T) {
	c, _, _ := newTestController(t)

	c.DoubleClickMarker("emea")
	c.releaseNow()
	if st := c.Snapshot(); st.ParentID != "emea" {
		t.Fatalf("expected drill context set, got %q", st.ParentID)
	}

	c.HandleZoom(1, 0, 0)
	if st := c.Snapshot(); st.ParentID != "" {
		t.Fatalf("expected drill context cleared on zoom out, got %q", st.ParentID)
	}
}

func TestApplyFilters_PrunesSelectionAndNotifies(t *testing.T) {
	c, _, clock := newTestController(t)

	var filterEvents []hierarchy.FilterSet
	var selectionEvents [][]*hierarchy.GeoNode
	c.SetCallbacks(Callbacks{
		OnFilterChange:    func(f hierarchy.FilterSet) { filterEvents = append(filterEvents, f) },
		OnSelectionChange: func(nodes []*hierarchy.GeoNode) { selectionEvents = append(selectionEvents, nodes) },
	})

	c.ClickMarker("emea", false)
	clock.Advance(DefaultClickDelay)
	if len(c.GetSelection()) != 1 {
		t.Fatalf("expected emea selected")
	}

	// A filter that removes every visible marker empties the selection.
	c.ApplyFilters(hierarchy.FilterSet{Region: "APAC"})
	if len(c.GetSelection()) != 0 {
		t.Fatalf("expected selection pruned to empty")
	}
	if st := c.Snapshot(); len(st.Markers) != 0 {
		t.Fatalf("expected no visible markers, got %+v", st.Markers)
	}
	if len(filterEvents) != 1 || filterEvents[0].Region != "APAC" {
		t.Fatalf("expected a filter-change event, got %v", filterEvents)
	}
	last := selectionEvents[len(selectionEvents)-1]
	if len(last) != 0 {
		t.Fatalf("expected the final selection event to be empty, got %v", last)
	}
}

func TestReset_RestoresInitialView(t *testing.T) {
	c, _, clock := newTestController(t)

	c.DoubleClickMarker("emea")
	c.releaseNow()
	c.ClickMarker("germany", false)
	clock.Advance(DefaultClickDelay)
	c.ApplyFilters(hierarchy.FilterSet{Datacentre: "Frankfurt"})

	c.Reset()

	st := c.Snapshot()
	if st.Level != 1 || st.Scale != 1 || st.TranslateX != 0 || st.TranslateY != 0 {
		t.Fatalf("expected identity transform at level 1, got %+v", st)
	}
	if st.ParentID != "" {
		t.Fatalf("expected drill context cleared")
	}
	if !st.Filters.IsAll() {
		t.Fatalf("expected all-wildcard filters, got %+v", st.Filters)
	}
	if len(c.GetSelection()) != 0 {
		t.Fatalf("expected selection cleared")
	}
	if len(st.Markers) != 1 || st.Markers[0].ID != "emea" {
		t.Fatalf("expected the level-1 marker set, got %+v", st.Markers)
	}
}

func TestDestroy_StopsTimersAndClearsMarkers(t *testing.T) {
	c, rend, clock := newTestController(t)

	c.ClickMarker("emea", false)
	c.Destroy()
	clock.Advance(time.Second)

	if len(c.GetSelection()) != 0 {
		t.Fatalf("expected no selection after destroy")
	}
	if len(rend.markers) != 0 {
		t.Fatalf("expected all markers removed, got %v", rend.ids())
	}

	// Calls after Destroy are ignored.
	c.HandleZoom(5, 0, 0)
	if st := c.Snapshot(); st.Level != 1 {
		t.Fatalf("expected controller inert after destroy, got level %d", st.Level)
	}
}

func TestTooltip(t *testing.T) {
	c, rend, _ := newTestController(t)

	c.HoverMarker("emea")
	if !rend.tooltipVisible || rend.tooltip != "Europe" {
		t.Fatalf("expected tooltip for Europe, got %q visible=%v", rend.tooltip, rend.tooltipVisible)
	}
	c.HoverEnd()
	if rend.tooltipVisible {
		t.Fatalf("expected tooltip hidden")
	}

	c.HoverMarker("ghost")
	if rend.tooltipVisible {
		t.Fatalf("expected no tooltip for an unrendered marker")
	}
}

func TestZoomToLevel(t *testing.T) {
	c, _, _ := newTestController(t)

	c.ZoomToLevel(3)
	if got := c.GetZoomLevel(); got != 3 {
		t.Fatalf("expected level 3, got %d", got)
	}
	c.releaseNow()

	c.ZoomToLevel(9) // unknown level ignored
	if got := c.GetZoomLevel(); got != 3 {
		t.Fatalf("expected unknown level to be ignored, got %d", got)
	}
}

func TestFilterOptions(t *testing.T) {
	c, _, _ := newTestController(t)

	opts := c.FilterOptions()
	if len(opts.Regions) != 2 || opts.Regions[0] != hierarchy.FilterAll || opts.Regions[1] != "EMEA" {
		t.Fatalf("unexpected regions: %v", opts.Regions)
	}
	if len(opts.Datacentres) != 2 || opts.Datacentres[1] != "Frankfurt" {
		t.Fatalf("unexpected datacentres: %v", opts.Datacentres)
	}
}
