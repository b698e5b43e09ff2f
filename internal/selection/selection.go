// Package selection holds the set of currently selected marker ids and the
// single hierarchy level they all belong to. Every mutating operation either
// fully applies or fully no-ops; membership changes are emitted to one
// registered listener, which is the sole notification channel.
package selection

// Status classifies the outcome of a selection operation.
type Status string

const (
	StatusAdded    Status = "added"
	StatusReplaced Status = "replaced"
	StatusRemoved  Status = "removed"
	StatusRejected Status = "rejected"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonMaxSelections Reason = "max_selections"
	ReasonNotSelected   Reason = "not_selected"
)

// Result is the structured outcome of a select/deselect call; rejections are
// result values, never errors.
type Result struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`
}

// DefaultMaxSelections bounds the selection set when no limit is configured.
const DefaultMaxSelections = 10

// Listener receives the full current selection in insertion order after
// every membership change, along with the shared level (0 when empty).
type Listener func(ids []string, level int)

// Manager enforces the selection invariants: all selected ids share exactly
// one hierarchy level, and the set is empty exactly when the level is unset
// (0). The manager is not safe for concurrent use; the interaction
// controller serialises access.
type Manager struct {
	max      int
	ids      []string
	member   map[string]struct{}
	level    int
	listener Listener
}

// NewManager builds a Manager bounded to max selections (DefaultMaxSelections
// when max is not positive).
func NewManager(max int) *Manager {
	if max <= 0 {
		max = DefaultMaxSelections
	}
	return &Manager{
		max:    max,
		member: make(map[string]struct{}),
	}
}

// SetListener registers the change listener. Passing nil detaches it.
func (m *Manager) SetListener(fn Listener) { m.listener = fn }

// IDs returns the selected ids in insertion order.
func (m *Manager) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Level returns the level shared by the selection, or 0 when empty.
func (m *Manager) Level() int { return m.level }

// Len returns the selection size.
func (m *Manager) Len() int { return len(m.ids) }

// IsSelected reports membership.
func (m *Manager) IsSelected(id string) bool {
	_, ok := m.member[id]
	return ok
}

// Select applies the entry-point selection rules for a marker at the given
// level. An already-selected marker is deselected (toggle semantics); a
// marker at a different level replaces the whole selection; without
// multi-select the marker replaces same-level selections too; with
// multi-select it joins the set until the max bound rejects it.
func (m *Manager) Select(id string, level int, multiSelect bool) Result {
	if m.IsSelected(id) {
		return m.Deselect(id)
	}

	switch {
	case len(m.ids) == 0:
		m.add(id, level)
		m.emit()
		return Result{Status: StatusAdded}

	case level != m.level:
		// Cross-level selection always replaces, never merges.
		m.Clear(false)
		m.add(id, level)
		m.emit()
		return Result{Status: StatusReplaced}

	case !multiSelect:
		m.Clear(false)
		m.add(id, level)
		m.emit()
		return Result{Status: StatusAdded}

	case len(m.ids) < m.max:
		m.add(id, level)
		m.emit()
		return Result{Status: StatusAdded}

	default:
		return Result{Status: StatusRejected, Reason: ReasonMaxSelections}
	}
}

// Deselect removes one marker; removing the last one resets the level.
func (m *Manager) Deselect(id string) Result {
	if !m.IsSelected(id) {
		return Result{Status: StatusRejected, Reason: ReasonNotSelected}
	}
	delete(m.member, id)
	for i, existing := range m.ids {
		if existing == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	if len(m.ids) == 0 {
		m.level = 0
	}
	m.emit()
	return Result{Status: StatusRemoved}
}

// Toggle dispatches to Select or Deselect based on current membership.
// Select already folds the toggle rule in, so this is a plain alias kept
// for call sites that read better as a toggle.
func (m *Manager) Toggle(id string, level int, multiSelect bool) Result {
	return m.Select(id, level, multiSelect)
}

// Clear empties the selection and resets the level. The notification can be
// suppressed when clearing as the first half of a replace.
func (m *Manager) Clear(emit bool) {
	changed := len(m.ids) > 0
	m.ids = m.ids[:0]
	m.member = make(map[string]struct{})
	m.level = 0
	if emit && changed {
		m.emit()
	}
}

// Prune drops any selected id not in the visible set, resetting the level
// when the selection empties. It emits and reports true only when something
// was removed.
func (m *Manager) Prune(visible map[string]struct{}) bool {
	kept := m.ids[:0]
	removed := false
	for _, id := range m.ids {
		if _, ok := visible[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(m.member, id)
		removed = true
	}
	m.ids = kept
	if !removed {
		return false
	}
	if len(m.ids) == 0 {
		m.level = 0
	}
	m.emit()
	return true
}

// SetSelection replaces the selection wholesale, truncated to the max
// bound, emitting once.
func (m *Manager) SetSelection(ids []string, level int) {
	m.ids = m.ids[:0]
	m.member = make(map[string]struct{})
	for _, id := range ids {
		if len(m.ids) >= m.max {
			break
		}
		if _, dup := m.member[id]; dup {
			continue
		}
		m.member[id] = struct{}{}
		m.ids = append(m.ids, id)
	}
	if len(m.ids) == 0 {
		m.level = 0
	} else {
		m.level = level
	}
	m.emit()
}

func (m *Manager) add(id string, level int) {
	m.member[id] = struct{}{}
	m.ids = append(m.ids, id)
	m.level = level
}

func (m *Manager) emit() {
	if m.listener == nil {
		return
	}
	m.listener(m.IDs(), m.level)
}
