package inbox

import (
	"context"
	"maps"
	"sync"

	"crm-platform/internal/communications"
)

// View is the inbox view-model: the last loaded page, the channel filter and
// the selection. Derived output is recomputed on every read.
//
// Each Refresh takes a new epoch. A load that finishes after a newer Refresh
// started, or after Close, is dropped without touching the view.
type View struct {
	loader *Loader

	mu        sync.Mutex
	epoch     uint64
	closed    bool
	items     []communications.UnifiedCommunication
	sources   map[SourceName]SourceState
	filter    communications.TypeFilter
	selection communications.Selection
}

func NewView(loader *Loader) *View {
	return &View{
		loader:  loader,
		sources: map[SourceName]SourceState{},
		filter:  communications.FilterAll,
	}
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Visible  []communications.UnifiedCommunication
	Selected *communications.UnifiedCommunication
	Sources  map[SourceName]SourceState
	Filter   communications.TypeFilter
}

// Refresh loads f and applies the result. It reports false when the result
// was discarded as stale.
func (v *View) Refresh(ctx context.Context, f communications.CommunicationsFilter) (bool, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false, nil
	}
	v.epoch++
	epoch := v.epoch
	v.mu.Unlock()

	res, err := v.loader.Load(ctx, f, func(s SourceName, st SourceState) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.current(epoch) {
			v.sources[s] = st
		}
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.current(epoch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	v.items = res.Items
	v.sources = res.Sources
	return true, nil
}

func (v *View) current(epoch uint64) bool {
	return !v.closed && v.epoch == epoch
}

// Close tears the view down; in-flight loads are discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *View) SetFilter(f communications.TypeFilter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
}

func (v *View) Select(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = v.selection.Select(id)
}

func (v *View) Deselect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = v.selection.Deselect()
}

// Visible returns the loaded items that pass the channel filter.
func (v *View) Visible() []communications.UnifiedCommunication {
	v.mu.Lock()
	defer v.mu.Unlock()
	return communications.FilterByType(v.items, v.filter)
}

// Selected resolves the selection against all loaded items, ignoring the filter.
func (v *View) Selected() (communications.UnifiedCommunication, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.Resolve(v.items)
}

func (v *View) Sources() map[SourceName]SourceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return maps.Clone(v.sources)
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := Snapshot{
		Visible: communications.FilterByType(v.items, v.filter),
		Sources: maps.Clone(v.sources),
		Filter:  v.filter,
	}
	if it, ok := v.selection.Resolve(v.items); ok {
		snap.Selected = &it
	}
	return snap
}
