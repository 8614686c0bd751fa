package communications

import "fmt"

// TypeFilter selects which communication types are visible.
type TypeFilter string

const (
	FilterAll   TypeFilter = "all"
	FilterCall  TypeFilter = "call"
	FilterEmail TypeFilter = "email"
	FilterChat  TypeFilter = "chat"
)

// ParseTypeFilter accepts all|call|email|chat; empty means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch TypeFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCall, FilterEmail, FilterChat:
		return TypeFilter(s), nil
	default:
		return "", fmt.Errorf("communications: unknown filter %q", s)
	}
}

// FilterByType returns the items of the given type in their original order.
// FilterAll returns seq itself. The input is never modified.
func FilterByType(seq []UnifiedCommunication, filter TypeFilter) []UnifiedCommunication {
	if filter == FilterAll || filter == "" {
		return seq
	}
	out := make([]UnifiedCommunication, 0, len(seq))
	for _, it := range seq {
		if it.Type == Kind(filter) {
			out = append(out, it)
		}
	}
	return out
}

// SelectByID returns the first item whose ID equals id.
// A nil id or no match yields false.
func SelectByID(seq []UnifiedCommunication, id *string) (UnifiedCommunication, bool) {
	if id == nil {
		return UnifiedCommunication{}, false
	}
	for _, it := range seq {
		if it.ID == *id {
			return it, true
		}
	}
	return UnifiedCommunication{}, false
}

// Selection is the inbox selection state: NoneSelected or Selected(id).
// It does not depend on the active filter.
type Selection struct {
	id *string
}

func (s Selection) Select(id string) Selection { return Selection{id: &id} }

func (s Selection) Deselect() Selection { return Selection{} }

// ID returns the selected id, or nil when nothing is selected.
func (s Selection) ID() *string {
	if s.id == nil {
		return nil
	}
	id := *s.id
	return &id
}

func (s Selection) IsSelected() bool { return s.id != nil }

// Resolve looks the selection up in the full (unfiltered) sequence.
func (s Selection) Resolve(seq []UnifiedCommunication) (UnifiedCommunication, bool) {
	return SelectByID(seq, s.id)
}
