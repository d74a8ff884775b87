package events

import "strings"

// Filter keeps the event kinds a caller asked for. An empty list accepts
// everything. The end event always passes so stream consumers can detect
// completion.
type Filter struct {
	accept map[Type]struct{}
}

// NewFilter builds a Filter from caller supplied kind names. Names are
// matched case-insensitively and blank entries are ignored.
func NewFilter(kinds []string) Filter {
	f := Filter{}
	for _, k := range kinds {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if f.accept == nil {
			f.accept = make(map[Type]struct{}, len(kinds))
		}
		f.accept[Type(k)] = struct{}{}
	}
	return f
}

// Allows reports whether e passes the filter.
func (f Filter) Allows(e Event) bool {
	if len(f.accept) == 0 || e.Type == TypeEnd {
		return true
	}
	_, ok := f.accept[e.Type]
	return ok
}

// Apply returns the events that pass, preserving order.
func (f Filter) Apply(evts []Event) []Event {
	if len(f.accept) == 0 {
		return evts
	}
	out := make([]Event, 0, len(evts))
	for _, e := range evts {
		if f.Allows(e) {
			out = append(out, e)
		}
	}
	return out
}
