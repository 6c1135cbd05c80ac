package persistence

import (
	"fmt"
	"sync"
)

// EntityState is the pending operation recorded for a tracked entity
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

// String returns the state name
func (s EntityState) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("EntityState(%d)", int(s))
	}
}

// IsPending reports whether a save has work to do for this state
func (s EntityState) IsPending() bool {
	return s == Added || s == Modified || s == Deleted
}

// Entry pairs a tracked entity (always a pointer) with its pending state.
// OriginalToken holds the concurrency token observed when the entity was
// attached, for entities that carry one.
type Entry struct {
	Entity        any
	State         EntityState
	OriginalToken string

	// live is the tracked entry a Pending snapshot was copied from
	live *Entry
}

// ConcurrencyTokened is implemented by entities that rotate a token on every
// write. Updates of such entities only succeed while the stored token still
// equals the one observed at attach time.
type ConcurrencyTokened interface {
	ConcurrencyToken() string
	ConcurrencyTokenColumn() string
}

// ChangeTracker records entities and the operation a save should apply to
// each. Entries are kept in the order they were first tracked.
type ChangeTracker struct {
	mu      sync.Mutex
	entries []*Entry
	index   map[any]*Entry
}

// NewChangeTracker creates an empty tracker
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{index: make(map[any]*Entry)}
}

// Track records entity with the given state. Tracking an entity that is
// already Added as Modified keeps it Added; tracking an Added entity as
// Deleted forgets it, since it was never persisted.
func (t *ChangeTracker) Track(entity any, state EntityState) *Entry {
	if entity == nil {
		panic("persistence: cannot track a nil entity")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.index[entity]; ok {
		switch {
		case e.State == Added && state == Modified:
		case e.State == Added && state == Deleted:
			t.removeLocked(entity)
			e.State = Detached
		case state == Detached:
			t.removeLocked(entity)
			e.State = Detached
		default:
			e.State = state
		}
		return e
	}

	e := &Entry{Entity: entity, State: state}
	if state == Detached {
		return e
	}
	if tok, ok := entity.(ConcurrencyTokened); ok && state != Added {
		e.OriginalToken = tok.ConcurrencyToken()
	}
	t.entries = append(t.entries, e)
	t.index[entity] = e
	return e
}

// Entry returns the entry for entity, or a Detached entry when untracked
func (t *ChangeTracker) Entry(entity any) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.index[entity]; ok {
		return e
	}
	return &Entry{Entity: entity, State: Detached}
}

// Entries returns a snapshot of all tracked entries in tracking order. The
// slice is owned by the caller; the entries themselves are shared.
func (t *ChangeTracker) Entries() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Pending returns copies of the Added, Modified and Deleted entries, taken
// under the lock. A save works on the copies, so a commit still running in
// the background never races with the next save reading entry state.
func (t *ChangeTracker) Pending() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.State.IsPending() {
			snap := *e
			snap.live = e
			out = append(out, &snap)
		}
	}
	return out
}

// HasChanges reports whether any entry is Added, Modified or Deleted
func (t *ChangeTracker) HasChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.State.IsPending() {
			return true
		}
	}
	return false
}

// AcceptAll marks the given entries as saved: Added and Modified become
// Unchanged, Deleted entries are detached. For Pending snapshots the tracked
// entry is updated, unless it was retracked with another state meanwhile.
func (t *ChangeTracker) AcceptAll(entries []*Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, saved := range entries {
		e := saved
		if saved.live != nil {
			e = saved.live
			if e.State != saved.State {
				continue
			}
		}
		switch e.State {
		case Added, Modified:
			e.State = Unchanged
			if tok, ok := e.Entity.(ConcurrencyTokened); ok {
				e.OriginalToken = tok.ConcurrencyToken()
			}
		case Deleted:
			t.removeLocked(e.Entity)
			e.State = Detached
		}
	}
}

// Clear detaches every entity
func (t *ChangeTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.State = Detached
	}
	t.entries = nil
	t.index = make(map[any]*Entry)
}

// Len returns the number of tracked entities
func (t *ChangeTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *ChangeTracker) removeLocked(entity any) {
	delete(t.index, entity)
	for i, e := range t.entries {
		if e.Entity == entity {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}
