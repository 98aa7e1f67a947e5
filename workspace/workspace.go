// Package workspace holds a caller-owned live tag list and the explicit edit
// operations allowed on it: add, edit text, change weight, recategorize,
// remove and move. The tokenizer, validator and serializer never keep a
// reference to a Workspace; callers pass Tags() into them and feed results
// back through Add or Replace.
package workspace

import (
	"fmt"
	"sync"

	"tagpipe/types"

	"github.com/google/uuid"
)

// MaxUndoDepth bounds the number of snapshots kept for Undo
const MaxUndoDepth = 50

// Workspace is a thread-safe ordered tag list with bounded undo history
type Workspace struct {
	mu      sync.RWMutex // Protects all fields
	tags    []types.Tag
	history [][]types.Tag
	newID   func() string
}

// New creates an empty Workspace that assigns uuid ids to tags added without one
func New() *Workspace {
	return &Workspace{
		tags:    make([]types.Tag, 0),
		history: make([][]types.Tag, 0),
		newID:   uuid.NewString,
	}
}

// Tags returns a copy of the live list in order
func (w *Workspace) Tags() []types.Tag {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return cloneTags(w.tags)
}

// Len returns the number of tags
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.tags)
}

// Add appends tags in order. Tags without an id get one; weights are clamped
// and empty en text is rejected before anything is appended.
func (w *Workspace) Add(tags ...types.Tag) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prepared := make([]types.Tag, 0, len(tags))
	for i, t := range tags {
		cleaned, err := t.WithText(t.EN, t.JA)
		if err != nil {
			return fmt.Errorf("add tag %d: %w", i, err)
		}
		if cleaned.ID == "" {
			cleaned.ID = w.newID()
		}
		prepared = append(prepared, cleaned.WithWeight(cleaned.Weight))
	}

	w.snapshot()
	w.tags = append(w.tags, prepared...)
	return nil
}

// Replace swaps the whole list, typically with a freshly validated record
func (w *Workspace) Replace(tags []types.Tag) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snapshot()
	w.tags = cloneTags(tags)
}

// EditText changes the surface forms of the tag with the given id
func (w *Workspace) EditText(id, en, ja string) error {
	return w.update(id, func(t types.Tag) (types.Tag, error) {
		return t.WithText(en, ja)
	})
}

// SetWeight changes the weight of the tag with the given id; out-of-range values are clamped
func (w *Workspace) SetWeight(id string, weight float64) error {
	return w.update(id, func(t types.Tag) (types.Tag, error) {
		return t.WithWeight(weight), nil
	})
}

// Recategorize moves the tag with the given id to a new category
func (w *Workspace) Recategorize(id string, c types.Category) error {
	return w.update(id, func(t types.Tag) (types.Tag, error) {
		return t.WithCategory(c), nil
	})
}

// Remove deletes the tag with the given id
func (w *Workspace) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("tag %s not found", id)
	}

	w.snapshot()
	w.tags = append(w.tags[:idx:idx], w.tags[idx+1:]...)
	return nil
}

// Move relocates the tag with the given id to position to, shifting the rest
func (w *Workspace) Move(id string, to int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.indexOf(id)
	if from < 0 {
		return fmt.Errorf("tag %s not found", id)
	}
	if to < 0 || to >= len(w.tags) {
		return fmt.Errorf("move target %d out of range [0, %d)", to, len(w.tags))
	}
	if from == to {
		return nil
	}

	w.snapshot()
	tag := w.tags[from]
	rest := append(cloneTags(w.tags[:from]), w.tags[from+1:]...)
	moved := make([]types.Tag, 0, len(w.tags))
	moved = append(moved, rest[:to]...)
	moved = append(moved, tag)
	moved = append(moved, rest[to:]...)
	w.tags = moved
	return nil
}

// Undo restores the list as it was before the last mutation. It reports false
// when there is nothing left to undo.
func (w *Workspace) Undo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.history) == 0 {
		return false
	}
	last := len(w.history) - 1
	w.tags = w.history[last]
	w.history = w.history[:last]
	return true
}

// UndoDepth returns the number of snapshots available to Undo
func (w *Workspace) UndoDepth() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.history)
}

// Reset clears tags and history
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tags = make([]types.Tag, 0)
	w.history = make([][]types.Tag, 0)
}

func (w *Workspace) update(id string, fn func(types.Tag) (types.Tag, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("tag %s not found", id)
	}
	updated, err := fn(w.tags[idx])
	if err != nil {
		return err
	}

	w.snapshot()
	w.tags[idx] = updated
	return nil
}

// indexOf must be called with mu held
func (w *Workspace) indexOf(id string) int {
	for i, t := range w.tags {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// snapshot records the current list for Undo and enforces MaxUndoDepth.
// Must be called with mu held, before the mutation.
func (w *Workspace) snapshot() {
	w.history = append(w.history, cloneTags(w.tags))
	if len(w.history) <= MaxUndoDepth {
		return
	}

	// Copy so dropped snapshots are eligible for garbage collection
	excess := len(w.history) - MaxUndoDepth
	bounded := make([][]types.Tag, MaxUndoDepth)
	copy(bounded, w.history[excess:])
	w.history = bounded
}

func cloneTags(tags []types.Tag) []types.Tag {
	out := make([]types.Tag, len(tags))
	copy(out, tags)
	return out
}
