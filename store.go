package boardflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StoreEventType classifies board store notifications.
type StoreEventType string

const (
	// StoreEventApplied means effects were applied to the board.
	StoreEventApplied StoreEventType = "applied"

	// StoreEventReplaced means the whole board was swapped out.
	StoreEventReplaced StoreEventType = "replaced"
)

// StoreEvent is one board change notification.
type StoreEvent struct {
	Type     StoreEventType `json:"type"`
	Revision int64          `json:"revision"`
	Effects  []Effect       `json:"effects,omitempty"`
	Snapshot *Snapshot      `json:"snapshot"`
}

// BoardStore owns a live board and is the only place effects become
// state. The pipeline itself never mutates; callers that want a
// persistent board run the pipeline against Snapshot() and hand the
// resulting effects to Apply.
//
// Thread-safe for concurrent access.
type BoardStore struct {
	mu       sync.RWMutex
	snap     *Snapshot
	revision int64
	subs     []chan StoreEvent
}

// NewBoardStore creates a store around an initial board. A nil initial
// board starts empty.
func NewBoardStore(initial *Snapshot) *BoardStore {
	if initial == nil {
		initial = NewSnapshot()
	}
	return &BoardStore{snap: initial.Clone()}
}

// Snapshot returns a copy of the current board. Callers may mutate the
// copy freely.
func (b *BoardStore) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Clone()
}

// Revision returns the current board revision. It increments once per
// successful Apply or Replace.
func (b *BoardStore) Revision() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

// Apply applies effects atomically and returns the resulting board.
// On error the board is unchanged.
func (b *BoardStore) Apply(effects []Effect) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := ApplyEffects(b.snap, effects)
	if err != nil {
		return nil, err
	}
	b.snap = next
	b.revision++

	b.emitLocked(StoreEvent{
		Type:     StoreEventApplied,
		Revision: b.revision,
		Effects:  effects,
		Snapshot: next.Clone(),
	})
	return next.Clone(), nil
}

// Replace swaps the whole board, e.g. after loading from disk.
func (b *BoardStore) Replace(snap *Snapshot) {
	if snap == nil {
		snap = NewSnapshot()
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snap = snap.Clone()
	b.revision++

	b.emitLocked(StoreEvent{
		Type:     StoreEventReplaced,
		Revision: b.revision,
		Snapshot: b.snap.Clone(),
	})
}

// Subscribe returns a channel of board change notifications. The channel
// is closed when the context is canceled. Slow subscribers drop events
// rather than block appliers.
func (b *BoardStore) Subscribe(ctx context.Context) <-chan StoreEvent {
	b.mu.Lock()
	ch := make(chan StoreEvent, 16)
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		close(ch)
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
	}()

	return ch
}

// emitLocked sends an event to all subscribers. Caller must hold b.mu.
func (b *BoardStore) emitLocked(event StoreEvent) {
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Skip if buffer is full.
		}
	}
}

// SaveFile writes the current board as indented JSON, atomically via a
// temp file rename.
func (b *BoardStore) SaveFile(path string) error {
	snap := b.Snapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create board directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on error.
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// LoadBoardFile reads a board saved by SaveFile. A missing file yields
// an empty board, not an error.
func LoadBoardFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse board file %s: %w", path, err)
	}
	return &snap, nil
}
