package paster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pyropy/paster/core/model"
)

var (
	ErrOutOfRange = errors.New("fragment sequence out of range")
	ErrIncomplete = errors.New("fragment table is not complete")
)

// FragmentTable holds one write-once slot per expected sequence number.
// A single mutex covers the slot write and the fill counter.
type FragmentTable struct {
	mu     sync.Mutex
	slots  []*model.Fragment
	filled int
	done   chan struct{}
}

func NewFragmentTable(n int) *FragmentTable {
	t := &FragmentTable{
		slots: make([]*model.Fragment, n),
		done:  make(chan struct{}),
	}
	if n == 0 {
		close(t.done)
	}

	return t
}

// TryStore stores f in its slot if the slot is empty. It returns true only
// for the call that performed the insertion.
func (t *FragmentTable) TryStore(f model.Fragment) (bool, error) {
	if int64(f.Sequence) >= int64(len(t.slots)) {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, f.Sequence, len(t.slots))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots[f.Sequence] != nil {
		return false, nil
	}

	t.slots[f.Sequence] = &f
	t.filled++
	if t.filled == len(t.slots) {
		close(t.done)
	}

	return true, nil
}

// IsComplete reports whether every slot is filled. Once true it stays true.
func (t *FragmentTable) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.filled == len(t.slots)
}

// Done is closed when the last slot is filled.
func (t *FragmentTable) Done() <-chan struct{} {
	return t.done
}

func (t *FragmentTable) Filled() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.filled
}

// Len returns the number of slots.
func (t *FragmentTable) Len() int {
	return len(t.slots)
}

// Missing returns the sequence numbers of empty slots in ascending order.
func (t *FragmentTable) Missing() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	missing := make([]int, 0, len(t.slots)-t.filled)
	for i, s := range t.slots {
		if s == nil {
			missing = append(missing, i)
		}
	}

	return missing
}

// Snapshot returns all fragments ordered by sequence number. It fails
// until the table is complete.
func (t *FragmentTable) Snapshot() ([]model.Fragment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.filled != len(t.slots) {
		return nil, fmt.Errorf("%w: %d of %d filled", ErrIncomplete, t.filled, len(t.slots))
	}

	fragments := make([]model.Fragment, len(t.slots))
	for i, s := range t.slots {
		fragments[i] = *s
	}

	return fragments, nil
}
