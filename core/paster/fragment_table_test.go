package paster

import (
	"errors"
	"sync"
	"testing"

	"github.com/pyropy/paster/core/model"
)

func TestTryStoreWriteOnce(t *testing.T) {
	table := NewFragmentTable(3)

	first := fragment(t, 1, row(1))
	second := fragment(t, 1, row(2), row(3))

	stored, err := table.TryStore(first)
	if err != nil || !stored {
		t.Fatalf("first TryStore = %v, %v", stored, err)
	}

	stored, err = table.TryStore(second)
	if err != nil || stored {
		t.Fatalf("duplicate TryStore = %v, %v", stored, err)
	}

	if table.Filled() != 1 {
		t.Fatalf("expected 1 filled slot, got %d", table.Filled())
	}

	// the first writer's fragment is kept
	table.TryStore(fragment(t, 0, row(0)))
	table.TryStore(fragment(t, 2, row(4)))

	fragments, err := table.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if fragments[1].Header.Height != 1 {
		t.Fatalf("slot 1 was overwritten: height %d", fragments[1].Header.Height)
	}
}

func TestTryStoreOutOfRange(t *testing.T) {
	table := NewFragmentTable(2)

	stored, err := table.TryStore(model.Fragment{Sequence: 2})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if stored {
		t.Fatal("out of range fragment reported as stored")
	}
	if table.Filled() != 0 {
		t.Fatalf("expected empty table, got %d filled", table.Filled())
	}
}

func TestCompletion(t *testing.T) {
	table := NewFragmentTable(3)

	for seq := uint32(0); seq < 3; seq++ {
		if table.IsComplete() {
			t.Fatalf("complete with %d of 3 slots filled", seq)
		}
		select {
		case <-table.Done():
			t.Fatal("done closed early")
		default:
		}

		if _, err := table.TryStore(fragment(t, seq, row(byte(seq)))); err != nil {
			t.Fatalf("TryStore: %v", err)
		}
	}

	if !table.IsComplete() {
		t.Fatal("expected complete table")
	}
	select {
	case <-table.Done():
	default:
		t.Fatal("done not closed on completion")
	}

	// duplicates after completion keep it complete
	table.TryStore(fragment(t, 0, row(9)))
	if !table.IsComplete() || table.Filled() != 3 {
		t.Fatalf("completion not monotonic: filled %d", table.Filled())
	}
}

func TestMissing(t *testing.T) {
	table := NewFragmentTable(4)
	table.TryStore(fragment(t, 1, row(1)))
	table.TryStore(fragment(t, 3, row(3)))

	missing := table.Missing()
	if len(missing) != 2 || missing[0] != 0 || missing[1] != 2 {
		t.Fatalf("Missing() = %v", missing)
	}
}

func TestSnapshotIncomplete(t *testing.T) {
	table := NewFragmentTable(2)
	table.TryStore(fragment(t, 0, row(0)))

	if _, err := table.Snapshot(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestSnapshotOrder(t *testing.T) {
	table := NewFragmentTable(4)
	for _, seq := range []uint32{2, 0, 3, 1} {
		table.TryStore(fragment(t, seq, row(byte(seq))))
	}

	fragments, err := table.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for i, f := range fragments {
		if f.Sequence != uint32(i) {
			t.Fatalf("slot %d holds sequence %d", i, f.Sequence)
		}
	}
}

func TestEmptyTableComplete(t *testing.T) {
	table := NewFragmentTable(0)
	if !table.IsComplete() {
		t.Fatal("empty table should be complete")
	}
	<-table.Done()
}

// Two or more workers storing the same sequence concurrently: exactly one
// wins and the counter moves by one.
func TestConcurrentDuplicateStore(t *testing.T) {
	const writers = 64

	for round := 0; round < 20; round++ {
		table := NewFragmentTable(5)
		f := fragment(t, 3, row(3))

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			mu    sync.Mutex
			wins  int
		)

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start

				stored, err := table.TryStore(f)
				if err != nil {
					t.Errorf("TryStore: %v", err)
					return
				}
				if stored {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}

		close(start)
		wg.Wait()

		if wins != 1 {
			t.Fatalf("round %d: %d writers won slot 3", round, wins)
		}
		if table.Filled() != 1 {
			t.Fatalf("round %d: filled %d, want 1", round, table.Filled())
		}
	}
}

func TestConcurrentFill(t *testing.T) {
	const n = 50
	table := NewFragmentTable(n)

	fragments := make([]model.Fragment, n)
	for i := range fragments {
		fragments[i] = fragment(t, uint32(i), row(byte(i)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				table.TryStore(fragments[(i*7+w)%n])
			}
		}(w)
	}
	wg.Wait()

	if !table.IsComplete() {
		t.Fatalf("expected complete table, missing %v", table.Missing())
	}
}
