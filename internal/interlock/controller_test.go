package interlock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// memoryStateStore records interlock state updates in memory.
type memoryStateStore struct {
	mu      sync.Mutex
	states  map[uint64]model.InterlockState
	replies map[uint64]string
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{
		states:  make(map[uint64]model.InterlockState),
		replies: make(map[uint64]string),
	}
}

func (s *memoryStateStore) UpdateState(_ context.Context, id uint64, state model.InterlockState, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = state
	s.replies[id] = reply
	return nil
}

func (s *memoryStateStore) state(id uint64) model.InterlockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

func (s *memoryStateStore) reply(id uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replies[id]
}

// scriptedDriver returns a fixed state and error for every command.
type scriptedDriver struct {
	state model.InterlockState
	err   error
	calls int
}

func (d *scriptedDriver) SendCommand(_ context.Context, _ model.InterlockCard, _ int, cmd Command) (model.InterlockState, error) {
	d.calls++
	if d.err != nil {
		return model.StateUnknown, d.err
	}
	if d.state == 0 {
		// Unscripted: echo the command back like a healthy device.
		return cmd, nil
	}
	return d.state, nil
}

func testInterlock(category string) model.Interlock {
	return model.Interlock{
		ID:      1,
		Card:    model.InterlockCard{ID: 2, Category: category, Enabled: true},
		Channel: 3,
	}
}

func TestControllerMockedOutWhenDisabled(t *testing.T) {
	store := newMemoryStateStore()
	driver := &scriptedDriver{}
	c := NewController(Registry{"test": driver}, store, false, time.Second)

	if err := c.Unlock(context.Background(), testInterlock("test")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if driver.calls != 0 {
		t.Fatal("disabled controller must not touch hardware")
	}
	if got := store.state(1); got != model.StateUnlocked {
		t.Fatalf("state = %v, want unlocked", got)
	}
	if !strings.Contains(store.reply(1), "mocked out") {
		t.Fatalf("reply must say the command was mocked out: %q", store.reply(1))
	}
}

func TestControllerMockedOutWhenCardDisabled(t *testing.T) {
	store := newMemoryStateStore()
	driver := &scriptedDriver{}
	c := NewController(Registry{"test": driver}, store, true, time.Second)

	il := testInterlock("test")
	il.Card.Enabled = false
	if err := c.Lock(context.Background(), il); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if driver.calls != 0 {
		t.Fatal("disabled card must not be commanded")
	}
	if got := store.state(1); got != model.StateLocked {
		t.Fatalf("state = %v, want locked", got)
	}
}

func TestControllerSuccessPersistsState(t *testing.T) {
	store := newMemoryStateStore()
	driver := &scriptedDriver{}
	c := NewController(Registry{"test": driver}, store, true, time.Second)

	if err := c.Lock(context.Background(), testInterlock("test")); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if driver.calls != 1 {
		t.Fatalf("driver calls = %d, want 1", driver.calls)
	}
	if got := store.state(1); got != model.StateLocked {
		t.Fatalf("state = %v, want locked", got)
	}
	if !strings.Contains(store.reply(1), "Lock command succeeded.") {
		t.Fatalf("reply = %q", store.reply(1))
	}
}

func TestControllerFailureRecordsUnknown(t *testing.T) {
	store := newMemoryStateStore()
	driver := &scriptedDriver{state: model.StateUnknown, err: errors.New("socket error: connection refused")}
	c := NewController(Registry{"test": driver}, store, true, time.Second)

	err := c.Unlock(context.Background(), testInterlock("test"))
	var hw *HardwareError
	if !errors.As(err, &hw) {
		t.Fatalf("expected HardwareError, got %v", err)
	}
	if hw.InterlockID != 1 {
		t.Fatalf("hardware error names interlock %d, want 1", hw.InterlockID)
	}
	if got := store.state(1); got != model.StateUnknown {
		t.Fatalf("state = %v, want unknown", got)
	}
	if !strings.Contains(store.reply(1), "Unlock command failed.") ||
		!strings.Contains(store.reply(1), "connection refused") {
		t.Fatalf("reply must carry the failure diagnostics: %q", store.reply(1))
	}
}

func TestControllerWrongResultingStateIsHardwareError(t *testing.T) {
	store := newMemoryStateStore()
	// Device answers, but the relay stayed locked.
	driver := &scriptedDriver{state: model.StateLocked}
	c := NewController(Registry{"test": driver}, store, true, time.Second)

	err := c.Unlock(context.Background(), testInterlock("test"))
	var hw *HardwareError
	if !errors.As(err, &hw) {
		t.Fatalf("expected HardwareError, got %v", err)
	}
	if got := store.state(1); got != model.StateLocked {
		t.Fatalf("state = %v, want the reported locked state", got)
	}
}

func TestControllerUnregisteredCategoryDegradesToNoop(t *testing.T) {
	store := newMemoryStateStore()
	c := NewController(Registry{}, store, true, time.Second)

	if err := c.Lock(context.Background(), testInterlock("does_not_exist")); err != nil {
		t.Fatalf("lock via noop driver: %v", err)
	}
	if got := store.state(1); got != model.StateLocked {
		t.Fatalf("state = %v, want locked", got)
	}
}
