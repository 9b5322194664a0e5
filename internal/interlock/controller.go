package interlock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// StateStore persists the outcome of interlock commands.  The MySQL
// repository satisfies it in production; tests supply an in-memory
// fake.
type StateStore interface {
	UpdateState(ctx context.Context, interlockID uint64, state model.InterlockState, reply string) error
}

// Controller issues lock/unlock commands through the driver registry
// and records the resulting state and diagnostic reply on each
// interlock.  Commands are idempotent: unlocking an already-unlocked
// interlock succeeds and merely refreshes the diagnostic reply.
//
// When Enabled is false, or a card is individually disabled, commands
// are mocked out: the intended state is recorded without touching
// hardware.  This mirrors how facilities bring the system up before
// the wiring is complete.
type Controller struct {
	registry Registry
	store    StateStore
	enabled  bool
	timeout  time.Duration
	now      func() time.Time
}

// NewController builds a Controller.  timeout bounds every hardware
// round-trip; each command runs under its own context so a slow door
// never blocks admission decisions for other doors or tools.
func NewController(registry Registry, store StateStore, enabled bool, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Controller{
		registry: registry,
		store:    store,
		enabled:  enabled,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lock commands the interlock into the locked state.
func (c *Controller) Lock(ctx context.Context, il model.Interlock) error {
	return c.issue(ctx, il, model.StateLocked)
}

// Unlock commands the interlock into the unlocked state.
func (c *Controller) Unlock(ctx context.Context, il model.Interlock) error {
	return c.issue(ctx, il, model.StateUnlocked)
}

// issue sends one command, persists the resulting state plus a
// composed diagnostic reply, and returns a HardwareError when the
// hardware did not end up in the commanded state.
func (c *Controller) issue(ctx context.Context, il model.Interlock, cmd Command) error {
	if !c.enabled || !il.Card.Enabled {
		reply := fmt.Sprintf("Interlock interface mocked out because interlock control is disabled. Interlock last set on %s.",
			c.now().Format(time.RFC3339))
		if err := c.store.UpdateState(ctx, il.ID, cmd, reply); err != nil {
			return err
		}
		return nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	driver := c.registry.driverFor(il.Card.Category)
	state, sendErr := driver.SendCommand(cmdCtx, il.Card, il.Channel, cmd)
	if sendErr != nil {
		state = model.StateUnknown
	}

	reply := composeReply(cmd, state, sendErr, c.now())
	if err := c.store.UpdateState(ctx, il.ID, state, reply); err != nil {
		return err
	}

	switch state {
	case model.StateUnknown:
		log.Printf("interlock: interlock %d is in an unknown state: %s", il.ID, reply)
	default:
		log.Printf("interlock: interlock %d now %s", il.ID, state)
	}

	if state != cmd {
		return &HardwareError{InterlockID: il.ID, Reply: reply}
	}
	return nil
}

// composeReply builds the most-recent-reply diagnostic string stored
// on the interlock after each command.
func composeReply(cmd Command, actual model.InterlockState, sendErr error, at time.Time) string {
	var verb string
	switch cmd {
	case model.StateUnlocked:
		verb = "Unlock"
	case model.StateLocked:
		verb = "Lock"
	default:
		verb = "Unknown"
	}
	reply := fmt.Sprintf("Reply received at %s. %s command ", at.Format(time.RFC3339), verb)
	if cmd == actual && sendErr == nil {
		return reply + "succeeded."
	}
	reply += "failed."
	if sendErr != nil {
		reply += " " + sendErr.Error()
	}
	return reply
}
