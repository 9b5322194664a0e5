// Package interlock drives the electronic locks that gate doors and
// tool power circuits.  Several controller families speak different
// wire protocols; each is a Driver selected from a registry by the
// card's category key.  The Controller wraps command dispatch with
// state bookkeeping and diagnostic reply capture.
package interlock

import (
	"context"
	"fmt"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// Command is the intent sent to a relay channel.  The values reuse the
// interlock state constants because the hardware command codes match
// the resulting states.
type Command = model.InterlockState

// Driver sends a lock/unlock command to one relay channel on a card
// and returns the state the hardware reports afterwards.  A driver
// returns StateUnknown together with an error when the device could
// not be reached or replied with something unexpected; it never
// guesses a state.
type Driver interface {
	SendCommand(ctx context.Context, card model.InterlockCard, channel int, cmd Command) (model.InterlockState, error)
}

// Registry maps card category keys to drivers.
type Registry map[string]Driver

// DefaultRegistry returns the built-in driver set.
func DefaultRegistry() Registry {
	return Registry{
		"stanford":       &StanfordDriver{},
		"web_relay_http": NewWebRelayDriver(),
		"proxr":          &ProXRDriver{},
	}
}

// driverFor returns the driver registered for the card's category, or
// a no-op driver when none is registered so that a misconfigured card
// degrades to a recorded failure instead of a panic.
func (r Registry) driverFor(category string) Driver {
	if d, ok := r[category]; ok {
		return d
	}
	return noopDriver{}
}

// noopDriver accepts every command without touching hardware.  It
// backs unregistered categories and the mocked-out path used when
// interlock control is disabled by configuration.
type noopDriver struct{}

func (noopDriver) SendCommand(_ context.Context, _ model.InterlockCard, _ int, cmd Command) (model.InterlockState, error) {
	return cmd, nil
}

// HardwareError reports a failed interlock command.  Reply carries the
// raw diagnostic payload stored on the interlock for operator
// troubleshooting.  Hardware errors are retryable; policy denials are
// not.
type HardwareError struct {
	InterlockID uint64
	Reply       string
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("interlock %d command failed: %s", e.InterlockID, e.Reply)
}
