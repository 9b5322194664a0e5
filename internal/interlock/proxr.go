package interlock

import (
	"context"
	"fmt"
	"net"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// ProXRDriver controls ProXR relay banks over raw TCP.  Commands are
// three-byte sequences (0xFE, opcode+channel, bank); replies may carry
// leading noise, so only the final byte of a read is significant.
// See the ProXR quick-start guide for the opcode layout.
type ProXRDriver struct {
	Dialer net.Dialer
}

const (
	proxrRelayOff = 0
	proxrRelayOn  = 1

	proxrOpOff   = 99  // + channel: turn relay off
	proxrOpOn    = 107 // + channel: turn relay on
	proxrOpQuery = 115 // + channel: read relay status
)

func (d *ProXRDriver) SendCommand(ctx context.Context, card model.InterlockCard, channel int, cmd Command) (model.InterlockState, error) {
	addr := fmt.Sprintf("%s:%d", card.Server, card.Port)
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return model.StateUnknown, fmt.Errorf("communication error: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var opcode int
	switch cmd {
	case model.StateLocked:
		opcode = proxrOpOff
	case model.StateUnlocked:
		opcode = proxrOpOn
	default:
		return model.StateUnknown, fmt.Errorf("unsupported command: %v", cmd)
	}
	if _, err := d.exchange(conn, opcode+channel); err != nil {
		return model.StateUnknown, err
	}

	// Read the relay back rather than trusting the acknowledgement.
	status, err := d.exchange(conn, proxrOpQuery+channel)
	if err != nil {
		return model.StateUnknown, err
	}
	switch status {
	case proxrRelayOff:
		return model.StateLocked, nil
	case proxrRelayOn:
		return model.StateUnlocked, nil
	}
	return model.StateUnknown, nil
}

// exchange writes one command and returns the last byte of the reply.
func (d *ProXRDriver) exchange(conn net.Conn, opcode int) (byte, error) {
	msg := []byte{254, byte(opcode), 1}
	sent := 0
	for sent < len(msg) {
		n, err := conn.Write(msg[sent:])
		if err != nil {
			return 0, fmt.Errorf("communication error: %w", err)
		}
		sent += n
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("communication error: %w", err)
	}
	return buf[n-1], nil
}
