package interlock

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// StanfordDriver speaks the framed binary TCP protocol of the Stanford
// equipment controller.  A command is a fixed-size big-endian frame:
// a 20-byte begin marker, nine int32 fields, five single bytes and an
// 18-byte end marker.  The reply repeats the integer and byte fields
// without the markers; the command return value field decides success.
type StanfordDriver struct {
	// Dialer allows tests to point the driver at a fake device.  The
	// zero value dials with the context deadline.
	Dialer net.Dialer
}

const (
	stanfordBeginMarker = "EQCNTL_BEGIN_COMMAND"
	stanfordEndMarker   = "EQCNTL_END_COMMAND"
)

// stanfordFrame is the wire layout between the markers.
type stanfordFrame struct {
	InstructionCount int32
	CardNumber       int32
	EvenPort         int32
	OddPort          int32
	Channel          int32
	CommandReturn    int32
	CommandType      int32
	Command          int32
	Delay            int32
	SDOverload       byte
	RDOverload       byte
	ADCDone          byte
	Busy             byte
	InstructionRet   byte
}

func (d *StanfordDriver) SendCommand(ctx context.Context, card model.InterlockCard, channel int, cmd Command) (model.InterlockState, error) {
	addr := fmt.Sprintf("%s:%d", card.Server, card.Port)
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return model.StateUnknown, fmt.Errorf("socket error: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	frame := stanfordFrame{
		InstructionCount: 1,
		CardNumber:       int32(card.Number),
		EvenPort:         int32(card.EvenPort),
		OddPort:          int32(card.OddPort),
		Channel:          int32(channel),
		CommandType:      int32(cmd),
	}
	var buf bytes.Buffer
	buf.WriteString(stanfordBeginMarker)
	if err := binary.Write(&buf, binary.BigEndian, frame); err != nil {
		return model.StateUnknown, fmt.Errorf("command encode error: %w", err)
	}
	buf.WriteString(stanfordEndMarker)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return model.StateUnknown, fmt.Errorf("socket error: %w", err)
	}

	var reply stanfordFrame
	if err := binary.Read(io.LimitReader(conn, int64(binary.Size(reply))), binary.BigEndian, &reply); err != nil {
		return model.StateUnknown, fmt.Errorf("response format error: %w", err)
	}
	if reply.CommandReturn == 0 {
		return model.StateUnknown, fmt.Errorf(
			"controller refused command: instruction count = %d, card number = %d, even port = %d, odd port = %d, channel = %d, command return value = %d, busy = %d",
			reply.InstructionCount, reply.CardNumber, reply.EvenPort, reply.OddPort, reply.Channel, reply.CommandReturn, reply.Busy)
	}
	// The controller acknowledged the command; the channel is now in
	// the commanded state.
	return cmd, nil
}
