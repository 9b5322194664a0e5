package interlock

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// fakeProXR accepts one connection and answers each three-byte command
// with the scripted reply bytes.
func fakeProXR(t *testing.T, replies [][]byte) model.InterlockCard {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		for _, reply := range replies {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return model.InterlockCard{Server: host, Port: port, Category: "proxr", Enabled: true}
}

func proxrCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestProXRUnlockQueriesStateBack(t *testing.T) {
	// Ack for the set command, then relay-on for the status query.
	card := fakeProXR(t, [][]byte{{85}, {1}})
	d := &ProXRDriver{}
	state, err := d.SendCommand(proxrCtx(t), card, 4, model.StateUnlocked)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if state != model.StateUnlocked {
		t.Fatalf("state = %v, want unlocked", state)
	}
}

func TestProXRLock(t *testing.T) {
	card := fakeProXR(t, [][]byte{{85}, {0}})
	d := &ProXRDriver{}
	state, err := d.SendCommand(proxrCtx(t), card, 0, model.StateLocked)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if state != model.StateLocked {
		t.Fatalf("state = %v, want locked", state)
	}
}

func TestProXRDisagreeingStatusIsUnknown(t *testing.T) {
	// The status read reports neither on nor off.
	card := fakeProXR(t, [][]byte{{85}, {7}})
	d := &ProXRDriver{}
	state, err := d.SendCommand(proxrCtx(t), card, 0, model.StateLocked)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if state != model.StateUnknown {
		t.Fatalf("state = %v, want unknown", state)
	}
}

func TestProXRReplyNoiseIgnored(t *testing.T) {
	// Replies may carry leading noise; only the last byte counts.
	card := fakeProXR(t, [][]byte{{85}, {0, 0, 85, 1}})
	d := &ProXRDriver{}
	state, err := d.SendCommand(proxrCtx(t), card, 2, model.StateUnlocked)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if state != model.StateUnlocked {
		t.Fatalf("state = %v, want unlocked", state)
	}
}

func TestProXRConnectionRefused(t *testing.T) {
	card := model.InterlockCard{Server: "127.0.0.1", Port: 1, Category: "proxr", Enabled: true}
	d := &ProXRDriver{}
	state, err := d.SendCommand(proxrCtx(t), card, 0, model.StateLocked)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if state != model.StateUnknown {
		t.Fatalf("state = %v, want unknown", state)
	}
}
