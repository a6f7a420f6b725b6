package autosave

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nbeaver/mxautosave/internal/netio"
	"github.com/nbeaver/mxautosave/internal/registry"
	"github.com/nbeaver/mxautosave/internal/rpc"
	"github.com/nbeaver/mxautosave/internal/variable"
)

// fakeTypeServer answers every get_field_type request with "double" and
// every get_value with "1.5". It speaks the raw §6 wire format directly
// (rather than reusing internal/rpc's unexported server-side helpers) so
// this package can exercise NewBindings against a real socket.
func fakeTypeServer(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := netio.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	h, p, err := net.SplitHostPort(ln.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	go func() {
		conn, err := ln.Accept(netio.WithRingBuffer(4096))
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			head := make([]byte, 1+16)
			if _, _, err := conn.Receive(head, nil, 2*time.Second); err != nil {
				return
			}
			op := rpc.Opcode(head[0])
			id, err := uuid.FromBytes(head[1:17])
			if err != nil {
				return
			}

			idBuf := make([]byte, 256)
			n, _, err := conn.Receive(idBuf, [][]byte{{0}}, 2*time.Second)
			if err != nil {
				return
			}
			_ = idBuf[:n]

			if op == rpc.OpPutValue {
				lenBuf := make([]byte, 4)
				if _, _, err := conn.Receive(lenBuf, nil, 2*time.Second); err != nil {
					return
				}
				payloadLen := binary.BigEndian.Uint32(lenBuf)
				payload := make([]byte, payloadLen)
				if payloadLen > 0 {
					if _, _, err := conn.Receive(payload, nil, 2*time.Second); err != nil {
						return
					}
				}
			}

			var payload []byte
			switch op {
			case rpc.OpGetFieldType:
				payload = []byte("double")
			case rpc.OpGetValue:
				payload = []byte("1.5")
			}

			resp := make([]byte, 16+8+len(payload))
			idBytes, _ := id.MarshalBinary()
			copy(resp[0:16], idBytes)
			binary.BigEndian.PutUint32(resp[20:24], uint32(len(payload)))
			copy(resp[24:], payload)
			if _, err := conn.Send(resp); err != nil {
				return
			}
		}
	}()

	return h, p
}

func TestNewBindingsBuildsMXEntriesAndSkipsEPICS(t *testing.T) {
	host, port := fakeTypeServer(t)

	entries := []Entry{
		{Protocol: ProtocolMX, FieldID: host + "@" + port + ":r1.value"},
		{Protocol: ProtocolEPICS, FieldID: "some:pv:name"},
	}

	reg := registry.NewRegistry()
	drivers := registry.NewDriverTable()
	vdrivers := variable.Drivers{}
	pool := NewClientPool()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bindings, skipped, err := NewBindings(ctx, entries, reg, drivers, vdrivers, pool)
	if err != nil {
		t.Fatalf("NewBindings: %v", err)
	}
	if len(bindings) != 1 {
		t.Fatalf("len(bindings) = %d, want 1", len(bindings))
	}
	if len(skipped) != 1 || skipped[0].Protocol != ProtocolEPICS {
		t.Fatalf("skipped = %+v, want one EPICS entry", skipped)
	}
	if bindings[0].SnapshotKey() != "r1.value" {
		t.Fatalf("SnapshotKey = %q, want %q", bindings[0].SnapshotKey(), "r1.value")
	}
}
