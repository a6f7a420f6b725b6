package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/netio"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// fakeServer accepts exactly one connection and answers each request with
// the response produced by respond, until the connection closes.
func fakeServer(t *testing.T, respond func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte)) string {
	t.Helper()
	ln, err := netio.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	addr := ln.Addr()

	go func() {
		conn, err := ln.Accept(netio.WithRingBuffer(4096))
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			id, op, fieldID, payload, err := readRequest(conn, 2*time.Second)
			if err != nil {
				return
			}
			status, respPayload := respond(op, fieldID, payload)
			if err := writeResponse(conn, id, status, respPayload); err != nil {
				return
			}
		}
	}()

	return addr
}

func TestClientGetValueSuccess(t *testing.T) {
	addr := fakeServer(t, func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte) {
		if op != OpGetValue || fieldID != "localhost:motor_x.position" {
			return mxerr.NotFound, []byte("unexpected request")
		}
		return mxerr.Unknown, []byte("1.25")
	})

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	v, err := c.GetValue(context.Background(), "localhost:motor_x.position", wire.Double, nil, 0)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got := v.Scalars[0].F64; got != 1.25 {
		t.Errorf("GetValue = %v, want 1.25", got)
	}
}

func TestClientGetFieldType(t *testing.T) {
	addr := fakeServer(t, func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte) {
		return mxerr.Unknown, []byte("double 3")
	})

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	dt, dims, err := c.GetFieldType(context.Background(), "localhost:r.values")
	if err != nil {
		t.Fatalf("GetFieldType: %v", err)
	}
	if dt != wire.Double {
		t.Errorf("datatype = %v, want Double", dt)
	}
	if len(dims) != 1 || dims[0] != 3 {
		t.Errorf("dims = %v, want [3]", dims)
	}
}

func TestClientPutValue(t *testing.T) {
	var gotPayload string
	addr := fakeServer(t, func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte) {
		gotPayload = string(payload)
		return mxerr.Unknown, nil
	})

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	v := wire.NewScalarValue(wire.Long, wire.Scalar{I64: 7})
	if err := c.PutValue(context.Background(), "localhost:a.value", v); err != nil {
		t.Fatalf("PutValue: %v", err)
	}
	if gotPayload != "7" {
		t.Errorf("server received payload %q, want %q", gotPayload, "7")
	}
}

func TestClientGetValueNotFound(t *testing.T) {
	addr := fakeServer(t, func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte) {
		return mxerr.NotFound, []byte("no such field")
	})

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.GetValue(context.Background(), "localhost:ghost.value", wire.Double, nil, 0)
	if !mxerr.IsKind(err, mxerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClientGetValueTypeMismatch(t *testing.T) {
	addr := fakeServer(t, func(op Opcode, fieldID string, payload []byte) (mxerr.Kind, []byte) {
		return mxerr.TypeMismatch, []byte("field is a string")
	})

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.GetValue(context.Background(), "localhost:r.name", wire.Double, nil, 0)
	if !mxerr.IsKind(err, mxerr.TypeMismatch) {
		t.Fatalf("expected TypeMismatch, got %v", err)
	}
}

func TestDialConnectionRefused(t *testing.T) {
	ln, err := netio.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	addr := ln.Addr()
	if err := ln.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = Dial(addr)
	if !mxerr.IsKind(err, mxerr.ConnectionRefused) {
		t.Fatalf("expected ConnectionRefused, got %v", err)
	}
}

func TestClientConnectionLostMidCall(t *testing.T) {
	ln, err := netio.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	addr := ln.Addr()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _, _, _, _ = readRequest(conn, 2*time.Second)
		_ = conn.Close()
	}()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	_, err = c.GetValue(context.Background(), "localhost:a.value", wire.Double, nil, 0)
	if err == nil {
		t.Fatal("expected an error when the server closes mid-call")
	}
}
