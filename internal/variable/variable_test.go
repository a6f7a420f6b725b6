package variable

import (
	"context"
	"testing"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/registry"
	"github.com/nbeaver/mxautosave/internal/wire"
)

type fakeDriver struct {
	sent, received int
	failSend       error
}

func (f *fakeDriver) SendVariable(ctx context.Context, r *registry.Record) error {
	f.sent++
	return f.failSend
}

func (f *fakeDriver) ReceiveVariable(ctx context.Context, r *registry.Record) error {
	f.received++
	return nil
}

func newTestRecord(t *testing.T, driverName string) *registry.Record {
	t.Helper()
	defaults := []field.Defaults{
		{Name: "value", Datatype: wire.Double},
	}
	table, err := field.ResolveTable(defaults)
	if err != nil {
		t.Fatalf("ResolveTable: %v", err)
	}
	return &registry.Record{
		Name:   "v1",
		Driver: &registry.Driver{Name: driverName},
		Fields: table,
	}
}

func TestGetVariablePointerMissingField(t *testing.T) {
	r := &registry.Record{Name: "v1", Driver: &registry.Driver{Name: "net_double"}}
	if _, err := GetVariablePointer(r); err == nil {
		t.Fatal("expected NotFound error for missing value field")
	}
}

func TestSendReceiveDelegatesToRegisteredDriver(t *testing.T) {
	r := newTestRecord(t, "net_double")
	fd := &fakeDriver{}
	drivers := Drivers{"net_double": fd}

	if err := drivers.SendVariable(context.Background(), r); err != nil {
		t.Fatalf("SendVariable: %v", err)
	}
	if err := drivers.ReceiveVariable(context.Background(), r); err != nil {
		t.Fatalf("ReceiveVariable: %v", err)
	}
	if fd.sent != 1 || fd.received != 1 {
		t.Fatalf("sent=%d received=%d, want 1/1", fd.sent, fd.received)
	}
}

func TestSendReceiveNoDriverIsNoop(t *testing.T) {
	r := newTestRecord(t, "local_only")
	drivers := Drivers{}

	if err := drivers.SendVariable(context.Background(), r); err != nil {
		t.Fatalf("SendVariable: %v", err)
	}
	if err := drivers.ReceiveVariable(context.Background(), r); err != nil {
		t.Fatalf("ReceiveVariable: %v", err)
	}
}

func TestSendVariablePropagatesDriverError(t *testing.T) {
	r := newTestRecord(t, "net_double")
	wantErr := &fakeError{"boom"}
	fd := &fakeDriver{failSend: wantErr}
	drivers := Drivers{"net_double": fd}

	if err := drivers.SendVariable(context.Background(), r); err != wantErr {
		t.Fatalf("SendVariable error = %v, want %v", err, wantErr)
	}
}

type fakeError struct{ msg string }

func (e *fakeError) Error() string { return e.msg }
