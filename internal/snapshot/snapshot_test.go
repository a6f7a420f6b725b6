package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nbeaver/mxautosave/internal/autosave"
	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/registry"
	"github.com/nbeaver/mxautosave/internal/rpc"
	"github.com/nbeaver/mxautosave/internal/variable"
	"github.com/nbeaver/mxautosave/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type spyDriver struct {
	received, sent int
	recvValue      wire.Scalar
	recvErr        error
}

func (d *spyDriver) ReceiveVariable(ctx context.Context, r *registry.Record) error {
	d.received++
	if d.recvErr != nil {
		return d.recvErr
	}
	fld, _ := variable.GetVariablePointer(r)
	fld.Value.Scalars[0] = d.recvValue
	return nil
}

func (d *spyDriver) SendVariable(ctx context.Context, r *registry.Record) error {
	d.sent++
	return nil
}

func newBinding(t *testing.T, name string, dt wire.Datatype) (*autosave.Binding, *spyDriver) {
	t.Helper()
	defaults := []field.Defaults{{Name: variable.ValueFieldName, Datatype: dt}}
	table, err := field.ResolveTable(defaults)
	if err != nil {
		t.Fatalf("ResolveTable: %v", err)
	}
	driverName := name + "_drv"
	rec := &registry.Record{Name: name, Driver: &registry.Driver{Name: driverName}, Fields: table}
	id := rpc.FieldID{Host: "localhost", Record: name, Field: "value"}
	b := &autosave.Binding{ReadFieldID: id, ReadRecord: rec, WriteFieldID: id, WriteRecord: rec}
	return b, &spyDriver{}
}

func TestSaveProducesExpectedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A")

	aBind, aDrv := newBinding(t, "a", wire.Long)
	aDrv.recvValue = wire.Scalar{I64: 7}
	bBind, bDrv := newBinding(t, "b", wire.Double)
	bDrv.recvValue = wire.Scalar{F64: 3.14}

	drivers := variable.Drivers{"a_drv": aDrv, "b_drv": bDrv}
	codec := wire.NewCodec()

	if err := Save(context.Background(), path, []*autosave.Binding{aBind, bBind}, drivers, codec, discardLogger()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "a.value  7\nb.value  3.14\n*\n"
	if string(got) != want {
		t.Fatalf("snapshot content = %q, want %q", got, want)
	}
}

func TestRestoreHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A")
	if err := os.WriteFile(path, []byte("motor_x.position  1.2500000000\n*\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, drv := newBinding(t, "motor_x.position", wire.Double)
	b.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "motor_x", Field: "position"}
	b.WriteFieldID = b.ReadFieldID
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}
	codec := wire.NewCodec()

	if err := Restore(context.Background(), path, filepath.Join(dir, "B-missing"), []*autosave.Binding{b}, drivers, codec, discardLogger()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if drv.sent != 1 {
		t.Fatalf("sent = %d, want 1", drv.sent)
	}
	fld, _ := variable.GetVariablePointer(b.WriteRecord)
	if got := fld.Value.Scalars[0].F64; got != 1.25 {
		t.Fatalf("restored value = %v, want 1.25", got)
	}
}

func TestRestorePicksOlderCompleteOverNewerIncomplete(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "A")
	pathB := filepath.Join(dir, "B")

	mustWrite(t, pathB, "motor_x.position  1.0000000000\n*\n")
	time.Sleep(50 * time.Millisecond)
	mustWrite(t, pathA, "motor_x.position  2.0000000000\n") // no marker: incomplete, but newer

	b, drv := newBinding(t, "motor_x.position", wire.Double)
	b.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "motor_x", Field: "position"}
	b.WriteFieldID = b.ReadFieldID
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}

	if err := Restore(context.Background(), pathA, pathB, []*autosave.Binding{b}, drivers, wire.NewCodec(), discardLogger()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	fld, _ := variable.GetVariablePointer(b.WriteRecord)
	if got := fld.Value.Scalars[0].F64; got != 1.0 {
		t.Fatalf("restored value = %v, want 1.0 (from the complete, older file B)", got)
	}
}

func TestRestoreBothFilesAbsentWarnsAndRestoresNothing(t *testing.T) {
	dir := t.TempDir()
	b, drv := newBinding(t, "motor_x.position", wire.Double)
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}

	err := Restore(context.Background(), filepath.Join(dir, "missing-a"), filepath.Join(dir, "missing-b"),
		[]*autosave.Binding{b}, drivers, wire.NewCodec(), discardLogger())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if drv.sent != 0 {
		t.Fatalf("sent = %d, want 0 when neither file exists", drv.sent)
	}
}

func TestRestoreBothFilesIncompleteRestoresNothing(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "A")
	pathB := filepath.Join(dir, "B")
	mustWrite(t, pathA, "motor_x.position  1.0\n")
	mustWrite(t, pathB, "motor_x.position  2.0\n")

	b, drv := newBinding(t, "motor_x.position", wire.Double)
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}

	if err := Restore(context.Background(), pathA, pathB, []*autosave.Binding{b}, drivers, wire.NewCodec(), discardLogger()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if drv.sent != 0 {
		t.Fatalf("sent = %d, want 0 when neither file is complete", drv.sent)
	}
}

func TestRestoreMismatchedEntryNameLogsAndContinues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A")
	mustWrite(t, path, "a.value  1\nWRONG.value  2\nc.value  3\n*\n")

	bA, drvA := newBinding(t, "a", wire.Long)
	bA.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "a", Field: "value"}
	bA.WriteFieldID = bA.ReadFieldID
	bB, drvB := newBinding(t, "b", wire.Long)
	bB.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "b", Field: "value"}
	bB.WriteFieldID = bB.ReadFieldID
	bC, drvC := newBinding(t, "c", wire.Long)
	bC.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "c", Field: "value"}
	bC.WriteFieldID = bC.ReadFieldID

	drivers := variable.Drivers{
		bA.WriteRecord.Driver.Name: drvA,
		bB.WriteRecord.Driver.Name: drvB,
		bC.WriteRecord.Driver.Name: drvC,
	}

	err := Restore(context.Background(), path, filepath.Join(dir, "missing"),
		[]*autosave.Binding{bA, bB, bC}, drivers, wire.NewCodec(), discardLogger())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if drvA.sent != 1 {
		t.Fatalf("entry a: sent = %d, want 1", drvA.sent)
	}
	if drvB.sent != 0 {
		t.Fatalf("entry b: sent = %d, want 0 (its line was consumed as the mismatched 'WRONG' line)", drvB.sent)
	}
}

func TestRestoreBackupIsCreatedBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A")
	mustWrite(t, path, "a.value  7\n*\n")

	b, drv := newBinding(t, "a", wire.Long)
	b.ReadFieldID = rpc.FieldID{Host: "localhost", Record: "a", Field: "value"}
	b.WriteFieldID = b.ReadFieldID
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}

	if err := Restore(context.Background(), path, filepath.Join(dir, "missing"), []*autosave.Binding{b}, drivers, wire.NewCodec(), discardLogger()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(path + "_bak"); err != nil {
		t.Fatalf("expected backup file to exist: %v", err)
	}
}

func TestSaveWritesLastKnownValueWhenRefreshFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A")

	b, drv := newBinding(t, "a", wire.Long)
	drv.recvErr = mxerr.New("snapshot", mxerr.ConnectionLost, "gone")
	drivers := variable.Drivers{b.WriteRecord.Driver.Name: drv}

	if err := Save(context.Background(), path, []*autosave.Binding{b}, drivers, wire.NewCodec(), discardLogger()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "a.value  0\n*\n"
	if string(got) != want {
		t.Fatalf("snapshot content = %q, want %q (last known zero value still written)", got, want)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}
