package autosave

import (
	"context"
	"fmt"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/registry"
	"github.com/nbeaver/mxautosave/internal/rpc"
	"github.com/nbeaver/mxautosave/internal/variable"
)

// Binding pairs one list entry with the local proxy record(s) and RPC
// connection(s) that realize it (§3 "Autosave list entry"): a read record
// always present, and a write record distinct from it only when the entry
// sets FlagWriteToDifferentField.
type Binding struct {
	Entry Entry

	ReadFieldID rpc.FieldID
	ReadRecord  *registry.Record

	WriteFieldID rpc.FieldID
	WriteRecord  *registry.Record // == ReadRecord unless Entry.WritesToDifferentField()
}

// SnapshotKey is the "<record>.<field>" text a snapshot line is keyed on
// (§4.I steps 2 and 4): always the *read* field's identity, even when the
// entry restores to a different write field.
func (b *Binding) SnapshotKey() string {
	return b.ReadFieldID.Record + "." + b.ReadFieldID.Field
}

// proxyVariableDriver implements variable.Driver over one remote field
// reached through a shared rpc.Client connection (§4.F's delegation target
// for an autosave "mx" entry).
type proxyVariableDriver struct {
	client  *rpc.Client
	fieldID rpc.FieldID
}

func (d *proxyVariableDriver) ReceiveVariable(ctx context.Context, r *registry.Record) error {
	fld, err := variable.GetVariablePointer(r)
	if err != nil {
		return err
	}
	v, err := d.client.GetValue(ctx, d.fieldID.String(), fld.Defaults.Datatype, fld.Dims, fld.Defaults.MaxStringLen)
	if err != nil {
		return err
	}
	fld.Value = v
	return nil
}

func (d *proxyVariableDriver) SendVariable(ctx context.Context, r *registry.Record) error {
	fld, err := variable.GetVariablePointer(r)
	if err != nil {
		return err
	}
	return d.client.PutValue(ctx, d.fieldID.String(), fld.Value)
}

// NewBindings resolves entries (only ProtocolMX is currently wired to a
// transport; see buildProxyRecord) into Bindings: one local registry.Record
// per entry (plus one for a separate write field), its datatype and
// dimensions discovered via
// get_field_type, registered into reg/drivers and given a variable.Driver
// entry in vdrivers keyed by its synthetic per-binding driver name.
//
// EPICS and epics_motor_position entries are accepted by the list-file
// parser (§6 grammar) but skipped here: the core spec defines no EPICS
// Channel Access wire format, and one would be hardware/protocol-specific
// semantics explicitly out of scope per §1's Non-goals. skipped receives
// one Entry per such line, for the caller to log.
func NewBindings(ctx context.Context, entries []Entry, reg *registry.Registry, drivers *registry.DriverTable, vdrivers variable.Drivers, pool *ClientPool) (bindings []*Binding, skipped []Entry, err error) {
	for i, e := range entries {
		if e.Protocol != ProtocolMX {
			skipped = append(skipped, e)
			continue
		}

		readID, perr := rpc.ParseFieldID(e.FieldID)
		if perr != nil {
			return nil, nil, mxerr.Wrapf("autosave", mxerr.UnparseableString, perr, "entry %d field id %q", i, e.FieldID)
		}
		readRec, perr := buildProxyRecord(ctx, fmt.Sprintf("asr%d", i), readID, reg, drivers, vdrivers, pool)
		if perr != nil {
			return nil, nil, perr
		}

		b := &Binding{Entry: e, ReadFieldID: readID, ReadRecord: readRec, WriteFieldID: readID, WriteRecord: readRec}

		if e.WritesToDifferentField() {
			writeID, perr := rpc.ParseFieldID(e.ExtraID)
			if perr != nil {
				return nil, nil, mxerr.Wrapf("autosave", mxerr.UnparseableString, perr, "entry %d extra id %q", i, e.ExtraID)
			}
			writeRec, perr := buildProxyRecord(ctx, fmt.Sprintf("asw%d", i), writeID, reg, drivers, vdrivers, pool)
			if perr != nil {
				return nil, nil, perr
			}
			b.WriteFieldID = writeID
			b.WriteRecord = writeRec
		}

		bindings = append(bindings, b)
	}
	return bindings, skipped, nil
}

// buildProxyRecord discovers id's remote shape via get_field_type and
// materialises a one-field local registry.Record ("value", §4.F) backed by
// a freshly registered driver/proxyVariableDriver pair named name.
func buildProxyRecord(ctx context.Context, name string, id rpc.FieldID, reg *registry.Registry, drivers *registry.DriverTable, vdrivers variable.Drivers, pool *ClientPool) (*registry.Record, error) {
	client, err := pool.Get(id.Addr())
	if err != nil {
		return nil, err
	}

	dt, dims, err := client.GetFieldType(ctx, id.String())
	if err != nil {
		return nil, mxerr.Wrapf("autosave", mxerr.NotFound, err, "get_field_type(%s)", id.String())
	}

	litDims := make([]field.Dim, len(dims))
	for i, n := range dims {
		litDims[i] = field.LiteralDim(n)
	}

	drv := &registry.Driver{
		Name:       name,
		Superclass: "autosave",
		Class:      "mx_proxy",
		Type:       id.String(),
		Defaults: []field.Defaults{
			{Name: variable.ValueFieldName, Datatype: dt, Dims: litDims, Flags: field.InDescription},
		},
	}
	if err := drivers.Register(drv); err != nil {
		return nil, err
	}

	table, err := field.ResolveTable(drv.Defaults)
	if err != nil {
		return nil, err
	}

	rec := &registry.Record{
		Name:       name,
		Superclass: drv.Superclass,
		Class:      drv.Class,
		Type:       drv.Type,
		Driver:     drv,
		Fields:     table,
	}
	if err := reg.Insert(rec); err != nil {
		return nil, err
	}

	vdrivers[name] = &proxyVariableDriver{client: client, fieldID: id}
	return rec, nil
}
