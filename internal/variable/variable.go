// Package variable implements the thin variable-binding façade of §4.F:
// "read/write value by name" over the conventional "value" field: a local
// get-pointer lookup, plus send and receive, which delegate to a driver.
// Grounded on the teacher's narrow-interface style (agent.Queue,
// agent.Transport): small interfaces the orchestrator depends on,
// satisfied by concrete per-record-kind implementations.
package variable

import (
	"context"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/registry"
)

// ValueFieldName is the conventional principal field name of a "variable"
// record (§4.F).
const ValueFieldName = "value"

// Driver is the per-record-kind delegate for the two network-facing
// directions. Local (proxy) records that never touch a remote server may
// have no entry in Drivers; Send/Receive then no-op successfully,
// matching a plain in-memory variable.
type Driver interface {
	// SendVariable flushes the record's local "value" field to hardware or
	// to the network (§4.F "local -> hardware/network").
	SendVariable(ctx context.Context, r *registry.Record) error
	// ReceiveVariable fetches the current hardware/network value into the
	// record's local "value" field (§4.F "hardware/network -> local").
	ReceiveVariable(ctx context.Context, r *registry.Record) error
}

// Drivers maps a record's Driver.Name to the variable.Driver that
// implements its network-facing directions. A record whose driver name is
// absent from this table is treated as a pure local variable: Send/Receive
// succeed without any I/O.
type Drivers map[string]Driver

// GetVariablePointer returns the resolved field-table entry backing r's
// "value" field (§4.F "get_variable_pointer"), giving the caller direct
// access to its shape and current Value.
func GetVariablePointer(r *registry.Record) (*field.Resolved, error) {
	v, ok := r.FieldByName(ValueFieldName)
	if !ok {
		return nil, mxerr.Newf("variable", mxerr.NotFound,
			"record %q has no %q field", r.Name, ValueFieldName)
	}
	return v, nil
}

// SendVariable flushes r's local value via the driver registered for
// r.Driver.Name, if any.
func (d Drivers) SendVariable(ctx context.Context, r *registry.Record) error {
	if _, err := GetVariablePointer(r); err != nil {
		return err
	}
	drv, ok := d[r.Driver.Name]
	if !ok {
		return nil
	}
	return drv.SendVariable(ctx, r)
}

// ReceiveVariable fetches r's value via the driver registered for
// r.Driver.Name, if any.
func (d Drivers) ReceiveVariable(ctx context.Context, r *registry.Record) error {
	if _, err := GetVariablePointer(r); err != nil {
		return err
	}
	drv, ok := d[r.Driver.Name]
	if !ok {
		return nil
	}
	return drv.ReceiveVariable(ctx, r)
}
