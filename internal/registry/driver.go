// Package registry implements the record/driver registry and description
// parser/emitter of §4.E: a named database of records, per-(superclass,
// class, type) driver dispatch, and the textual description grammar that
// instantiates and serialises records.
package registry

import (
	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Driver is the static descriptor of §3: a name, a (superclass, class,
// type) classification triple, a field-defaults table, and optional
// lifecycle hooks. Field-defaults tables are declared once per driver and
// shared (read-only) by every record instance of that driver.
type Driver struct {
	Name       string
	Superclass string
	Class      string
	Type       string
	Defaults   []field.Defaults

	// CreateRecordStructures and FinishRecordInitialization mirror the two
	// driver hooks invoked by the parser's final step (§4.E step 6). Both
	// are optional; a driver with neither is a pure data record.
	CreateRecordStructures     func(*Record) error
	FinishRecordInitialization func(*Record) error

	// Open and Close are invoked by record lifecycle management outside the
	// parser (§3 "Lifecycle"); optional.
	Open  func(*Record) error
	Close func(*Record) error
}

func tripleKey(superclass, class, typ string) string {
	return superclass + "\x00" + class + "\x00" + typ
}

// DriverTable is the flat list of registered drivers, indexed by name and
// by (superclass, class, type), populated once at process start (§3
// "Lifecycle").
type DriverTable struct {
	byName   map[string]*Driver
	byTriple map[string]*Driver
}

// NewDriverTable returns an empty DriverTable.
func NewDriverTable() *DriverTable {
	return &DriverTable{
		byName:   make(map[string]*Driver),
		byTriple: make(map[string]*Driver),
	}
}

// Register adds d to the table. It errors if a driver with the same name
// or the same (superclass, class, type) triple is already registered.
func (t *DriverTable) Register(d *Driver) error {
	if d.Name == "" {
		return mxerr.New("registry", mxerr.IllegalArgument, "driver name must not be empty")
	}
	if _, exists := t.byName[d.Name]; exists {
		return mxerr.Newf("registry", mxerr.IllegalArgument, "driver %q already registered", d.Name)
	}
	key := tripleKey(d.Superclass, d.Class, d.Type)
	if _, exists := t.byTriple[key]; exists {
		return mxerr.Newf("registry", mxerr.IllegalArgument,
			"driver triple (%s, %s, %s) already registered", d.Superclass, d.Class, d.Type)
	}
	t.byName[d.Name] = d
	t.byTriple[key] = d
	return nil
}

// FindByName looks up a registered driver by name.
func (t *DriverTable) FindByName(name string) (*Driver, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// FindByTriple looks up a registered driver by its (superclass, class,
// type) classification (§4.E step 2).
func (t *DriverTable) FindByTriple(superclass, class, typ string) (*Driver, bool) {
	d, ok := t.byTriple[tripleKey(superclass, class, typ)]
	return d, ok
}
