package registry

import (
	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// MaxNameLength is the longest permitted record name (§3).
const MaxNameLength = 16

// Record is a named, typed, driver-backed instance (§3). Its field table
// is built by ParseDescription and holds one *field.Resolved per
// Driver.Defaults entry, with dimensions already resolved.
type Record struct {
	Name       string
	Superclass string
	Class      string
	Type       string
	Driver     *Driver
	Fields     []*field.Resolved
}

// FieldByName returns the record's field table entry named name, or false
// if no such field exists.
func (r *Record) FieldByName(name string) (*field.Resolved, bool) {
	idx := field.FindByName(r.Fields, name)
	if idx < 0 {
		return nil, false
	}
	return r.Fields[idx], true
}

// Registry is the named database of records (§3 "Registry (list head)"):
// an arena of records indexed by name, iterated in insertion order. Per
// §5, mutation happens only during setup before polling starts, so no
// internal locking is needed.
type Registry struct {
	byName map[string]*Record
	order  []*Record
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Record)}
}

// Insert links r into the registry. It errors if the name is empty, too
// long, or already in use.
func (reg *Registry) Insert(r *Record) error {
	if r.Name == "" {
		return mxerr.New("registry", mxerr.IllegalArgument, "record name must not be empty")
	}
	if len(r.Name) > MaxNameLength {
		return mxerr.Newf("registry", mxerr.IllegalArgument,
			"record name %q exceeds %d characters", r.Name, MaxNameLength)
	}
	if _, exists := reg.byName[r.Name]; exists {
		return mxerr.Newf("registry", mxerr.IllegalArgument, "record %q already exists", r.Name)
	}
	reg.byName[r.Name] = r
	reg.order = append(reg.order, r)
	return nil
}

// Remove unlinks the named record from the registry.
func (reg *Registry) Remove(name string) error {
	if _, exists := reg.byName[name]; !exists {
		return mxerr.Newf("registry", mxerr.NotFound, "record %q not found", name)
	}
	delete(reg.byName, name)
	for i, r := range reg.order {
		if r.Name == name {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
	return nil
}

// FindByName looks up a record by name.
func (reg *Registry) FindByName(name string) (*Record, bool) {
	r, ok := reg.byName[name]
	return r, ok
}

// Records returns every record in insertion (iteration) order. The
// returned slice is owned by the caller; mutating it does not affect the
// registry.
func (reg *Registry) Records() []*Record {
	out := make([]*Record, len(reg.order))
	copy(out, reg.order)
	return out
}
