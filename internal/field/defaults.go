package field

import "github.com/nbeaver/mxautosave/internal/wire"

// Flag is the per-field bitset of §3.
type Flag uint32

const (
	// InDescription marks a field whose value appears as a token in the
	// textual record description (§4.E grammar).
	InDescription Flag = 1 << iota
	// InSummary marks a field included in one-line record summaries.
	InSummary
	// ReadOnly marks a field that may be read but never written via
	// internal/variable.
	ReadOnly
	// Varargs marks a field whose dimensions are resolved from another
	// field's value rather than being fixed at driver-definition time.
	Varargs
	// NoAccess marks a field not reachable by name from outside the driver.
	NoAccess
)

// Has reports whether f includes all bits of other.
func (f Flag) Has(other Flag) bool { return f&other == other }

// MaxNameLength is the longest permitted field name (§3).
const MaxNameLength = 40

// Defaults is one compile-time-declared field-defaults entry (§3): a name,
// datatype, declared shape (literal or varargs per axis), and flags. A
// driver's complete field table is a []Defaults in declaration order.
//
// The original ties each entry to a byte offset into one of four owning
// substructures (record/superclass/class/type) so the C runtime can locate
// the field's storage via pointer arithmetic. Go has no equivalent need:
// internal/registry materialises one field table per record as a slice of
// resolved values, so Defaults carries only the information that shapes
// that table, not a storage address.
type Defaults struct {
	Name         string
	Datatype     wire.Datatype
	Dims         []Dim
	MaxStringLen int
	Flags        Flag
}

// Resolved is one entry of a record's fully materialised field table: the
// static Defaults plus the concrete dimensions computed at finalisation and
// the field's current Value.
type Resolved struct {
	Defaults Defaults
	Dims     []int
	Value    *wire.Value
}

// NewTable allocates one Resolved entry per Defaults entry, in declaration
// order, with Dims and Value left unresolved (nil). Callers (typically
// internal/registry's description parser) resolve and populate each entry
// in order via ResolveDims + SetValue, so that a later varargs field can
// see an earlier field's already-parsed value (§3, §4.D).
func NewTable(defaults []Defaults) []*Resolved {
	out := make([]*Resolved, len(defaults))
	for i, d := range defaults {
		out[i] = &Resolved{Defaults: d}
	}
	return out
}

// ResolveDims computes the concrete dimension sizes for table[index],
// looking up any varargs axis against table[*].Value of earlier (already
// resolved) entries. It does not allocate or assign a Value; call SetValue
// (or assign table[index].Value directly) afterwards.
func ResolveDims(table []*Resolved, index int) ([]int, error) {
	d := table[index].Defaults
	dims := make([]int, len(d.Dims))
	for axis, dd := range d.Dims {
		n, err := dd.Resolve(index, table)
		if err != nil {
			return nil, err
		}
		dims[axis] = n
	}
	return dims, nil
}

// SetValue records the resolved dims and value for table[index].
func (r *Resolved) SetValue(dims []int, v *wire.Value) {
	r.Dims = dims
	r.Value = v
}

// ResolveTable is a convenience used for defaults tables that contain no
// varargs fields (e.g. structural validation at driver-registration time,
// §8 invariant 2): it resolves every field's dims in order and allocates a
// zero-filled Value for each. It must not be used on a table containing
// Varargs fields, since those need real (parsed) upstream values.
func ResolveTable(defaults []Defaults) ([]*Resolved, error) {
	table := NewTable(defaults)
	for i, d := range defaults {
		dims, err := ResolveDims(table, i)
		if err != nil {
			return nil, err
		}
		table[i].SetValue(dims, wire.NewArrayValue(d.Datatype, dims, d.MaxStringLen))
	}
	return table, nil
}

// FindByName returns the index of the field named name in table, or -1.
func FindByName(table []*Resolved, name string) int {
	for i, r := range table {
		if r.Defaults.Name == name {
			return i
		}
	}
	return -1
}
