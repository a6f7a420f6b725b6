// Package field implements the field-defaults meta-model (§4.D): per-field
// datatype, dimension resolution (including varargs cookies), and flags.
//
// Design note: the original represents a field's dimension shape with a
// signed integer that is either a literal (>=0) or a "varargs cookie"
// (negative, encoding a reference to an earlier field's scalar value). This
// package follows §9's redesign guidance literally and replaces the cookie
// encoding with an explicit two-variant Dim type resolved in two phases at
// record finalisation, rather than decoding negative integers at use time.
package field

import "github.com/nbeaver/mxautosave/internal/mxerr"

// Dim is one axis of a field's declared shape: either a fixed size known at
// driver-definition time, or a reference to an earlier field's current
// scalar value (a "varargs" axis, §3).
type Dim struct {
	fromField bool
	literal   int
	fieldIdx  int
	element   int
}

// LiteralDim returns a Dim with a compile-time-fixed size.
func LiteralDim(n int) Dim {
	return Dim{literal: n}
}

// FromFieldDim returns a Dim whose size is resolved at record finalisation
// from the scalar at position element of the field at fieldIndex. fieldIndex
// must refer to an earlier field-defaults entry (§3 invariant: "a field
// marked Varargs may refer only to earlier field-defaults entries").
func FromFieldDim(fieldIndex, element int) Dim {
	return Dim{fromField: true, fieldIdx: fieldIndex, element: element}
}

// IsVarargs reports whether d must be resolved against another field.
func (d Dim) IsVarargs() bool { return d.fromField }

// Literal returns the fixed size; only meaningful when !IsVarargs().
func (d Dim) Literal() int { return d.literal }

// ReferencedField returns the (fieldIndex, element) pair a varargs Dim
// refers to.
func (d Dim) ReferencedField() (fieldIndex, element int) { return d.fieldIdx, d.element }

// Resolve returns d's concrete dimension size, looking up an earlier
// field's scalar value via resolved (indexed by field-defaults order) when
// d is a varargs Dim. It returns CorruptDataStructure if a varargs Dim
// refers to a field at or after its own index or a size is negative, and
// NotFound if the referenced field index or element is out of range.
func (d Dim) Resolve(ownIndex int, resolved []*Resolved) (int, error) {
	if !d.fromField {
		if d.literal < 0 {
			return 0, mxerr.Newf("field", mxerr.CorruptDataStructure,
				"literal dimension %d is negative", d.literal)
		}
		return d.literal, nil
	}
	if d.fieldIdx >= ownIndex {
		return 0, mxerr.Newf("field", mxerr.CorruptDataStructure,
			"varargs field may only reference earlier fields (self index %d, referenced %d)",
			ownIndex, d.fieldIdx)
	}
	if d.fieldIdx < 0 || d.fieldIdx >= len(resolved) {
		return 0, mxerr.Newf("field", mxerr.NotFound,
			"varargs dimension references out-of-range field index %d", d.fieldIdx)
	}
	ref := resolved[d.fieldIdx]
	if d.element < 0 || d.element >= len(ref.Value.Scalars) {
		return 0, mxerr.Newf("field", mxerr.NotFound,
			"varargs dimension references out-of-range element %d of field %q", d.element, ref.Defaults.Name)
	}
	n := int(ref.Value.Scalars[d.element].AsInt64())
	if n < 0 {
		return 0, mxerr.Newf("field", mxerr.CorruptDataStructure,
			"field %q resolved to a negative dimension %d", ref.Defaults.Name, n)
	}
	return n, nil
}
