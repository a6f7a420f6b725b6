// Package wire implements the token codec (§4.C): the single point where
// MX's canonical textual encoding of scalar and array field values is
// defined. Every persistence path (internal/snapshot) and every
// human-readable wire exchange (internal/rpc) goes through this codec.
package wire

import (
	"fmt"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Datatype is the closed enumeration of field element types (§3).
type Datatype int

const (
	String Datatype = iota
	Bool
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Hex
	Int64
	UInt64
	Float
	Double
	RecordReference
	InterfaceReference
)

// String is the textual tag name, used in error messages and the driver
// field-defaults tables' debug output.
func (d Datatype) String() string {
	switch d {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case UChar:
		return "uchar"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Hex:
		return "hex"
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	case Float:
		return "float"
	case Double:
		return "double"
	case RecordReference:
		return "record_reference"
	case InterfaceReference:
		return "interface_reference"
	default:
		return fmt.Sprintf("datatype(%d)", int(d))
	}
}

// ParseDatatype is the inverse of String, used when a datatype tag itself
// travels as text (e.g. internal/rpc's get_field_type response).
func ParseDatatype(s string) (Datatype, error) {
	switch s {
	case "string":
		return String, nil
	case "bool":
		return Bool, nil
	case "char":
		return Char, nil
	case "uchar":
		return UChar, nil
	case "short":
		return Short, nil
	case "ushort":
		return UShort, nil
	case "int":
		return Int, nil
	case "uint":
		return UInt, nil
	case "long":
		return Long, nil
	case "ulong":
		return ULong, nil
	case "hex":
		return Hex, nil
	case "int64":
		return Int64, nil
	case "uint64":
		return UInt64, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	case "record_reference":
		return RecordReference, nil
	case "interface_reference":
		return InterfaceReference, nil
	default:
		return 0, mxerr.Newf("wire", mxerr.UnparseableString, "unknown datatype tag %q", s)
	}
}

// ElementSize returns the fixed per-element byte size used to compute
// offsets into a record's field storage. Variable-length types (String)
// return 1 (one byte per character); callers multiply by the field's
// declared string-capacity dimension separately.
func (d Datatype) ElementSize() int {
	switch d {
	case String, Char, UChar, Bool:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float, Hex:
		return 4
	case Long, ULong, Int64, UInt64, Double, RecordReference, InterfaceReference:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether d is one of the signed/unsigned integer tags
// (including Hex, which is integer-valued but rendered differently).
func (d Datatype) IsInteger() bool {
	switch d {
	case Char, UChar, Short, UShort, Int, UInt, Long, ULong, Int64, UInt64, Hex:
		return true
	default:
		return false
	}
}

// IsFloat reports whether d is Float or Double.
func (d Datatype) IsFloat() bool {
	return d == Float || d == Double
}
