package wire

// Scalar holds exactly one field element. Which member is meaningful is
// determined by the owning Value's Datatype; this mirrors the C union that
// originally backed one memory slot, without the unsafe pointer arithmetic.
type Scalar struct {
	Str string
	I64 int64
	F64 float64
	Bln bool
}

// Value is a fully-typed field value: a Datatype tag, a shape, and a flat,
// row-major slice of Scalars. Scalars has length product(Dims) (or 1 for a
// bare scalar with Dims == nil), except for String fields where Dims
// describes the *array* shape only — MaxStringLen is the separate per-string
// character capacity, not an axis to iterate over (§4.C: "a 1-D string is
// one token, not many").
type Value struct {
	Datatype     Datatype
	Dims         []int
	MaxStringLen int
	Scalars      []Scalar
}

// NumElements returns the product of Dims, or 1 if Dims is empty (scalar).
func NumElements(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// NewScalarValue constructs a Value holding a single element.
func NewScalarValue(dt Datatype, s Scalar) *Value {
	return &Value{Datatype: dt, Scalars: []Scalar{s}}
}

// NewArrayValue constructs a zero-filled Value with the given shape.
func NewArrayValue(dt Datatype, dims []int, maxStringLen int) *Value {
	n := NumElements(dims)
	return &Value{
		Datatype:     dt,
		Dims:         append([]int(nil), dims...),
		MaxStringLen: maxStringLen,
		Scalars:      make([]Scalar, n),
	}
}

// IsScalar reports whether v has no array dimensions.
func (v *Value) IsScalar() bool { return len(v.Dims) == 0 }

// AsInt64 returns the scalar's value coerced to int64, for datatypes where
// that is meaningful (all integer tags and Hex).
func (s Scalar) AsInt64() int64 { return s.I64 }

// AsFloat64 returns the scalar's value as a float64 regardless of whether
// it was stored as Float or Double.
func (s Scalar) AsFloat64() float64 { return s.F64 }
