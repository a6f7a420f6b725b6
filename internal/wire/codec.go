package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// DefaultPrecision is the display precision (§6 "-P") applied to Float and
// Double token construction when a Codec's Precision is left at zero.
const DefaultPrecision = 8

// Codec is the single point where MX's canonical textual representation is
// defined (§4.C). Precision controls how many significant digits Double
// tokens are rendered with; it is configurable at runtime via "-P" (§6).
type Codec struct {
	Precision int
}

// NewCodec returns a Codec using DefaultPrecision.
func NewCodec() *Codec {
	return &Codec{Precision: DefaultPrecision}
}

func (c *Codec) precision() int {
	if c.Precision <= 0 {
		return DefaultPrecision
	}
	return c.Precision
}

// EncodeScalarToken renders one element as canonical text (the "token
// constructor" of §4.C). It never quotes non-string types.
func (c *Codec) EncodeScalarToken(dt Datatype, s Scalar) (string, error) {
	switch dt {
	case String:
		return quoteString(s.Str), nil
	case Bool:
		if s.Bln {
			return "1", nil
		}
		return "0", nil
	case Char, Short, Int, Long, Int64:
		return strconv.FormatInt(s.I64, 10), nil
	case UChar, UShort, UInt, ULong, UInt64:
		return strconv.FormatUint(uint64(s.I64), 10), nil
	case Hex:
		return fmt.Sprintf("%#x", uint64(s.I64)), nil
	case Float, Double:
		return strconv.FormatFloat(s.F64, 'g', c.precision(), 64), nil
	case RecordReference, InterfaceReference:
		return s.Str, nil
	default:
		return "", mxerr.Newf("wire", mxerr.Unsupported, "no token constructor for datatype %s", dt)
	}
}

// quoteString double-quotes s with '\\'/'"' escaped, per §4.C.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ParseScalarToken consumes one token from sc and decodes it as dt (the
// "token parser" of §4.C). maxStringLen bounds String tokens only.
func (c *Codec) ParseScalarToken(sc *Scanner, dt Datatype, maxStringLen int) (Scalar, error) {
	tok, err := sc.NextToken(maxStringLen)
	if err != nil {
		return Scalar{}, err
	}
	return c.parseScalarText(tok, dt)
}

func (c *Codec) parseScalarText(tok string, dt Datatype) (Scalar, error) {
	switch dt {
	case String:
		return Scalar{Str: tok}, nil
	case Bool:
		switch tok {
		case "0", "false", "FALSE":
			return Scalar{Bln: false}, nil
		case "1", "true", "TRUE":
			return Scalar{Bln: true}, nil
		default:
			return Scalar{}, mxerr.Newf("wire", mxerr.UnparseableString, "invalid bool token %q", tok)
		}
	case Char, Short, Int, Long, Int64:
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return Scalar{}, mxerr.Wrapf("wire", mxerr.UnparseableString, err, "parsing %s token %q", dt, tok)
		}
		return Scalar{I64: n}, nil
	case UChar, UShort, UInt, ULong, UInt64:
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return Scalar{}, mxerr.Wrapf("wire", mxerr.UnparseableString, err, "parsing %s token %q", dt, tok)
		}
		return Scalar{I64: int64(n)}, nil
	case Hex:
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X"), 16, 64)
		if err != nil {
			return Scalar{}, mxerr.Wrapf("wire", mxerr.UnparseableString, err, "parsing hex token %q", tok)
		}
		return Scalar{I64: int64(n)}, nil
	case Float, Double:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Scalar{}, mxerr.Wrapf("wire", mxerr.UnparseableString, err, "parsing %s token %q", dt, tok)
		}
		return Scalar{F64: f}, nil
	case RecordReference, InterfaceReference:
		return Scalar{Str: tok}, nil
	default:
		return Scalar{}, mxerr.Newf("wire", mxerr.Unsupported, "no token parser for datatype %s", dt)
	}
}

// EncodeValue renders v's full token stream, recursing dimension-by-dimension
// for multi-dimensional fields: "( elem elem elem )" for each non-innermost
// axis, with a flat space-separated token list at the innermost axis.
func (c *Codec) EncodeValue(v *Value) (string, error) {
	if len(v.Dims) <= 1 {
		toks := make([]string, len(v.Scalars))
		for i, s := range v.Scalars {
			tok, err := c.EncodeScalarToken(v.Datatype, s)
			if err != nil {
				return "", err
			}
			toks[i] = tok
		}
		return strings.Join(toks, " "), nil
	}

	cursor := 0
	out, err := c.encodeDim(v, 0, &cursor)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Codec) encodeDim(v *Value, level int, cursor *int) (string, error) {
	isInnermost := level == len(v.Dims)-1
	n := v.Dims[level]

	if isInnermost {
		toks := make([]string, n)
		for i := 0; i < n; i++ {
			tok, err := c.EncodeScalarToken(v.Datatype, v.Scalars[*cursor])
			if err != nil {
				return "", err
			}
			toks[i] = tok
			*cursor++
		}
		return strings.Join(toks, " "), nil
	}

	parts := make([]string, n)
	for i := 0; i < n; i++ {
		inner, err := c.encodeDim(v, level+1, cursor)
		if err != nil {
			return "", err
		}
		parts[i] = "( " + inner + " )"
	}
	return strings.Join(parts, " "), nil
}

// DecodeValue parses a full token stream from sc into a freshly allocated
// Value of the given shape. dims and maxStringLen must already be resolved
// (§4.D) before calling this — the codec never infers shape from the text.
func (c *Codec) DecodeValue(sc *Scanner, dt Datatype, dims []int, maxStringLen int) (*Value, error) {
	v := NewArrayValue(dt, dims, maxStringLen)

	if len(dims) <= 1 {
		for i := range v.Scalars {
			s, err := c.ParseScalarToken(sc, dt, maxStringLen)
			if err != nil {
				return nil, err
			}
			v.Scalars[i] = s
		}
		return v, nil
	}

	cursor := 0
	if err := c.decodeDim(sc, v, 0, &cursor); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Codec) decodeDim(sc *Scanner, v *Value, level int, cursor *int) error {
	isInnermost := level == len(v.Dims)-1
	n := v.Dims[level]

	if isInnermost {
		for i := 0; i < n; i++ {
			s, err := c.ParseScalarToken(sc, v.Datatype, v.MaxStringLen)
			if err != nil {
				return err
			}
			v.Scalars[*cursor] = s
			*cursor++
		}
		return nil
	}

	for i := 0; i < n; i++ {
		if err := sc.Expect("("); err != nil {
			return err
		}
		if err := c.decodeDim(sc, v, level+1, cursor); err != nil {
			return err
		}
		if err := sc.Expect(")"); err != nil {
			return err
		}
	}
	return nil
}
