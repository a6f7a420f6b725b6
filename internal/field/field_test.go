package field_test

import (
	"testing"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// TestVarargsResolution grounds S6: a record defines "n" (Long) then
// "values" (Double[n]); n's parsed value of 3 must drive values' dimension.
func TestVarargsResolution(t *testing.T) {
	defaults := []field.Defaults{
		{Name: "n", Datatype: wire.Long, Flags: field.InDescription},
		{
			Name:     "values",
			Datatype: wire.Double,
			Dims:     []field.Dim{field.FromFieldDim(0, 0)},
			Flags:    field.InDescription | field.Varargs,
		},
	}

	table := field.NewTable(defaults)

	// Resolve and populate "n" = 3.
	dims0, err := field.ResolveDims(table, 0)
	if err != nil {
		t.Fatalf("ResolveDims(n): %v", err)
	}
	nValue := wire.NewArrayValue(wire.Long, dims0, 0)
	nValue.Scalars[0] = wire.Scalar{I64: 3}
	table[0].SetValue(dims0, nValue)

	// Resolve "values" against n's now-populated value.
	dims1, err := field.ResolveDims(table, 1)
	if err != nil {
		t.Fatalf("ResolveDims(values): %v", err)
	}
	if len(dims1) != 1 || dims1[0] != 3 {
		t.Fatalf("values dims = %v, want [3]", dims1)
	}
}

func TestVarargsMustReferEarlierField(t *testing.T) {
	defaults := []field.Defaults{
		{Name: "values", Datatype: wire.Double, Dims: []field.Dim{field.FromFieldDim(1, 0)}},
		{Name: "n", Datatype: wire.Long},
	}
	table := field.NewTable(defaults)
	if _, err := field.ResolveDims(table, 0); err == nil {
		t.Fatalf("expected error: varargs field referring to a later field")
	}
}

func TestResolveTableAllDimsNonNegative(t *testing.T) {
	defaults := []field.Defaults{
		{Name: "position", Datatype: wire.Double},
		{Name: "label", Datatype: wire.String, MaxStringLen: 40},
		{Name: "readings", Datatype: wire.Double, Dims: []field.Dim{field.LiteralDim(4)}},
	}
	table, err := field.ResolveTable(defaults)
	if err != nil {
		t.Fatalf("ResolveTable: %v", err)
	}
	for _, r := range table {
		for _, d := range r.Dims {
			if d < 0 {
				t.Fatalf("field %q has negative dimension %d", r.Defaults.Name, d)
			}
		}
	}
}

func TestFindByName(t *testing.T) {
	defaults := []field.Defaults{{Name: "value"}, {Name: "units"}}
	table := field.NewTable(defaults)
	if idx := field.FindByName(table, "units"); idx != 1 {
		t.Fatalf("FindByName(units) = %d, want 1", idx)
	}
	if idx := field.FindByName(table, "missing"); idx != -1 {
		t.Fatalf("FindByName(missing) = %d, want -1", idx)
	}
}
