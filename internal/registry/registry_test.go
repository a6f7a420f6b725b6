package registry

import (
	"testing"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/wire"
)

func varargsDriver() *Driver {
	return &Driver{
		Name:       "net_double_var",
		Superclass: "variable",
		Class:      "net",
		Type:       "net_double",
		Defaults: []field.Defaults{
			{Name: "n", Datatype: wire.Long, Flags: field.InDescription},
			{
				Name:     "values",
				Datatype: wire.Double,
				Dims:     []field.Dim{field.FromFieldDim(0, 0)},
				Flags:    field.InDescription | field.Varargs,
			},
		},
	}
}

// TestParseVarargsFieldResolution grounds S6: a record defines n (Long)
// then values (Double[n]); "r variable net net_double 3 1.0 2.0 3.0"
// must parse into values.dim[0] == 3 with the three listed values.
func TestParseVarargsFieldResolution(t *testing.T) {
	drivers := NewDriverTable()
	if err := drivers.Register(varargsDriver()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg := NewRegistry()
	codec := wire.NewCodec()

	r, err := ParseDescription(reg, drivers, codec, "r variable net net_double 3 1.0 2.0 3.0")
	if err != nil {
		t.Fatalf("ParseDescription: %v", err)
	}

	values, ok := r.FieldByName("values")
	if !ok {
		t.Fatalf("values field not found")
	}
	if len(values.Dims) != 1 || values.Dims[0] != 3 {
		t.Fatalf("values.Dims = %v, want [3]", values.Dims)
	}
	want := []float64{1.0, 2.0, 3.0}
	for i, w := range want {
		if got := values.Value.Scalars[i].F64; got != w {
			t.Errorf("values[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestParseDescriptionUnknownDriver(t *testing.T) {
	drivers := NewDriverTable()
	reg := NewRegistry()
	codec := wire.NewCodec()

	_, err := ParseDescription(reg, drivers, codec, "r variable net net_double 3 1.0 2.0 3.0")
	if err == nil {
		t.Fatal("expected NotFound error for unregistered driver")
	}
}

func simpleScalarDriver() *Driver {
	return &Driver{
		Name:       "motor",
		Superclass: "device",
		Class:      "motor",
		Type:       "soft_motor",
		Defaults: []field.Defaults{
			{Name: "position", Datatype: wire.Double, Flags: field.InDescription},
			{Name: "units", Datatype: wire.String, MaxStringLen: 8, Flags: field.InDescription},
		},
	}
}

// TestParseThenEmitIdempotent grounds §8 invariant 4.
func TestParseThenEmitIdempotent(t *testing.T) {
	drivers := NewDriverTable()
	if err := drivers.Register(simpleScalarDriver()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	codec := wire.NewCodec()

	reg1 := NewRegistry()
	r1, err := ParseDescription(reg1, drivers, codec, `motor_x device motor soft_motor 1.25 "mm"`)
	if err != nil {
		t.Fatalf("ParseDescription: %v", err)
	}
	emitted1, err := EmitDescription(codec, r1)
	if err != nil {
		t.Fatalf("EmitDescription: %v", err)
	}

	reg2 := NewRegistry()
	r2, err := ParseDescription(reg2, drivers, codec, emitted1)
	if err != nil {
		t.Fatalf("re-ParseDescription: %v", err)
	}
	emitted2, err := EmitDescription(codec, r2)
	if err != nil {
		t.Fatalf("re-EmitDescription: %v", err)
	}

	if emitted1 != emitted2 {
		t.Fatalf("emit not idempotent: %q != %q", emitted1, emitted2)
	}
}

func TestRegistryInsertRemoveFindByName(t *testing.T) {
	reg := NewRegistry()
	r := &Record{Name: "foo"}
	if err := reg.Insert(r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := reg.Insert(r); err == nil {
		t.Fatal("expected error on duplicate insert")
	}
	if _, ok := reg.FindByName("foo"); !ok {
		t.Fatal("expected to find foo")
	}
	if err := reg.Remove("foo"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := reg.FindByName("foo"); ok {
		t.Fatal("expected foo removed")
	}
	if err := reg.Remove("foo"); err == nil {
		t.Fatal("expected NotFound removing twice")
	}
}

func TestRegistryRecordsPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"a", "b", "c"}
	for _, n := range names {
		if err := reg.Insert(&Record{Name: n}); err != nil {
			t.Fatalf("Insert(%s): %v", n, err)
		}
	}
	got := reg.Records()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, n := range names {
		if got[i].Name != n {
			t.Errorf("Records()[%d] = %q, want %q", i, got[i].Name, n)
		}
	}
}

func TestDriverTableRejectsDuplicateTriple(t *testing.T) {
	drivers := NewDriverTable()
	d1 := &Driver{Name: "a", Superclass: "s", Class: "c", Type: "t"}
	d2 := &Driver{Name: "b", Superclass: "s", Class: "c", Type: "t"}
	if err := drivers.Register(d1); err != nil {
		t.Fatalf("Register d1: %v", err)
	}
	if err := drivers.Register(d2); err == nil {
		t.Fatal("expected error registering duplicate triple")
	}
}
