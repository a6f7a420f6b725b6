package registry

import (
	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// ParseDescription implements §4.E's create_from_description: it
// tokenises one description line, looks up the named driver, resolves and
// parses every InDescription field in declaration order (so a later
// Varargs field can see an earlier field's already-parsed value), links
// the new Record into reg, and invokes the driver's lifecycle hooks.
func ParseDescription(reg *Registry, drivers *DriverTable, codec *wire.Codec, text string) (*Record, error) {
	sc := wire.NewScanner(text)

	name, err := sc.NextRaw()
	if err != nil {
		return nil, mxerr.Wrap("registry", mxerr.UnparseableString, "missing record name", err)
	}
	superclass, err := sc.NextRaw()
	if err != nil {
		return nil, mxerr.Wrap("registry", mxerr.UnparseableString, "missing superclass", err)
	}
	class, err := sc.NextRaw()
	if err != nil {
		return nil, mxerr.Wrap("registry", mxerr.UnparseableString, "missing class", err)
	}
	typ, err := sc.NextRaw()
	if err != nil {
		return nil, mxerr.Wrap("registry", mxerr.UnparseableString, "missing type", err)
	}

	drv, ok := drivers.FindByTriple(superclass, class, typ)
	if !ok {
		return nil, mxerr.Newf("registry", mxerr.NotFound,
			"no driver registered for (%s, %s, %s)", superclass, class, typ)
	}

	table := field.NewTable(drv.Defaults)
	for i, d := range drv.Defaults {
		dims, err := field.ResolveDims(table, i)
		if err != nil {
			return nil, mxerr.Wrapf("registry", mxerr.CorruptDataStructure, err,
				"resolving dimensions of field %q", d.Name)
		}

		var value *wire.Value
		if d.Flags.Has(field.InDescription) {
			value, err = codec.DecodeValue(sc, d.Datatype, dims, d.MaxStringLen)
			if err != nil {
				return nil, mxerr.Wrapf("registry", mxerr.UnparseableString, err,
					"parsing field %q of record %q", d.Name, name)
			}
		} else {
			value = wire.NewArrayValue(d.Datatype, dims, d.MaxStringLen)
		}
		table[i].SetValue(dims, value)
	}

	r := &Record{
		Name:       name,
		Superclass: superclass,
		Class:      class,
		Type:       typ,
		Driver:     drv,
		Fields:     table,
	}

	if err := reg.Insert(r); err != nil {
		return nil, err
	}

	if drv.CreateRecordStructures != nil {
		if err := drv.CreateRecordStructures(r); err != nil {
			_ = reg.Remove(r.Name)
			return nil, mxerr.Wrapf("registry", mxerr.CorruptDataStructure, err,
				"create_record_structures for %q", name)
		}
	}
	if drv.FinishRecordInitialization != nil {
		if err := drv.FinishRecordInitialization(r); err != nil {
			_ = reg.Remove(r.Name)
			return nil, mxerr.Wrapf("registry", mxerr.CorruptDataStructure, err,
				"finish_record_initialization for %q", name)
		}
	}

	return r, nil
}
