package registry

import (
	"strings"

	"github.com/nbeaver/mxautosave/internal/field"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// EmitDescription is the inverse of ParseDescription (§4.E "Emitter"): it
// renders r's name, classification triple, and every InDescription
// field's current value as one canonical text line. Parse-then-emit is
// required to be idempotent (§8 invariant 4).
func EmitDescription(codec *wire.Codec, r *Record) (string, error) {
	tokens := []string{r.Name, r.Superclass, r.Class, r.Type}

	for _, entry := range r.Fields {
		if !entry.Defaults.Flags.Has(field.InDescription) {
			continue
		}
		tok, err := codec.EncodeValue(entry.Value)
		if err != nil {
			return "", err
		}
		tokens = append(tokens, tok)
	}

	return strings.Join(tokens, " "), nil
}
