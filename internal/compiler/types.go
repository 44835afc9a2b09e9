package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mirdump/internal/ir"
)

// CompileTypes parses the top-level `types` struct into a type table.
//
// Each entry declares exactly one of struct, tuple or enum:
//
//	types: {
//		S: struct: [{name: "f", type: "T"}, {name: "k", type: "i32"}]
//		P: tuple: ["i32", "&S"]
//		O: enum: [{name: "None"}, {name: "Some", fields: [{name: "0", type: "S"}]}]
//	}
func CompileTypes(v cue.Value) (map[string]ir.TypeDef, error) {
	types := make(map[string]ir.TypeDef)
	if !v.Exists() {
		return types, nil
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		def, err := compileTypeDef(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		types[def.Name] = def
	}
	return types, nil
}

func compileTypeDef(name string, v cue.Value) (ir.TypeDef, error) {
	def := ir.TypeDef{Name: name}
	field := "types." + name

	var kinds []ir.TypeKind
	for _, k := range []ir.TypeKind{ir.KindStruct, ir.KindTuple, ir.KindEnum} {
		if v.LookupPath(cue.MakePath(cue.Str(string(k)))).Exists() {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return def, &CompileError{
			Field:   field,
			Message: "type must declare exactly one of struct, tuple or enum",
			Pos:     v.Pos(),
		}
	}
	def.Kind = kinds[0]
	body := v.LookupPath(cue.MakePath(cue.Str(string(def.Kind))))

	var err error
	switch def.Kind {
	case ir.KindStruct:
		def.Fields, err = parseFields(body, field+".struct")
	case ir.KindTuple:
		def.Fields, err = parseTupleElems(body, field+".tuple")
	case ir.KindEnum:
		def.Variants, err = parseVariants(body, field+".enum")
	}
	if err != nil {
		return def, err
	}
	return def, nil
}

// parseFields parses a list of {name, type} entries.
func parseFields(v cue.Value, field string) ([]ir.FieldDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []ir.FieldDef
	for i := 0; iter.Next(); i++ {
		entry := iter.Value()
		path := fmt.Sprintf("%s[%d]", field, i)
		name, err := requireString(entry, "name", path)
		if err != nil {
			return nil, err
		}
		ty, err := requireString(entry, "type", path)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.FieldDef{Name: name, Type: ty})
	}
	return fields, nil
}

// parseTupleElems parses a list of element types; elements are named by
// position.
func parseTupleElems(v cue.Value, field string) ([]ir.FieldDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []ir.FieldDef
	for i := 0; iter.Next(); i++ {
		ty, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "tuple element must be a type string",
				Pos:     iter.Value().Pos(),
			}
		}
		fields = append(fields, ir.FieldDef{Name: fmt.Sprint(i), Type: ty})
	}
	return fields, nil
}

func parseVariants(v cue.Value, field string) ([]ir.VariantDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var variants []ir.VariantDef
	for i := 0; iter.Next(); i++ {
		entry := iter.Value()
		path := fmt.Sprintf("%s[%d]", field, i)
		name, err := requireString(entry, "name", path)
		if err != nil {
			return nil, err
		}
		variant := ir.VariantDef{Name: name}

		// Fields are optional: unit variants carry none.
		fieldsVal := entry.LookupPath(cue.ParsePath("fields"))
		if fieldsVal.Exists() {
			variant.Fields, err = parseFields(fieldsVal, path+".fields")
			if err != nil {
				return nil, err
			}
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// requireString looks up a required string field of v.
func requireString(v cue.Value, name, field string) (string, error) {
	s, ok, err := optionalString(v, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

// optionalString looks up an optional string field of v.
func optionalString(v cue.Value, name string) (string, bool, error) {
	f := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
