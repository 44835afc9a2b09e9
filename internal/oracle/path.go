package oracle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/mirdump/internal/ir"
)

// ParsePlace resolves a human-readable path such as "x.f.*.@Some.0" against
// the body. The first segment names a local (or is "_N"); further segments
// are field names or indices, "*" for a deref and "@Variant" (name or index)
// for a downcast.
func (o *TableOracle) ParsePlace(path string) (ir.Place, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ir.Place{}, fmt.Errorf("empty place path")
	}
	segs := strings.Split(path, ".")

	local, err := o.parseLocal(segs[0])
	if err != nil {
		return ir.Place{}, err
	}
	p := ir.Place{Local: local}

	for _, seg := range segs[1:] {
		switch {
		case seg == "":
			return ir.Place{}, fmt.Errorf("place %q: empty segment", path)
		case seg == "*":
			p = p.Deref()
		case strings.HasPrefix(seg, "@"):
			v, err := o.variantIndex(p, seg[1:])
			if err != nil {
				return ir.Place{}, fmt.Errorf("place %q: %w", path, err)
			}
			p = p.Downcast(v)
		default:
			i, err := o.fieldIndex(p, seg)
			if errors.Is(err, ErrUnsupported) {
				// The table has no definition for the prefix's type, but a
				// positional index still names one of its fields.
				n, aerr := strconv.Atoi(seg)
				if aerr != nil || n < 0 {
					return ir.Place{}, fmt.Errorf("place %q: %w", path, err)
				}
				i, err = n, nil
			}
			if err != nil {
				return ir.Place{}, fmt.Errorf("place %q: %w", path, err)
			}
			p = p.Field(i)
		}
	}

	// Validate the complete projection once more so a trailing deref or
	// downcast of the wrong type is reported here, not at first use.
	if err := o.Check(p); err != nil && !errors.Is(err, ErrUnsupported) {
		return ir.Place{}, fmt.Errorf("place %q: %w", path, err)
	}
	return p, nil
}

// MustParsePlace is ParsePlace for fixtures; it panics on error.
func (o *TableOracle) MustParsePlace(path string) ir.Place {
	p, err := o.ParsePlace(path)
	if err != nil {
		panic(err)
	}
	return p
}

// Format renders p with declared names, the inverse of ParsePlace.
// Elements that cannot be resolved fall back to numeric indices.
func (o *TableOracle) Format(p ir.Place) string {
	var b strings.Builder
	b.WriteString(o.body.LocalName(p.Local))
	for i, elem := range p.Projection {
		b.WriteByte('.')
		switch e := elem.(type) {
		case ir.Field:
			b.WriteString(o.fieldName(p.Prefix(i), e.Index))
		case ir.Deref:
			b.WriteByte('*')
		case ir.Downcast:
			b.WriteByte('@')
			b.WriteString(o.variantName(p.Prefix(i), e.Variant))
		}
	}
	return b.String()
}

// FormatAll formats a list of places.
func (o *TableOracle) FormatAll(ps []ir.Place) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = o.Format(p)
	}
	return out
}

func (o *TableOracle) parseLocal(name string) (ir.Local, error) {
	if l, ok := o.body.LocalByName(name); ok {
		return l, nil
	}
	if rest, ok := strings.CutPrefix(name, "_"); ok {
		if n, err := strconv.ParseUint(rest, 10, 32); err == nil && int(n) < len(o.body.Locals) {
			return ir.Local(n), nil
		}
	}
	return 0, fmt.Errorf("unknown local %q in %s", name, o.body.Name)
}

func (o *TableOracle) fieldIndex(prefix ir.Place, seg string) (int, error) {
	t, err := o.resolve(prefix)
	if err != nil {
		return 0, err
	}
	fields, err := o.fieldsOf(prefix, t)
	if err != nil {
		return 0, err
	}
	for i, f := range fields {
		if f.Name == seg {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(seg); err == nil && n >= 0 && n < len(fields) {
		return n, nil
	}
	return 0, fmt.Errorf("no field %q on %s", seg, t.ty)
}

func (o *TableOracle) variantIndex(prefix ir.Place, seg string) (int, error) {
	t, err := o.resolve(prefix)
	if err != nil {
		return 0, err
	}
	def, ok := o.body.Types[strings.TrimSpace(t.ty)]
	if t.narrowed() || !ok || def.Kind != ir.KindEnum {
		return 0, &ProjectionError{Place: prefix, Type: t.ty, Message: "downcast of a non-enum"}
	}
	for i, v := range def.Variants {
		if v.Name == seg {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(seg); err == nil && n >= 0 && n < len(def.Variants) {
		return n, nil
	}
	return 0, fmt.Errorf("no variant %q on %s", seg, t.ty)
}

func (o *TableOracle) fieldName(prefix ir.Place, index int) string {
	t, err := o.resolve(prefix)
	if err == nil {
		if fields, err := o.fieldsOf(prefix, t); err == nil && index < len(fields) && fields[index].Name != "" {
			return fields[index].Name
		}
	}
	return strconv.Itoa(index)
}

func (o *TableOracle) variantName(prefix ir.Place, variant int) string {
	t, err := o.resolve(prefix)
	if err == nil && !t.narrowed() {
		if def, ok := o.body.Types[strings.TrimSpace(t.ty)]; ok && variant < len(def.Variants) {
			return def.Variants[variant].Name
		}
	}
	return strconv.Itoa(variant)
}
