package schema

import (
	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
)

// Predicate is a compiled filter. Apply parses a raw cell as the filter's
// target type and compares it with the target.
type Predicate struct {
	field string
	kind  FilterKind
	typ   columnar.FieldType
	test  func(raw string) (bool, error)
}

// Field returns the source field the predicate reads.
func (p *Predicate) Field() string { return p.field }

// Kind returns the comparison the predicate performs.
func (p *Predicate) Kind() FilterKind { return p.kind }

// Type returns the type cells are parsed as.
func (p *Predicate) Type() columnar.FieldType { return p.typ }

// Apply reports whether the row holding raw is kept. A cell that does not
// parse is an error, not a rejection.
func (p *Predicate) Apply(raw string) (bool, error) {
	keep, err := p.test(raw)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeParse, "filter on field "+`"`+p.field+`"`).
			WithDetail("field", p.field)
	}
	return keep, nil
}

// Apply compiles the filter and evaluates it against one raw cell.
func (f Filter) Apply(raw string) (bool, error) {
	p, err := f.Compile()
	if err != nil {
		return false, err
	}
	return p.Apply(raw)
}

// Compile validates the filter and returns its predicate.
func (f Filter) Compile() (*Predicate, error) {
	m := f.Method
	typ, err := m.TargetType()
	if err != nil {
		return nil, withDetail(err, "field", f.SourceField)
	}
	p := &Predicate{field: f.SourceField, kind: m.Kind, typ: typ}

	switch m.Kind {
	case Match, MatchNot:
		want := m.Kind == Match
		var eq func(string) (bool, error)
		switch typ {
		case columnar.Text:
			eq = equals(*m.Text)
		case columnar.Signed:
			eq = equals(*m.Signed)
		case columnar.Unsigned:
			eq = equals(*m.Unsigned)
		case columnar.Boolean:
			eq = equals(*m.Boolean)
		case columnar.Float:
			eq = equals(*m.Float)
		}
		p.test = func(raw string) (bool, error) {
			same, err := eq(raw)
			return same == want, err
		}
	case Inequality:
		if !typ.IsOrdered() {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"inequality filter on field %q needs a numeric target, got %s", f.SourceField, typ).
				WithDetail("field", f.SourceField)
		}
		if !m.Inequality.valid() {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"inequality filter on field %q has invalid operator %q", f.SourceField, m.Inequality).
				WithDetail("field", f.SourceField)
		}
		switch typ {
		case columnar.Signed:
			p.test = compares(*m.Signed, m.Inequality)
		case columnar.Unsigned:
			p.test = compares(*m.Unsigned, m.Inequality)
		case columnar.Float:
			p.test = compares(*m.Float, m.Inequality)
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"filter on field %q has unknown method %q", f.SourceField, m.Kind).
			WithDetail("field", f.SourceField)
	}
	return p, nil
}

// TargetType returns the type of the single populated target value.
func (m FilterMethod) TargetType() (columnar.FieldType, error) {
	var set []columnar.FieldType
	if m.Text != nil {
		set = append(set, columnar.Text)
	}
	if m.Signed != nil {
		set = append(set, columnar.Signed)
	}
	if m.Unsigned != nil {
		set = append(set, columnar.Unsigned)
	}
	if m.Boolean != nil {
		set = append(set, columnar.Boolean)
	}
	if m.Float != nil {
		set = append(set, columnar.Float)
	}
	switch len(set) {
	case 1:
		return set[0], nil
	case 0:
		return 0, errors.New(errors.ErrorTypeConfig, "filter has no target value")
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "filter has %d target values, expected one", len(set))
	}
}

func (c Comparison) valid() bool {
	switch c {
	case Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

func equals[T columnar.Element](target T) func(string) (bool, error) {
	return func(raw string) (bool, error) {
		v, err := columnar.ParseValue[T](raw)
		if err != nil {
			return false, err
		}
		return v == target, nil
	}
}

func compares[T uint64 | int64 | float64](target T, op Comparison) func(string) (bool, error) {
	return func(raw string) (bool, error) {
		v, err := columnar.ParseValue[T](raw)
		if err != nil {
			return false, err
		}
		switch op {
		case Gt:
			return v > target, nil
		case Gte:
			return v >= target, nil
		case Lt:
			return v < target, nil
		default:
			return v <= target, nil
		}
	}
}
