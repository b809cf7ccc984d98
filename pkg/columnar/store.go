package columnar

import (
	"strings"

	"github.com/jblondin/etl/pkg/errors"
)

// Store owns a set of named, typed columns in insertion order. A name is
// unique across all field types. Column lengths are not kept in lockstep;
// IsHomogeneous checks them at stage boundaries.
//
// A Store is not safe for concurrent use.
type Store struct {
	fields  []FieldInfo
	columns map[string]Column
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		columns: make(map[string]Column),
	}
}

// Insert parses raw as t and appends it to the named column, creating the
// column on first use.
func (s *Store) Insert(name string, t FieldType, raw string) error {
	if col, ok := s.columns[name]; ok {
		if col.Type() != t {
			return errors.Newf(errors.ErrorTypeSchema,
				"field %q is stored as %s, cannot insert %s", name, col.Type(), t).
				WithDetail("field", name)
		}
		if err := col.appendRaw(raw); err != nil {
			return errors.Wrap(err, errors.ErrorTypeParse, "field "+quote(name)).
				WithDetail("field", name)
		}
		return nil
	}

	col, err := NewColumn(t)
	if err != nil {
		return err
	}
	if err := col.appendRaw(raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeParse, "field "+quote(name)).
			WithDetail("field", name)
	}
	s.add(name, col)
	return nil
}

// MergeColumn installs col under name. The store takes ownership of col.
func (s *Store) MergeColumn(name string, col Column) error {
	if col == nil {
		return errors.Newf(errors.ErrorTypeInternal, "nil column for field %q", name)
	}
	if _, ok := s.columns[name]; ok {
		return duplicateField(name)
	}
	s.add(name, col)
	return nil
}

// Merge moves every column of other into s, in other's field order. On a
// name collision nothing is moved and other is left untouched. On success
// other is empty.
func (s *Store) Merge(other *Store) error {
	if other == nil {
		return nil
	}
	var dups []string
	for _, f := range other.fields {
		if _, ok := s.columns[f.Name]; ok {
			dups = append(dups, f.Name)
		}
	}
	if len(dups) > 0 {
		return duplicateField(dups...)
	}

	for _, f := range other.fields {
		s.add(f.Name, other.columns[f.Name])
	}
	other.fields = nil
	other.columns = make(map[string]Column)
	return nil
}

func (s *Store) add(name string, col Column) {
	s.fields = append(s.fields, FieldInfo{
		Index: len(s.fields),
		Name:  name,
		Type:  col.Type(),
	})
	s.columns[name] = col
}

// Column returns the named column regardless of its type.
func (s *Store) Column(name string) (Column, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// ColumnOf returns the named column only if it is stored as t.
func (s *Store) ColumnOf(name string, t FieldType) (Column, bool) {
	col, ok := s.columns[name]
	if !ok || col.Type() != t {
		return nil, false
	}
	return col, true
}

// Get returns the values of the named column when it holds elements of type T.
func Get[T Element](s *Store, name string) ([]T, bool) {
	col, ok := s.columns[name]
	if !ok {
		return nil, false
	}
	return Values[T](col)
}

// Has reports whether the store holds a column with this name
func (s *Store) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Field returns the descriptor of the named column.
func (s *Store) Field(name string) (FieldInfo, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// Fields returns a copy of the field descriptors in store order
func (s *Store) Fields() []FieldInfo {
	out := make([]FieldInfo, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the column names in store order
func (s *Store) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// NumFields returns the number of columns
func (s *Store) NumFields() int {
	return len(s.fields)
}

// RowCount returns the length of the longest column, 0 for an empty store.
func (s *Store) RowCount() int {
	n := 0
	for _, col := range s.columns {
		if col.Len() > n {
			n = col.Len()
		}
	}
	return n
}

// IsHomogeneous reports whether every column has the same length. An empty
// column only matches a store in which every column is empty.
func (s *Store) IsHomogeneous() bool {
	n := -1
	for _, col := range s.columns {
		if n < 0 {
			n = col.Len()
		} else if col.Len() != n {
			return false
		}
	}
	return true
}

// Lengths returns each column's length keyed by name.
func (s *Store) Lengths() map[string]int {
	out := make(map[string]int, len(s.columns))
	for name, col := range s.columns {
		out[name] = col.Len()
	}
	return out
}

// Take removes the named column from the store and returns it.
func (s *Store) Take(name string) (Column, bool) {
	col, ok := s.columns[name]
	if !ok {
		return nil, false
	}
	delete(s.columns, name)
	kept := s.fields[:0]
	for _, f := range s.fields {
		if f.Name == name {
			continue
		}
		f.Index = len(kept)
		kept = append(kept, f)
	}
	s.fields = kept
	return col, true
}

// Sub returns a new store holding copies of the named columns, in the order
// given. An unknown name is a schema error.
func (s *Store) Sub(names []string) (*Store, error) {
	out := NewStore()
	for _, name := range names {
		col, ok := s.columns[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "unknown field %q", name).
				WithDetail("field", name)
		}
		if err := out.MergeColumn(name, col.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func duplicateField(names ...string) error {
	return errors.Newf(errors.ErrorTypeSchema, "duplicate field %s", strings.Join(quoteAll(names), ", ")).
		WithDetail("field", names[0]).
		WithDetail("fields", names)
}

func quote(s string) string {
	return `"` + s + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
