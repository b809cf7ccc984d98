// Package columnar implements the typed, in-memory column store that every
// stage of the ETL pipeline reads from and writes to.
//
// # Overview
//
// A Store owns named columns of five field types: Unsigned (uint64), Signed
// (int64), Text (string), Boolean (bool) and Float (float64). Each column is a
// *Vector[T] behind the sealed Column interface, so a name maps to exactly one
// column of exactly one type.
//
// # Building a store
//
//	s := columnar.NewStore()
//	_ = s.Insert("age", columnar.Unsigned, "42")
//	_ = s.MergeColumn("score", columnar.NewVector([]float64{0.5}))
//
// Insert parses the raw literal with strconv. MergeColumn and Merge move whole
// columns and refuse duplicate names; Merge checks every name before moving
// anything.
//
// # Lengths
//
// Column lengths are only checked at stage boundaries. IsHomogeneous reports
// whether all columns share a length, and RowCount returns the longest
// column.
//
// # Conversion
//
// Convert covers all 25 source/target pairs. Numeric casts follow Go's
// conversion rules, numbers format in their shortest decimal form, and Text
// must parse completely:
//
//	floats, err := columnar.Convert(col, columnar.Float)
//
// # Projection
//
// AsMatrix returns a gonum *mat.Dense of every non-Text column together with
// the matching column names. Sub copies a named subset into a new store.
package columnar
