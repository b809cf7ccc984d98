// Package etl loads delimited text into a typed, in-memory columnar frame and
// derives features from it.
//
// A load is driven by a schema that lists source files, the fields to read
// from each, optional row filters and a set of transforms:
//
//	[[source_files]]
//	name = "people.csv"
//	fields = [
//	  { source_name = "age", field_type = "Unsigned" },
//	  { source_name = "city", field_type = "Text" },
//	]
//
//	[[transforms]]
//	source_fields = ["city"]
//	target_name = "city"
//	method = { action = "VectorizeOneHot" }
//
// # Pipeline
//
// Ingestion (pkg/ingest) binds header columns to declared fields, decodes each
// cell as UTF-8, Latin-1 or Windows-1252, applies filters and parses values
// into one of five field types. The transform engine (pkg/transform) runs
// transforms in dependency order regardless of declaration order. The frame
// (pkg/frame) keeps the fields and generated columns marked add_to_frame and
// projects numeric fields onto a matrix.
//
// # Quick Start
//
//	df, err := frame.LoadFile(ctx, "schema.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	names, m, err := df.AsMatrix()
//
// The etl command (cmd/etl) wraps the same pipeline and can export a frame to
// Arrow IPC, CSV or JSON lines.
package etl
