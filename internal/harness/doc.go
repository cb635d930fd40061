// Package harness runs conformance scenarios against both connector
// backends.
//
// A scenario loads documents, infers the schema, and runs relational
// queries. Every backend must infer the same schema, return the expected
// rows, and agree with the in-memory evaluation of each condition.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: cars
//	description: "What this scenario validates"
//	type_name_list: "`vehicle`:`kind`"   # optional
//	sample_size: 100                     # optional
//	backends: [document, cache]          # optional, default both
//	documents:
//	  car:
//	    - id: c1
//	      body: { name: civic, engine: { hp: 158 }, tags: [red] }
//	queries:
//	  - name: powerful
//	    from: car
//	    columns: [documentID, engine_hp AS hp]
//	    where: "engine_hp > 200 AND name LIKE 'm%'"
//	    order_by: ["engine_hp DESC"]
//	    limit: 2
//	    expect:
//	      columns: [documentID, hp]
//	      rows:
//	        - [c2, 450]
//	assertions:
//	  - type: column_type
//	    table: car
//	    column: engine_hp
//	    data_type: integer
//
// # Assertion Types
//
//   - table_exists: The table was inferred
//   - column_type: A column has the given data type
//   - primary_key: The primary key columns, in order
//   - foreign_key: The foreign key columns and parent table
//
// # Golden Files
//
// RunWithGolden snapshots the inferred schema as canonical JSON in
// testdata/golden/{name}.golden.
package harness
