// Package queryir provides the relational request and boolean condition
// tree handed to a connector for pushdown.
//
// ARCHITECTURE:
//
// The upstream planner builds a Select over one inferred table. Each
// connector checks it against its capability.Descriptor, translates the
// condition tree into its native query and executes it:
//
//	[planner] → [queryir.Select] → [translate] → [querysql | querydsl]
//
// SEALED INTERFACES:
//
// Condition and Expr are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so translators switch over a
// closed set of node kinds:
//
//	switch c := cond.(type) {
//	case AndOr:
//	case Comparison:
//	case Like:
//	case In:
//	case IsNull:
//	case Not:
//	}
//
// NULL SEMANTICS:
//
// Conditions follow SQL three-valued logic. Eval implements it in memory
// and is the reference the native translations are tested against.
//
// TEXT FORM:
//
// Parse reads a small SQL-like condition grammar and Format writes it back:
//
//	name = 'roadster' AND (engine_hp > 200 OR tags IN ('fast', 'red'))
package queryir
