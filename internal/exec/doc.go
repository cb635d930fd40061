// Package exec runs a translated native query and maps its rows onto the
// relational columns the request asked for.
//
// A Cursor owns one native RowSource. Output columns are resolved against
// the source's field names once, when the query is submitted, and every
// value is coerced to the column's runtime type as it is read. Rows are
// pulled one at a time; nothing is read ahead.
//
// When a backend could push only part of a condition, the Plan carries the
// full condition as a residual filter and the cursor applies it, together
// with any offset and limit, in memory.
package exec
