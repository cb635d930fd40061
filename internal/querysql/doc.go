// Package querysql compiles relational requests into SQLite JSON1 queries
// over the document store.
//
// Each keyspace lives in one table of (id, doc) rows. Columns become
// json_extract paths into doc, and array tables unnest their arrays with
// json_each. Conditions are translated through package translate; whatever
// cannot be expressed in SQL is left to the execution plan.
package querysql
