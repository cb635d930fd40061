// Package querydsl compiles relational queries into the object cache's
// fluent DSL.
//
// Only root tables are filtered by the cache. Rows of array tables are
// projected from whole entries and filtered, sorted and windowed in memory
// by the exec cursor.
package querydsl
