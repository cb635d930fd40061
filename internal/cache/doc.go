// Package cache is an in-memory object cache with a fluent query DSL.
//
// Entries are JSON objects stored by key inside named regions. Queries are
// built with From, filtered with Having(...).Eq(...) style predicates and
// run with Execute. String literals passed to the DSL are in escaped form:
// the characters \ * ( ) and NUL appear as a backslash and two hex digits,
// and the DSL decodes them before matching.
package cache
