// Package inference derives a relational schema from sampled documents.
//
// Every keyspace becomes one root table, or one table per discriminator
// value when a type attribute is configured for it. Nested objects are
// flattened into underscore-joined columns; nested arrays become child
// tables keyed by the document id plus one index column per array level.
package inference
