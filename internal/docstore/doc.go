// Package docstore is a schema-less document store on SQLite.
//
// Documents are JSON objects grouped into keyspaces. Every keyspace is one
// table of (id, doc) rows and is queried with the JSON1 functions, through
// statements compiled by package querysql.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - case_sensitive_like=ON: LIKE matches the relational semantics
//   - unescape(text): decodes the \hh escapes of translated literals
//
// Per-connection settings are applied by the driver's connect hook, so they
// hold for every connection in the pool.
package docstore
