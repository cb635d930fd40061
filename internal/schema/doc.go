// Package schema holds the relational view inferred from document keyspaces.
//
// A Schema is an immutable snapshot of Tables. Each Table maps either a whole
// keyspace (optionally narrowed by a discriminator attribute) or one nested
// array level inside it. Array tables carry the document id and one index
// column per array level, and reference their nearest ancestor through a
// foreign key.
//
// Snapshots are produced by a MetadataFactory sink (Builder is the
// in-process one) and published through a Holder.
package schema
