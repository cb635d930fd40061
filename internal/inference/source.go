package inference

import (
	"context"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

// Source is the read side of a document backend as seen by inference.
type Source interface {
	// Keyspaces lists the keyspaces (collections, buckets) to infer.
	Keyspaces(ctx context.Context) ([]string, error)

	// DistinctValues returns the distinct text values of a top-level
	// attribute across the keyspace. Documents without the attribute are
	// ignored.
	DistinctValues(ctx context.Context, keyspace, attribute string) ([]string, error)

	// Sample returns at most limit documents of the keyspace. A non-nil
	// discriminator restricts the sample to matching documents. The order
	// must be stable for unchanged data.
	Sample(ctx context.Context, keyspace string, disc *schema.Discriminator, limit int) ([]ir.Document, error)
}
