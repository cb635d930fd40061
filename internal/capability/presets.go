package capability

// Backend names used by the built-in descriptors.
const (
	BackendDocument = "document"
	BackendCache    = "cache"
)

// DocumentStore describes the SQL-like document dialect backend.
// json_extract returns NULL both for an explicit null and for a missing
// path, so IS NULL cannot distinguish the two.
func DocumentStore() Descriptor {
	return New(BackendDocument, Flags{
		CompareEquals:       true,
		CompareOrdered:      true,
		Like:                true,
		LikeEscape:          true,
		In:                  true,
		IsNull:              true,
		And:                 true,
		Or:                  true,
		Not:                 true,
		OrderBy:             true,
		Limit:               true,
		ArrayTableFiltering: true,
	}, Limits{
		MaxInListSize: 1000,
		MaxFromGroups: 1,
	})
}

// ObjectCache describes the fluent query-builder DSL of the object cache.
// The DSL only filters root objects, so array-table columns are not
// pushable.
func ObjectCache() Descriptor {
	return New(BackendCache, Flags{
		CompareEquals:     true,
		CompareOrdered:    true,
		Like:              true,
		LikeEscape:        true,
		In:                true,
		IsNull:            true,
		And:               true,
		Or:                true,
		Not:               true,
		OrderBy:           true,
		Limit:             true,
		NullDistinguishes: false,
	}, Limits{
		MaxInListSize: 1024,
		MaxFromGroups: 1,
	})
}

// ForBackend returns the built-in descriptor for a backend name.
func ForBackend(name string) (Descriptor, bool) {
	switch name {
	case BackendDocument:
		return DocumentStore(), true
	case BackendCache:
		return ObjectCache(), true
	default:
		return Descriptor{}, false
	}
}
