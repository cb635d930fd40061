package connector

import (
	"fmt"
	"strings"
)

// CacheScope is the lifetime of auxiliary state a connector keeps between
// requests.
type CacheScope int

const (
	// ScopeRequest state lives for one request.
	ScopeRequest CacheScope = iota
	// ScopeService state is shared by every request of one connector.
	ScopeService
	// ScopeSession state is shared within one client session.
	ScopeSession
	// ScopeVDB state is shared by every connector of a virtual database.
	ScopeVDB
	// ScopeGlobal state is shared process-wide and may be replicated.
	ScopeGlobal
)

var scopeNames = [...]string{"REQUEST", "SERVICE", "SESSION", "VDB", "GLOBAL"}

// String implements fmt.Stringer.
func (s CacheScope) String() string {
	if s >= 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return fmt.Sprintf("CacheScope(%d)", int(s))
}

// RequiresSerializable reports whether values kept at this scope must be
// serializable. Only REQUEST-scoped values may be arbitrary Go values.
func (s CacheScope) RequiresSerializable() bool {
	return s != ScopeRequest
}

// ParseCacheScope parses a scope name, ignoring case.
func ParseCacheScope(name string) (CacheScope, error) {
	for i, n := range scopeNames {
		if strings.EqualFold(n, name) {
			return CacheScope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cache scope %q (want one of %s)", name, strings.Join(scopeNames[:], ", "))
}
