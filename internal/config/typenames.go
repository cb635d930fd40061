package config

import (
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
)

const typeNamePair = "`([^`]+)`\\s*:\\s*`([^`]+)`"

var (
	typeNameListRE = regexp.MustCompile(`^\s*` + typeNamePair + `(?:\s*,\s*` + typeNamePair + `)*\s*$`)
	typeNamePairRE = regexp.MustCompile(typeNamePair)
)

// TypeNameMap maps a keyspace to the attribute whose distinct values split
// it into logical tables. The zero value is empty. A TypeNameMap never
// changes after it is parsed.
type TypeNameMap struct {
	m map[string]string
}

// ParseTypeNameList parses `keyspace`:`attribute`(,`keyspace`:`attribute`)*.
//
// A list that does not match the grammar is logged and yields an empty map,
// which puts every keyspace in single-table mode. When a keyspace repeats,
// the later entry wins.
func ParseTypeNameList(s string) TypeNameMap {
	if strings.TrimSpace(s) == "" {
		return TypeNameMap{}
	}
	if !typeNameListRE.MatchString(s) {
		slog.Warn("ignoring malformed type_name_list",
			"value", s,
			"expected", "`keyspace`:`attribute`,...")
		return TypeNameMap{}
	}

	m := map[string]string{}
	for _, match := range typeNamePairRE.FindAllStringSubmatch(s, -1) {
		m[match[1]] = match[2]
	}
	return TypeNameMap{m: m}
}

// Attribute returns the discriminator attribute of keyspace.
func (t TypeNameMap) Attribute(keyspace string) (string, bool) {
	attr, ok := t.m[keyspace]
	return attr, ok
}

// Len returns the number of configured keyspaces.
func (t TypeNameMap) Len() int {
	return len(t.m)
}

// Map returns a copy of the mapping.
func (t TypeNameMap) Map() map[string]string {
	if t.m == nil {
		return map[string]string{}
	}
	return maps.Clone(t.m)
}

// String renders the map back in list syntax, keyspaces sorted.
func (t TypeNameMap) String() string {
	keys := slices.Sorted(maps.Keys(t.m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "`" + k + "`:`" + t.m[k] + "`"
	}
	return strings.Join(parts, ",")
}
