package querysql

import (
	"fmt"
	"strings"
)

// UnescapeFunc is the SQL function the document store registers to decode
// escaped string literals.
const UnescapeFunc = "unescape"

// docAlias is the alias of the keyspace table in every statement.
const docAlias = "d"

// CollectionTable returns the SQLite table holding a keyspace's documents.
func CollectionTable(keyspace string) string {
	return "docs_" + keyspace
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString renders an SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// JSONPath renders a JSON1 path for keys below the root: $."a"."b".
// Keys containing a double quote cannot be addressed.
func JSONPath(keys []string) (string, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, k := range keys {
		if strings.Contains(k, `"`) {
			return "", fmt.Errorf("key %q cannot be addressed by a JSON path", k)
		}
		b.WriteString(`."`)
		b.WriteString(k)
		b.WriteString(`"`)
	}
	return b.String(), nil
}

// relPath renders keys as a path suffix to append to a fullkey column.
func relPath(keys []string) (string, error) {
	p, err := JSONPath(keys)
	if err != nil {
		return "", err
	}
	return p[1:], nil
}

// DiscriminatorText renders the text form of a top-level attribute of the
// document column doc, matching schema.ScalarText: booleans as true/false,
// numbers and strings as their text. Containers and null give NULL.
func DiscriminatorText(doc, attribute string) (string, error) {
	path, err := JSONPath([]string{attribute})
	if err != nil {
		return "", err
	}
	p := quoteString(path)
	return fmt.Sprintf(
		"CASE json_type(%[1]s, %[2]s) WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' "+
			"WHEN 'text' THEN %[1]s ->> %[2]s WHEN 'integer' THEN CAST(%[1]s ->> %[2]s AS TEXT) "+
			"WHEN 'real' THEN CAST(%[1]s ->> %[2]s AS TEXT) END",
		doc, p), nil
}
