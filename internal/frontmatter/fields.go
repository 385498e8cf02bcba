package frontmatter

import "strings"

// Field is one key/value pair from a front matter block.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields is an ordered list of front matter pairs. Order follows the source
// document; lookups are linear, which is fine at front matter sizes.
type Fields []Field

// Get returns the value for key and whether it was present.
// The first occurrence wins when a key is repeated.
func (f Fields) Get(key string) (string, bool) {
	for i := range f {
		if f[i].Key == key {
			return f[i].Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Map flattens the fields into a plain map, losing order. Later duplicates
// overwrite earlier ones, mirroring what a YAML decoder would do.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, len(f))
	for i := range f {
		m[f[i].Key] = f[i].Value
	}
	return m
}

// ParseFlat parses a front matter block as flat `key: value` lines.
// Lines without a colon or with an empty key are skipped silently; values
// lose one pair of matching surrounding quotes.
func ParseFlat(frontmatter []byte) Fields {
	var fields Fields
	for _, line := range strings.Split(string(frontmatter), "\n") {
		line = strings.TrimRight(line, "\r")
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		if key == "" {
			continue
		}
		value := stripMatchingQuotes(strings.TrimSpace(line[colon+1:]))
		fields = append(fields, Field{Key: key, Value: value})
	}
	return fields
}

// stripMatchingQuotes removes one pair of identical surrounding quote
// characters. Mismatched quotes are left untouched.
func stripMatchingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last {
		return s
	}
	if first == '"' || first == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
