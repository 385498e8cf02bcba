package frontmatter

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// SerializeOrdered serializes fields into YAML bytes (without delimiters),
// preserving field order. Values are emitted as strings; the YAML encoder
// handles any quoting the value requires.
//
// If fields is empty, SerializeOrdered returns an empty slice.
func SerializeOrdered(fields Fields, style Style) ([]byte, error) {
	if len(fields) == 0 {
		return []byte{}, nil
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for i := range fields {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fields[i].Key}
		valNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fields[i].Value}
		node.Content = append(node.Content, keyNode, valNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if nl != "\n" {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte(nl))
	}
	return out, nil
}
