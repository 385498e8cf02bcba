package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is the per-repository document tree configuration, fetched from
// the repository itself (see PipelineConfig.ConfigPath). Document order is the
// declaration order in the file and is preserved through to navigation.
type ProjectConfig struct {
	Project   ProjectInfo
	Documents []DocumentNode
}

// ProjectInfo describes the documented project.
type ProjectInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// DocumentNode is one entry in the document tree. A node without a path but
// with children is structural; a node with neither is tolerated as a no-op.
type DocumentNode struct {
	Key      string
	Title    string
	Path     string
	Children []DocumentNode
}

// HasPath reports whether the node references a concrete file.
func (n *DocumentNode) HasPath() bool { return n.Path != "" }

// IsStructural reports whether the node only groups children.
func (n *DocumentNode) IsStructural() bool { return n.Path == "" && len(n.Children) > 0 }

// ParseProjectConfig decodes a document tree configuration. Mapping order in
// the documents block is retained, which a plain map decode would lose.
func ParseProjectConfig(data []byte) (*ProjectConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("project config is empty")
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("project config root must be a mapping")
	}

	cfg := &ProjectConfig{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		value := doc.Content[i+1]
		switch key.Value {
		case "project":
			if err := value.Decode(&cfg.Project); err != nil {
				return nil, fmt.Errorf("failed to decode project section: %w", err)
			}
		case "documents":
			docs, err := decodeDocumentMapping(value)
			if err != nil {
				return nil, err
			}
			cfg.Documents = docs
		}
	}

	return cfg, nil
}

// decodeDocumentMapping walks a mapping node pairwise so sibling order survives.
func decodeDocumentMapping(node *yaml.Node) ([]DocumentNode, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("documents section must be a mapping (line %d)", node.Line)
	}

	nodes := make([]DocumentNode, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		entry, err := decodeDocumentNode(key.Value, value)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, entry)
	}
	return nodes, nil
}

func decodeDocumentNode(key string, node *yaml.Node) (DocumentNode, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return DocumentNode{}, fmt.Errorf("document %q must be a mapping (line %d)", key, node.Line)
	}

	entry := DocumentNode{Key: key}
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := node.Content[i]
		value := node.Content[i+1]
		switch field.Value {
		case "title":
			entry.Title = value.Value
		case "path":
			entry.Path = value.Value
		case "children":
			children, err := decodeDocumentMapping(value)
			if err != nil {
				return DocumentNode{}, fmt.Errorf("document %q: %w", key, err)
			}
			entry.Children = children
		}
	}
	return entry, nil
}
