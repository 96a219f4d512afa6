package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AddEndpoint adds an SSH destination to discovery.endpoints in the config file.
// It preserves the existing YAML structure and comments.
// Returns false if the endpoint was already listed.
func AddEndpoint(configPath, endpoint string) (bool, error) {
	var added bool
	err := editEndpoints(configPath, func(seq *yaml.Node) {
		for _, item := range seq.Content {
			if item.Kind == yaml.ScalarNode && item.Value == endpoint {
				return
			}
		}
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: endpoint,
		})
		added = true
	})
	return added, err
}

// RemoveEndpoint removes an SSH destination from discovery.endpoints.
// Returns false if the endpoint was not listed.
func RemoveEndpoint(configPath, endpoint string) (bool, error) {
	var removed bool
	err := editEndpoints(configPath, func(seq *yaml.Node) {
		kept := seq.Content[:0]
		for _, item := range seq.Content {
			if item.Kind == yaml.ScalarNode && item.Value == endpoint {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		seq.Content = kept
	})
	return removed, err
}

// editEndpoints loads configPath as a yaml.Node, hands the discovery.endpoints
// sequence to edit (creating it if needed) and writes the document back.
func editEndpoints(configPath string, edit func(seq *yaml.Node)) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind == 0 {
		// Empty file
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	discoveryNode := findOrAddMapValue(docNode, "discovery", yaml.MappingNode, "!!map")
	if discoveryNode.Kind != yaml.MappingNode {
		return fmt.Errorf("'discovery' must be a mapping")
	}

	endpointsNode := findOrAddMapValue(discoveryNode, "endpoints", yaml.SequenceNode, "!!seq")
	if endpointsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("'discovery.endpoints' must be a list")
	}
	// Flow style ([]) from a fresh file reads badly once populated.
	endpointsNode.Style = 0

	edit(endpointsNode)

	out, err := encodeNode(&root)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders cfg as YAML with durations written as strings ("500ms")
// rather than nanosecond integers.
func Marshal(cfg *Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	durations := map[[2]string]string{
		{"discovery", "interval"}: cfg.Discovery.Interval.String(),
		{"connect", "timeout"}:    cfg.Connect.Timeout.String(),
		{"poll", "interval"}:      cfg.Poll.Interval.String(),
		{"publish", "timeout"}:    cfg.Publish.Timeout.String(),
	}
	for key, value := range durations {
		section := findMapValue(&doc, key[0])
		if section == nil {
			continue
		}
		if leaf := findMapValue(section, key[1]); leaf != nil {
			leaf.Tag = "!!str"
			leaf.Value = value
		}
	}

	return encodeNode(&doc)
}

func encodeNode(node *yaml.Node) ([]byte, error) {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()
	return []byte(buf.String()), nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

// findOrAddMapValue returns the value for key, appending an empty node of
// the given kind when the key is missing or null.
func findOrAddMapValue(node *yaml.Node, key string, kind yaml.Kind, tag string) *yaml.Node {
	if v := findMapValue(node, key); v != nil {
		if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
			v.Kind = kind
			v.Tag = tag
			v.Value = ""
		}
		return v
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{Kind: kind, Tag: tag}
	node.Content = append(node.Content, keyNode, valueNode)
	return valueNode
}
