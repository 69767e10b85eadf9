package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry is a named root module list producing one output bundle.
type Entry struct {
	Name    string
	Sources []string
}

// Entries keeps entry points in declaration order. In config files it is
// written as a mapping of name to a source path or list of source paths.
type Entries []Entry

func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: entry must be a mapping of name to sources", node.Line)
	}

	entries := make(Entries, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if seen[key.Value] {
			return fmt.Errorf("line %d: entry %q: %w", key.Line, key.Value, ErrDuplicateEntry)
		}
		seen[key.Value] = true

		var sources []string
		switch value.Kind {
		case yaml.ScalarNode:
			sources = []string{value.Value}
		default:
			if err := value.Decode(&sources); err != nil {
				return fmt.Errorf("line %d: entry %q: %w", value.Line, key.Value, err)
			}
		}

		entries = append(entries, Entry{Name: key.Value, Sources: sources})
	}

	*e = entries
	return nil
}

func (e *Entries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("entry must be an object of name to sources")
	}

	var entries Entries
	seen := make(map[string]bool)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected entry key %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("entry %q: %w", name, ErrDuplicateEntry)
		}
		seen[name] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}

		sources, err := decodeSources(raw)
		if err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		entries = append(entries, Entry{Name: name, Sources: sources})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*e = entries
	return nil
}

func decodeSources(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// UnmarshalYAML accepts either a bare transform name or a mapping with a
// name and options.
func (t *TransformConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Name = node.Value
		return nil
	}

	type plain TransformConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = TransformConfig(p)
	return nil
}

func (t *TransformConfig) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Name = name
		return nil
	}

	type plain TransformConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TransformConfig(p)
	return nil
}
