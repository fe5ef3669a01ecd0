package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Files maps artifact names to output paths, keeping keys in first-insertion order.
// The zero value is an empty mapping ready to use.
type Files struct {
	values map[string]string
	keys   []string
}

// NewFiles creates a mapping from alternating name, path pairs.
func NewFiles(pairs ...string) *Files {
	if len(pairs)%2 != 0 {
		panic("manifest: NewFiles requires name, path pairs")
	}

	f := &Files{}
	for i := 0; i < len(pairs); i += 2 {
		f.Set(pairs[i], pairs[i+1])
	}
	return f
}

// Set stores path under name. Overwriting an existing name keeps its position.
func (f *Files) Set(name, path string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, exists := f.values[name]; !exists {
		f.keys = append(f.keys, name)
	}
	f.values[name] = path
}

// Get returns the path stored under name.
func (f *Files) Get(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	path, ok := f.values[name]
	return path, ok
}

// Len returns the number of distinct names.
func (f *Files) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Keys returns the names in insertion order.
func (f *Files) Keys() []string {
	if f == nil {
		return []string{}
	}
	return append([]string{}, f.keys...)
}

// Clone returns an independent copy. Cloning a nil mapping returns an empty one.
func (f *Files) Clone() *Files {
	c := &Files{}
	if f == nil {
		return c
	}
	c.keys = slices.Clone(f.keys)
	c.values = make(map[string]string, len(f.values))
	for k, v := range f.values {
		c.values[k] = v
	}
	return c
}

// Equal reports whether both mappings hold the same names, paths and order.
func (f *Files) Equal(other *Files) bool {
	if f.Len() != other.Len() {
		return false
	}
	if f.Len() == 0 {
		return true
	}
	if !slices.Equal(f.keys, other.keys) {
		return false
	}
	for _, k := range f.keys {
		if f.values[k] != other.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (f Files) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')

	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of strings, preserving document order.
func (f *Files) UnmarshalJSON(data []byte) error {
	*f = Files{}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: files must be an object", ErrInvalidFormat)
	}

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		name, _ := tok.(string)

		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		path, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: value for %q must be a string", ErrInvalidFormat, name)
		}

		f.Set(name, path)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return nil
}

// UnmarshalYAML decodes a YAML mapping of strings, preserving document order.
func (f *Files) UnmarshalYAML(node *yaml.Node) error {
	*f = Files{}

	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: files must be a mapping (line %d)", ErrInvalidFormat, node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
			return fmt.Errorf("%w: value for %q must be a string (line %d)", ErrInvalidFormat, key.Value, value.Line)
		}
		f.Set(key.Value, value.Value)
	}

	return nil
}
