package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// Stats is a build stats document as produced by an external bundler.
type Stats struct {
	Artifacts   []Artifact    `json:"artifacts" yaml:"artifacts"`
	Entrypoints EntrypointSet `json:"entrypoints" yaml:"entrypoints"`
}

// Marshal encodes the manifest as indented JSON with a trailing newline.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Encode writes the encoded manifest to w.
func Encode(w io.Writer, m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadFile loads a manifest previously written with WriteFile.
func ReadFile(path string) (*Manifest, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if m.Files == nil {
		m.Files = &Files{}
	}
	if m.Entrypoints == nil {
		m.Entrypoints = []string{}
	}

	return &m, nil
}

// WriteFile atomically writes the manifest to path. It reports false, and leaves
// the file untouched, when the existing content already matches.
func WriteFile(path string, m *Manifest) (bool, error) {
	data, err := Marshal(m)
	if err != nil {
		return false, err
	}

	if existing, err := os.ReadFile(path); err == nil && checksum(existing) == checksum(data) {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to close temp manifest: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("failed to replace manifest: %w", err)
	}

	return true, nil
}

// Fingerprint returns the Base58-encoded SHA-256 of the encoded manifest.
func Fingerprint(m *Manifest) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return base58.Encode(hash[:]), nil
}

// LoadSeed reads a seed files mapping from a JSON or YAML document.
func LoadSeed(path string) (*Files, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data, filepath.Ext(path))
}

// ParseSeed decodes a seed from raw bytes. The document is either a bare
// name to path mapping or a full manifest whose "files" object is used.
func ParseSeed(data []byte, ext string) (*Files, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return parseJSONSeed(data)
	case ".yaml", ".yml":
		return parseYAMLSeed(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}
}

func parseJSONSeed(data []byte) (*Files, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if raw, ok := doc["files"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		data = raw
	}

	files := &Files{}
	if err := json.Unmarshal(data, files); err != nil {
		return nil, err
	}
	return files, nil
}

func parseYAMLSeed(data []byte) (*Files, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	// an empty document decodes to a zero node
	if len(doc.Content) == 0 {
		return &Files{}, nil
	}

	node := doc.Content[0]
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "files" && node.Content[i+1].Kind == yaml.MappingNode {
				node = node.Content[i+1]
				break
			}
		}
	}

	files := &Files{}
	if err := node.Decode(files); err != nil {
		return nil, err
	}
	return files, nil
}

// LoadStats reads a build stats document from JSON or YAML.
func LoadStats(path string) (*Stats, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	var stats Stats
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &stats); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}

	return &stats, nil
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// checksum computes the CRC64-NVME checksum used to detect unchanged manifests
func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}
