package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultEntrypoint is the entry point listed in the manifest unless overridden
	DefaultEntrypoint = "main"
	// SourceMapSuffix marks outputs which are not loadable runtime assets
	SourceMapSuffix = ".map"
)

// Artifact is one file emitted by a build.
type Artifact struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// EntrypointSet maps an entry point name to its output paths in load order.
type EntrypointSet map[string][]string

// Manifest describes the files produced by a build and the loadable outputs of its entry point.
type Manifest struct {
	Files       *Files   `json:"files"`
	Entrypoints []string `json:"entrypoints"`
}

// MarshalJSON always emits both keys, with an empty object and array in place of nil values.
func (m Manifest) MarshalJSON() ([]byte, error) {
	files := m.Files
	if files == nil {
		files = &Files{}
	}
	entrypoints := m.Entrypoints
	if entrypoints == nil {
		entrypoints = []string{}
	}

	return json.Marshal(struct {
		Files       *Files   `json:"files"`
		Entrypoints []string `json:"entrypoints"`
	}{
		Files:       files,
		Entrypoints: entrypoints,
	})
}

// Scripts returns the entrypoints with the given extension, e.g. ".js" or ".css".
func (m *Manifest) Scripts(ext string) []string {
	out := []string{}
	for _, p := range m.Entrypoints {
		if strings.HasSuffix(p, ext) {
			out = append(out, p)
		}
	}
	return out
}

type buildOptions struct {
	entrypoint string
	excluded   []string
}

// Option customises Build.
type Option func(*buildOptions)

// WithEntrypoint selects the entry point whose outputs are listed, "main" by default.
func WithEntrypoint(name string) Option {
	return func(o *buildOptions) {
		o.entrypoint = name
	}
}

// WithExcludedSuffixes replaces the suffixes filtered out of the entry point list, ".map" by default.
func WithExcludedSuffixes(suffixes ...string) Option {
	return func(o *buildOptions) {
		o.excluded = suffixes
	}
}

// Build folds artifacts into a copy of seed, last write wins, and lists the
// selected entry point's paths without source maps. Inputs are never modified.
func Build(seed *Files, artifacts []Artifact, entrypoints EntrypointSet, opts ...Option) (*Manifest, error) {
	o := buildOptions{
		entrypoint: DefaultEntrypoint,
		excluded:   []string{SourceMapSuffix},
	}
	for _, opt := range opts {
		opt(&o)
	}

	paths, ok := entrypoints[o.entrypoint]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntrypointNotFound, o.entrypoint)
	}

	files := seed.Clone()
	for _, artifact := range artifacts {
		files.Set(artifact.Name, artifact.Path)
	}

	return &Manifest{
		Files:       files,
		Entrypoints: filterPaths(paths, o.excluded),
	}, nil
}

func filterPaths(paths []string, excluded []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !hasAnySuffix(p, excluded) {
			out = append(out, p)
		}
	}
	return out
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
