package assets

import (
	"maps"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/wolfeidau/assetpipe/internal/manifest"
)

// esbuild content hashes are eight characters of base32
var hashSegment = regexp.MustCompile(`[.-][A-Z2-7]{8}(\.)`)

// CollectOptions controls how metafile outputs are turned into manifest paths and names.
type CollectOptions struct {
	// Directory the metafile output paths live in, relative to the same root as the metafile
	OutputDir string
	// URL prefix for every output path, "/" when empty
	PublicPath string
	// Logical names keyed by entry point source path; defaults to the source base name
	EntryNames map[string]string
}

// Collect converts esbuild metafile outputs into manifest artifacts, in sorted
// output order, and per entry point output lists in load order.
func Collect(meta *Metafile, opts CollectOptions) ([]manifest.Artifact, manifest.EntrypointSet) {
	c := &collector{
		meta:  meta,
		opts:  opts,
		names: make(map[string]string),
	}
	return c.collect()
}

type collector struct {
	meta  *Metafile
	opts  CollectOptions
	names map[string]string
}

func (c *collector) collect() ([]manifest.Artifact, manifest.EntrypointSet) {
	outputs := slices.Sorted(maps.Keys(c.meta.Outputs))

	bundles := make(map[string]bool)
	for _, info := range c.meta.Outputs {
		if info.CSSBundle != "" {
			bundles[info.CSSBundle] = true
		}
	}

	entrypoints := manifest.EntrypointSet{}

	// entry outputs and their css bundles take the entry's logical name
	for _, out := range outputs {
		info := c.meta.Outputs[out]
		if info.EntryPoint == "" || strings.HasSuffix(out, manifest.SourceMapSuffix) {
			continue
		}

		entryName := c.entryName(info.EntryPoint)
		c.names[out] = entryName + path.Ext(out)
		if info.CSSBundle != "" {
			c.names[info.CSSBundle] = entryName + path.Ext(info.CSSBundle)
		}

		if !bundles[out] {
			entrypoints[entryName] = c.loadOrder(out, info)
		}
	}

	c.nameChunks(outputs)

	artifacts := make([]manifest.Artifact, 0, len(outputs))
	for _, out := range outputs {
		artifacts = append(artifacts, manifest.Artifact{
			Name: c.name(out),
			Path: c.url(out),
		})
	}

	return artifacts, entrypoints
}

// nameChunks strips the content hash from every remaining output. esbuild names
// all shared chunks "chunk", so outputs whose stripped name is not unique keep
// their hashed relative path instead.
func (c *collector) nameChunks(outputs []string) {
	taken := make(map[string]bool, len(c.names))
	for _, name := range c.names {
		taken[name] = true
	}

	stripped := make(map[string][]string)
	for _, out := range outputs {
		if _, ok := c.names[out]; ok || strings.HasSuffix(out, manifest.SourceMapSuffix) {
			continue
		}
		name := c.stripHash(out)
		stripped[name] = append(stripped[name], out)
	}

	for name, outs := range stripped {
		if len(outs) == 1 && !taken[name] {
			c.names[outs[0]] = name
			continue
		}
		for _, out := range outs {
			c.names[out] = c.rel(out)
		}
	}
}

// loadOrder lists an entry output, its static chunk imports depth first, then
// its css bundle. Each file is followed by its source map when one was emitted.
func (c *collector) loadOrder(out string, info OutputInfo) []string {
	paths := []string{}
	visited := map[string]bool{out: true}

	c.appendWithMap(&paths, out)
	c.addDependencies(info, &paths, visited)

	if info.CSSBundle != "" && !visited[info.CSSBundle] {
		c.appendWithMap(&paths, info.CSSBundle)
	}

	return paths
}

func (c *collector) addDependencies(output OutputInfo, paths *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind != "import-statement" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		c.appendWithMap(paths, imp.Path)

		if chunkInfo, exists := c.meta.Outputs[imp.Path]; exists {
			c.addDependencies(chunkInfo, paths, visited)
		}
	}
}

func (c *collector) appendWithMap(paths *[]string, out string) {
	*paths = append(*paths, c.url(out))
	if _, ok := c.meta.Outputs[out+manifest.SourceMapSuffix]; ok {
		*paths = append(*paths, c.url(out+manifest.SourceMapSuffix))
	}
}

func (c *collector) entryName(source string) string {
	if name, ok := c.opts.EntryNames[source]; ok {
		return name
	}
	base := path.Base(filepath.ToSlash(source))
	return strings.TrimSuffix(base, path.Ext(base))
}

// name returns the logical artifact name for an output
func (c *collector) name(out string) string {
	if name, ok := c.names[out]; ok {
		return name
	}
	if mapped, ok := strings.CutSuffix(out, manifest.SourceMapSuffix); ok {
		return c.name(mapped) + manifest.SourceMapSuffix
	}

	return c.stripHash(out)
}

func (c *collector) stripHash(out string) string {
	dir, file := path.Split(c.rel(out))
	return dir + hashSegment.ReplaceAllString(file, "$1")
}

// url returns the public URL of an output
func (c *collector) url(out string) string {
	prefix := c.opts.PublicPath
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + c.rel(out)
}

func (c *collector) rel(out string) string {
	out = filepath.ToSlash(out)
	dir := filepath.ToSlash(filepath.Clean(c.opts.OutputDir))
	if dir == "." || dir == "" {
		return out
	}
	if rel, ok := strings.CutPrefix(out, dir+"/"); ok {
		return rel
	}
	return out
}
