package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"maps"
	"path/filepath"
	"sync"

	"github.com/wolfeidau/assetpipe/internal/manifest"
)

// Metafile is the subset of the esbuild metafile used to describe outputs.
type Metafile struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

// SeedLoader resolves a seed reference into the files mapping folded into the manifest.
type SeedLoader interface {
	Load(ctx context.Context, ref string) (*manifest.Files, error)
}

// fileSeedLoader reads seeds from the local filesystem only
type fileSeedLoader struct{}

func (fileSeedLoader) Load(_ context.Context, ref string) (*manifest.Files, error) {
	if ref == "" {
		return &manifest.Files{}, nil
	}
	return manifest.LoadSeed(ref)
}

// Pipeline manages the asset build process and manifest generation
type Pipeline struct {
	config      Config
	seeds       SeedLoader
	funcs       template.FuncMap
	tmpl        *template.Template
	metadata    *Metafile
	entrypoints manifest.EntrypointSet
	manifest    *manifest.Manifest
	mu          sync.RWMutex
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSeedLoader replaces the filesystem seed loader, e.g. to fetch seeds over HTTP.
func WithSeedLoader(loader SeedLoader) Option {
	return func(p *Pipeline) {
		p.seeds = loader
	}
}

// WithTemplateFuncs adds functions available to the HTML template.
func WithTemplateFuncs(funcs template.FuncMap) Option {
	return func(p *Pipeline) {
		p.funcs = funcs
	}
}

// New creates a new asset pipeline with the given configuration, loading the HTML template if one is configured
func New(config Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Root == "" {
		config.Root = "."
	}

	p := &Pipeline{
		config: config,
		seeds:  fileSeedLoader{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.HTMLTemplate != "" {
		tmpl, err := ParseTemplate(p.resolve(config.HTMLTemplate), p.funcs)
		if err != nil {
			return nil, err
		}
		p.tmpl = tmpl
	}

	return p, nil
}

// resolve returns path relative to the configured root unless it is absolute
func (p *Pipeline) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.config.Root, path)
}

// PageData is passed to HTML templates.
type PageData struct {
	Title   string
	Scripts []string
	Styles  []string
	Context any
}

// NewPageData collects the scripts and stylesheets of a manifest's entrypoints.
func NewPageData(title string, m *manifest.Manifest, ctx any) PageData {
	return PageData{
		Title:   title,
		Scripts: m.Scripts(".js"),
		Styles:  m.Scripts(".css"),
		Context: ctx,
	}
}

// ParseTemplate loads a single HTML template file with the default and custom functions.
// The template is named after the file's base name.
func ParseTemplate(path string, customFuncs template.FuncMap) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, customFuncs)

	return template.New(filepath.Base(path)).Funcs(funcs).ParseFiles(path)
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
