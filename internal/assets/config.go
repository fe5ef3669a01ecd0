package assets

import (
	"errors"
	"fmt"
)

// Mode selects the build profile.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

type Config struct {
	// Working directory all other paths are relative to
	Root string
	// Entry point files or glob patterns (e.g., "src/index.tsx")
	EntryPoints []string
	// Logical name of the entry point when exactly one is configured
	EntryName string
	// Output directory for built files
	OutputDir string
	// URL prefix for every output path in the manifest
	PublicPath string
	// File name of the manifest written into OutputDir
	ManifestFileName string
	// Optional path to write the esbuild metafile to
	MetafilePath string
	// Optional HTML template rendered into OutputDir
	HTMLTemplate string
	// File name of the rendered HTML page
	HTMLFileName string
	// Page title passed to the HTML template
	Title string
	// Optional seed manifest, a file path or URL
	Seed string
	// Build profile, production minifies
	Mode Mode
	// Whether to emit linked source maps
	SourceMap bool
	// Whether to empty OutputDir before building
	Clean bool
	// Naming templates passed to esbuild
	EntryNames string
	ChunkNames string
	AssetNames string
	// Import path aliases, e.g. "src" -> "./src"
	Aliases map[string]string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Root:             ".",
		EntryPoints:      []string{"src/index.tsx"},
		EntryName:        "main",
		OutputDir:        "build",
		PublicPath:       "/",
		ManifestFileName: "asset-manifest.json",
		HTMLTemplate:     "public/index.html",
		HTMLFileName:     "index.html",
		Mode:             ModeProduction,
		SourceMap:        true,
		Clean:            true,
		EntryNames:       "[name]",
		ChunkNames:       "[name].[hash].chunk.min",
		AssetNames:       "static/media/[name].[hash]",
		Aliases: map[string]string{
			"src": "./src",
		},
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if len(c.EntryPoints) == 0 {
		return ErrNoEntryPoints
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.ManifestFileName == "" {
		return errors.New("manifest file name is required")
	}
	if c.HTMLTemplate != "" && c.HTMLFileName == "" {
		return errors.New("html file name is required when a template is configured")
	}
	switch c.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		return fmt.Errorf("unknown mode %q (production or development)", c.Mode)
	}
	return nil
}
