package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	buildlog "github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/manifest"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

var tracer = otel.Tracer("github.com/wolfeidau/assetpipe/internal/assets")

// Result describes a completed build.
type Result struct {
	BuildID      string
	Artifacts    []manifest.Artifact
	Entrypoints  manifest.EntrypointSet
	Manifest     *manifest.Manifest
	ManifestPath string
	Changed      bool
	Fingerprint  string
	Duration     time.Duration
}

// Build runs esbuild with the configured settings, then writes the asset manifest
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buildID := uuid.Must(uuid.NewV7()).String()
	logger := log.With().Str("build_id", buildID).Logger()

	ctx, span := tracer.Start(ctx, "assets.Build")
	defer span.End()
	span.SetAttributes(attribute.String("build.id", buildID), attribute.String("build.mode", string(p.config.Mode)))

	started := time.Now()
	m := telemetry.GetMetrics()
	modeAttr := metric.WithAttributes(attribute.String("mode", string(p.config.Mode)))

	res, err := p.build(logger.WithContext(ctx), buildID)

	m.BuildsTotal.Add(ctx, 1, modeAttr)
	m.BuildDuration.Record(ctx, float64(time.Since(started).Milliseconds()), modeAttr)
	if err != nil {
		m.BuildErrorsTotal.Add(ctx, 1, modeAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.Duration = time.Since(started)
	m.ArtifactsTotal.Add(ctx, int64(len(res.Artifacts)), modeAttr)

	logger.Info().
		Int("artifacts", len(res.Artifacts)).
		Strs("entrypoints", res.Manifest.Entrypoints).
		Str("manifest", res.ManifestPath).
		Str("fingerprint", res.Fingerprint).
		Bool("changed", res.Changed).
		Dur("duration", res.Duration).
		Msg("Build complete")

	return res, nil
}

func (p *Pipeline) build(ctx context.Context, buildID string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	root, err := filepath.Abs(p.config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	entryPoints, err := p.resolveEntryPoints()
	if err != nil {
		return nil, err
	}

	outDir := p.resolve(p.config.OutputDir)
	if p.config.Clean {
		if err := cleanDir(root, outDir); err != nil {
			return nil, err
		}
		logger.Debug().Str("dir", outDir).Msg("Cleaned output directory")
	}

	logger.Info().Strs("entrypoints", entryPoints).Str("mode", string(p.config.Mode)).Msg("Building assets")

	result := api.Build(p.buildOptions(root, entryPoints))

	if len(result.Errors) > 0 {
		buildlog.BuildMessages(logger, zerolog.ErrorLevel, result.Errors)
		return nil, fmt.Errorf("%w: %d errors", ErrBuildFailed, len(result.Errors))
	}

	buildlog.BuildMessages(logger, zerolog.WarnLevel, result.Warnings)

	for _, file := range result.OutputFiles {
		logger.Debug().Str("file", file.Path).Msg("Built file")
	}

	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.resolve(p.config.MetafilePath), []byte(result.Metafile), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write metafile: %w", err)
		}
	}

	var metadata Metafile
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	// metafile paths are relative to the absolute working directory
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	relOut, err := filepath.Rel(root, absOut)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	artifacts, entrypoints := Collect(&metadata, CollectOptions{
		OutputDir:  relOut,
		PublicPath: p.config.PublicPath,
		EntryNames: p.entryNames(entryPoints),
	})

	if p.tmpl != nil {
		artifacts = append(artifacts, manifest.Artifact{
			Name: p.config.HTMLFileName,
			Path: publicURL(p.config.PublicPath, p.config.HTMLFileName),
		})
	}

	seed, err := p.seeds.Load(ctx, p.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed manifest: %w", err)
	}

	entryName := p.primaryEntryName(entryPoints)
	if entryName != p.config.EntryName {
		logger.Debug().Str("entry_name", p.config.EntryName).Str("using", entryName).Msg("Configured entry name not built, listing first entry")
	}
	m, err := manifest.Build(seed, artifacts, entrypoints, manifest.WithEntrypoint(entryName))
	if err != nil {
		return nil, err
	}

	if p.tmpl != nil {
		if err := p.renderHTML(filepath.Join(outDir, p.config.HTMLFileName), m); err != nil {
			return nil, err
		}
	}

	manifestPath := filepath.Join(outDir, p.config.ManifestFileName)
	changed, err := manifest.WriteFile(manifestPath, m)
	if err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	fingerprint, err := manifest.Fingerprint(m)
	if err != nil {
		return nil, err
	}

	p.metadata = &metadata
	p.entrypoints = entrypoints
	p.manifest = m

	return &Result{
		BuildID:      buildID,
		Artifacts:    artifacts,
		Entrypoints:  entrypoints,
		Manifest:     m,
		ManifestPath: manifestPath,
		Changed:      changed,
		Fingerprint:  fingerprint,
	}, nil
}

func (p *Pipeline) buildOptions(root string, entryPoints []string) api.BuildOptions {
	production := p.config.Mode == ModeProduction
	names := p.entryNames(entryPoints)

	advanced := make([]api.EntryPoint, 0, len(entryPoints))
	for _, ep := range entryPoints {
		advanced = append(advanced, api.EntryPoint{InputPath: ep, OutputPath: names[ep]})
	}

	return api.BuildOptions{
		AbsWorkingDir:       root,
		EntryPointsAdvanced: advanced,
		Bundle:              true,
		Splitting:           true,
		Write:               true,
		Platform:            api.PlatformBrowser,
		JSX:                 api.JSXAutomatic,
		Outdir:              p.config.OutputDir,
		PublicPath:          p.config.PublicPath,
		EntryNames:          p.config.EntryNames,
		ChunkNames:          p.config.ChunkNames,
		AssetNames:          p.config.AssetNames,
		Format:              api.FormatESModule,
		ResolveExtensions:   []string{".ts", ".tsx", ".js", ".jsx"},
		Alias:               p.config.Aliases,
		Loader:              defaultLoaders(),
		Define:              map[string]string{"process.env.NODE_ENV": fmt.Sprintf("%q", p.config.Mode)},
		MinifyWhitespace:    production,
		MinifyIdentifiers:   production,
		MinifySyntax:        production,
		TreeShaking:         api.TreeShakingTrue,
		Sourcemap:           p.sourceMap(production),
		Metafile:            true,
		LogLevel:            api.LogLevelSilent,
	}
}

// sourceMap links maps in production and inlines them in development
func (p *Pipeline) sourceMap(production bool) api.SourceMap {
	if !p.config.SourceMap {
		return api.SourceMapNone
	}
	return cond(production, api.SourceMapLinked, api.SourceMapInline)
}

// defaultLoaders inlines images as data URLs and bundles stylesheets
func defaultLoaders() map[string]api.Loader {
	return map[string]api.Loader{
		".png":  api.LoaderDataURL,
		".jpg":  api.LoaderDataURL,
		".jpeg": api.LoaderDataURL,
		".gif":  api.LoaderDataURL,
		".bmp":  api.LoaderDataURL,
		".svg":  api.LoaderDataURL,
		".css":  api.LoaderCSS,
	}
}

// resolveEntryPoints expands the configured patterns relative to the root,
// returning root-relative paths in a stable order
func (p *Pipeline) resolveEntryPoints() ([]string, error) {
	seen := make(map[string]bool)
	var entryPoints []string

	for _, pattern := range p.config.EntryPoints {
		matches, err := filepath.Glob(p.resolve(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid entry point pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(p.config.Root, match)
			if err != nil {
				return nil, err
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				seen[rel] = true
				entryPoints = append(entryPoints, rel)
			}
		}
	}

	if len(entryPoints) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoEntryPoints, p.config.EntryPoints)
	}

	return entryPoints, nil
}

// entryNames maps each entry source to its logical name; a single entry takes the configured EntryName
func (p *Pipeline) entryNames(entryPoints []string) map[string]string {
	names := make(map[string]string, len(entryPoints))
	for _, ep := range entryPoints {
		base := filepath.Base(ep)
		names[ep] = base[:len(base)-len(filepath.Ext(base))]
	}
	if len(entryPoints) == 1 && p.config.EntryName != "" {
		names[entryPoints[0]] = p.config.EntryName
	}
	return names
}

// primaryEntryName returns the entry listed in the manifest: the configured
// EntryName when an entry carries it, otherwise the first resolved entry
func (p *Pipeline) primaryEntryName(entryPoints []string) string {
	names := p.entryNames(entryPoints)
	if p.config.EntryName != "" {
		for _, name := range names {
			if name == p.config.EntryName {
				return name
			}
		}
	}
	return names[entryPoints[0]]
}

func (p *Pipeline) renderHTML(path string, m *manifest.Manifest) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to create html page: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := p.tmpl.Execute(f, NewPageData(p.config.Title, m, nil)); err != nil {
		return fmt.Errorf("failed to render html page: %w", err)
	}
	return f.Close()
}

// Manifest returns the manifest of the last successful build
func (p *Pipeline) Manifest() (*manifest.Manifest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.manifest == nil {
		return nil, ErrNotBuilt
	}
	return p.manifest, nil
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint
func (p *Pipeline) LoadScripts(entryName string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, ErrNotBuilt
	}

	m, err := manifest.Build(nil, nil, p.entrypoints, manifest.WithEntrypoint(entryName))
	if err != nil {
		return nil, err
	}

	return m.Scripts(".js"), nil
}

// Handler returns an http.HandlerFunc that renders the HTML template with the entrypoint's scripts
func (p *Pipeline) Handler(title, entryName string, contextFn func(ctx context.Context) any) (http.HandlerFunc, error) {
	if p.tmpl == nil {
		return nil, fmt.Errorf("template not loaded, configure HTMLTemplate")
	}

	if contextFn == nil {
		contextFn = func(ctx context.Context) any {
			return nil
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		p.mu.RLock()
		entrypoints := p.entrypoints
		p.mu.RUnlock()

		if entrypoints == nil {
			log.Error().Err(ErrNotBuilt).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		m, err := manifest.Build(nil, nil, entrypoints, manifest.WithEntrypoint(entryName))
		if err != nil {
			log.Error().Err(err).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := p.tmpl.Execute(w, NewPageData(title, m, contextFn(r.Context()))); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}, nil
}

// cleanDir empties dir, refusing the filesystem root and the working directory
func cleanDir(root, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if abs == root || abs == filepath.Dir(abs) {
		return fmt.Errorf("%w: %s", ErrUnsafeOutputDir, abs)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	return os.MkdirAll(abs, 0o755) //nolint:gosec
}

func publicURL(publicPath, name string) string {
	if publicPath == "" {
		publicPath = "/"
	}
	if publicPath[len(publicPath)-1] != '/' {
		publicPath += "/"
	}
	return publicPath + name
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
