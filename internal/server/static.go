package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/assetpipe/internal/assets"
	httpmiddleware "github.com/wolfeidau/assetpipe/internal/http"
	"github.com/wolfeidau/assetpipe/internal/manifest"
)

// Config configures the static preview server.
type Config struct {
	// Build output directory to serve
	Dir string
	// Manifest file name inside Dir
	ManifestFileName string
	// Optional HTML template rendered for the index page, otherwise Dir/index.html is served
	Template string
	// Title passed to the template
	Title string
	// Origins allowed by CORS, "*" allows any
	CORSOrigins []string
	// Render the index page for unknown extensionless paths
	HistoryFallback bool
}

// Static serves a finished build directory with pages rendered from its asset manifest.
type Static struct {
	config   Config
	manifest *manifest.Manifest
	tmpl     *template.Template
	files    http.Handler
}

// NewStatic loads the manifest and optional template for a build directory
func NewStatic(config Config) (*Static, error) {
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("build directory not found at %s: %w", config.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build directory %s is not a directory", config.Dir)
	}

	m, err := manifest.ReadFile(filepath.Join(config.Dir, config.ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load asset manifest: %w", err)
	}

	s := &Static{
		config:   config,
		manifest: m,
		files:    http.FileServer(http.Dir(config.Dir)),
	}

	if config.Template != "" {
		s.tmpl, err = assets.ParseTemplate(config.Template, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load template: %w", err)
		}
	}

	log.Debug().
		Str("dir", config.Dir).
		Int("files", m.Files.Len()).
		Strs("entrypoints", m.Entrypoints).
		Msg("Loaded asset manifest")

	return s, nil
}

// ServeHTTP serves the index page, build files, or the history fallback
func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name == "/" || name == "/index.html" {
		s.serveIndex(w, r)
		return
	}

	if s.exists(name) {
		s.files.ServeHTTP(w, r)
		return
	}

	if s.config.HistoryFallback && path.Ext(name) == "" {
		s.serveIndex(w, r)
		return
	}

	http.NotFound(w, r)
}

func (s *Static) exists(name string) bool {
	info, err := os.Stat(filepath.Join(s.config.Dir, filepath.FromSlash(strings.TrimPrefix(name, "/"))))
	return err == nil && !info.IsDir()
}

func (s *Static) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	if s.tmpl == nil {
		if !s.exists("/index.html") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.config.Dir, "index.html"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, assets.NewPageData(s.config.Title, s.manifest, nil)); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to render template")
	}
}

// Handler wraps the server with compression, CSRF protection, CORS and access logging
func (s *Static) Handler(logger zerolog.Logger) (http.Handler, error) {
	if len(s.config.CORSOrigins) == 0 {
		return nil, errors.New("at least one CORS origin is required")
	}

	protection := csrf.New()

	var h http.Handler = gzhttp.GzipHandler(s)
	h = protection.Handler(h)
	h = withCORS(s.config.CORSOrigins, h)
	h = httpmiddleware.AccessLogMiddleware(logger)(h)
	h = httpmiddleware.ClientIPMiddleware()(h)

	return h, nil
}

// withCORS allows cross origin asset loads from the configured origins
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"X-Requested-With", "Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
