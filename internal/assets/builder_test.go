package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/manifest"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>{{ .Title }}</title>{{ range .Styles }}<link rel="stylesheet" href="{{ . }}">{{ end }}</head>
<body>{{ range .Scripts }}<script type="module" src="{{ . }}"></script>{{ end }}</body>
</html>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// setupProject creates a minimal UI project and returns its root
func setupProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "index.ts"), `import { greet } from "src/greet";
import "./style.css";

document.body.textContent = greet("world");
`)
	writeFile(t, filepath.Join(root, "src", "greet.ts"), `export function greet(name: string): string {
  return "hello " + name;
}
`)
	writeFile(t, filepath.Join(root, "src", "style.css"), "body { color: red; }\n")
	writeFile(t, filepath.Join(root, "public", "index.html"), indexTemplate)

	return root
}

func testConfig(root string) Config {
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.EntryPoints = []string{"src/index.ts"}
	cfg.Title = "Test"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "no entry points", mutate: func(c *Config) { c.EntryPoints = nil }, wantErr: true},
		{name: "no output dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: true},
		{name: "no manifest name", mutate: func(c *Config) { c.ManifestFileName = "" }, wantErr: true},
		{name: "template without html name", mutate: func(c *Config) { c.HTMLFileName = "" }, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "staging" }, wantErr: true},
		{name: "development", mutate: func(c *Config) { c.Mode = ModeDevelopment }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew_missingTemplate(t *testing.T) {
	cfg := testConfig(t.TempDir())

	_, err := New(cfg)
	require.Error(t, err)
}

func TestPipeline_Build(t *testing.T) {
	root := setupProject(t)
	stale := filepath.Join(root, "build", "stale.js")
	writeFile(t, stale, "old")

	p, err := New(testConfig(root))
	require.NoError(t, err)

	res, err := p.Build(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.BuildID)
	require.True(t, res.Changed)
	require.NotEmpty(t, res.Fingerprint)

	require.NoFileExists(t, stale)
	require.FileExists(t, filepath.Join(root, "build", "main.js"))
	require.FileExists(t, filepath.Join(root, "build", "main.js.map"))

	require.Equal(t, []string{"/main.js", "/main.css"}, res.Manifest.Entrypoints)
	for _, name := range []string{"main.js", "main.js.map", "main.css", "index.html"} {
		_, ok := res.Manifest.Files.Get(name)
		require.True(t, ok, "missing %s", name)
	}

	written, err := manifest.ReadFile(filepath.Join(root, "build", "asset-manifest.json"))
	require.NoError(t, err)
	require.True(t, res.Manifest.Files.Equal(written.Files))
	require.Equal(t, res.Manifest.Entrypoints, written.Entrypoints)

	html, err := os.ReadFile(filepath.Join(root, "build", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), `<script type="module" src="/main.js"></script>`)
	require.Contains(t, string(html), `<link rel="stylesheet" href="/main.css">`)
	require.Contains(t, string(html), `<title>Test</title>`)

	scripts, err := p.LoadScripts("main")
	require.NoError(t, err)
	require.Equal(t, []string{"/main.js"}, scripts)
}

func TestPipeline_Build_stableManifest(t *testing.T) {
	root := setupProject(t)

	p, err := New(testConfig(root))
	require.NoError(t, err)

	first, err := p.Build(context.Background())
	require.NoError(t, err)

	cfg := testConfig(root)
	cfg.Clean = false
	p, err = New(cfg)
	require.NoError(t, err)

	second, err := p.Build(context.Background())
	require.NoError(t, err)
	require.False(t, second.Changed)
	require.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestPipeline_Build_withoutSourceMaps(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(root)
	cfg.SourceMap = false
	cfg.HTMLTemplate = ""

	p, err := New(cfg)
	require.NoError(t, err)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	_, ok := res.Manifest.Files.Get("main.js.map")
	require.False(t, ok)
	_, ok = res.Manifest.Files.Get("index.html")
	require.False(t, ok)
	require.NoFileExists(t, filepath.Join(root, "build", "index.html"))
}

type stubSeedLoader struct {
	files *manifest.Files
	err   error
	refs  []string
}

func (s *stubSeedLoader) Load(_ context.Context, ref string) (*manifest.Files, error) {
	s.refs = append(s.refs, ref)
	return s.files, s.err
}

func TestPipeline_Build_seed(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(root)
	cfg.Seed = "https://example.com/asset-manifest.json"

	seeds := &stubSeedLoader{files: manifest.NewFiles("favicon.ico", "/favicon.ico")}
	p, err := New(cfg, WithSeedLoader(seeds))
	require.NoError(t, err)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/asset-manifest.json"}, seeds.refs)
	require.Equal(t, "favicon.ico", res.Manifest.Files.Keys()[0])
}

func TestPipeline_Build_seedError(t *testing.T) {
	root := setupProject(t)

	seeds := &stubSeedLoader{err: errors.New("boom")}
	p, err := New(testConfig(root), WithSeedLoader(seeds))
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestPipeline_Build_errors(t *testing.T) {
	root := setupProject(t)
	writeFile(t, filepath.Join(root, "src", "broken.ts"), "export const = ;\n")

	cfg := testConfig(root)
	cfg.EntryPoints = []string{"src/broken.ts"}
	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)

	cfg.EntryPoints = []string{"src/*.tsx"}
	p, err = New(cfg)
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, ErrNoEntryPoints)
}

func TestPipeline_Build_refusesToCleanRoot(t *testing.T) {
	root := setupProject(t)
	cfg := testConfig(root)
	cfg.OutputDir = "."

	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, ErrUnsafeOutputDir)
	require.FileExists(t, filepath.Join(root, "src", "index.ts"))
}

func TestPipeline_notBuilt(t *testing.T) {
	root := setupProject(t)

	p, err := New(testConfig(root))
	require.NoError(t, err)

	_, err = p.LoadScripts("main")
	require.ErrorIs(t, err, ErrNotBuilt)

	_, err = p.Manifest()
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestPipeline_Handler(t *testing.T) {
	root := setupProject(t)

	p, err := New(testConfig(root))
	require.NoError(t, err)

	handler, err := p.Handler("Home", "main", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `<title>Home</title>`)
	require.Contains(t, w.Body.String(), `src="/main.js"`)

	handler, err = p.Handler("Admin", "admin", nil)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPipeline_Build_sharedChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "x.ts"), "export const x = (n: number) => n * 2;\n")
	writeFile(t, filepath.Join(root, "src", "y.ts"), "export const y = (s: string) => s.toUpperCase();\n")
	writeFile(t, filepath.Join(root, "src", "a.ts"), `import { x } from "./x";
import { y } from "./y";

console.log(x(1), y("a"));
`)
	writeFile(t, filepath.Join(root, "src", "b.ts"), `import { x } from "./x";

console.log(x(2));
`)
	writeFile(t, filepath.Join(root, "src", "c.ts"), `import { y } from "./y";

console.log(y("c"));
`)

	cfg := testConfig(root)
	cfg.EntryPoints = []string{"src/a.ts", "src/b.ts", "src/c.ts"}
	cfg.EntryName = "a"
	cfg.SourceMap = false
	cfg.HTMLTemplate = ""

	p, err := New(cfg)
	require.NoError(t, err)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "build"))
	require.NoError(t, err)

	var emitted []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".js" {
			emitted = append(emitted, "/"+e.Name())
		}
	}
	require.Len(t, emitted, 5)
	require.Len(t, res.Artifacts, 5)
	require.Equal(t, 5, res.Manifest.Files.Len())

	var paths []string
	for _, name := range res.Manifest.Files.Keys() {
		path, _ := res.Manifest.Files.Get(name)
		paths = append(paths, path)
	}
	require.ElementsMatch(t, emitted, paths)

	require.Equal(t, "/a.js", res.Manifest.Entrypoints[0])
	require.Len(t, res.Manifest.Entrypoints, 3)
}

func TestPipeline_Build_entryNameFallsBackToFirstEntry(t *testing.T) {
	root := setupProject(t)
	writeFile(t, filepath.Join(root, "src", "admin.ts"), "console.log(\"admin\");\n")

	cfg := testConfig(root)
	cfg.EntryPoints = []string{"src/*.ts"}
	cfg.SourceMap = false
	cfg.HTMLTemplate = ""

	p, err := New(cfg)
	require.NoError(t, err)

	res, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"/admin.js"}, res.Manifest.Entrypoints)

	scripts, err := p.LoadScripts("index")
	require.NoError(t, err)
	require.Equal(t, "/index.js", scripts[0])
}
