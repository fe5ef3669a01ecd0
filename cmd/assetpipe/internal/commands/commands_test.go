package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/assetpipe/internal/manifest"
)

const statsDocument = `{
  "artifacts": [
    {"name": "main.js", "path": "/main.old.js"},
    {"name": "main.js.map", "path": "/main.js.map"},
    {"name": "main.js", "path": "/main.js"}
  ],
  "entrypoints": {
    "main": ["/main.js", "/main.js.map", "/chunk.js"],
    "admin": ["/admin.js"]
  }
}
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func seedFlags() SeedFetchFlags {
	return SeedFetchFlags{Timeout: time.Second, MaxTries: 1}
}

func TestManifestCmd_Run(t *testing.T) {
	dir := t.TempDir()
	stats := writeFile(t, filepath.Join(dir, "stats.json"), statsDocument)
	seed := writeFile(t, filepath.Join(dir, "seed.yaml"), "favicon.ico: /favicon.ico\nmain.js: /seeded.js\n")

	var out bytes.Buffer
	cmd := &ManifestCmd{
		Stats:      stats,
		Seed:       seed,
		Entrypoint: "main",
		Exclude:    []string{".map"},
		SeedFetch:  seedFlags(),
		stdout:     &out,
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got, 2)

	m := manifest.Manifest{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, []string{"favicon.ico", "main.js", "main.js.map"}, m.Files.Keys())

	path, _ := m.Files.Get("main.js")
	assert.Equal(t, "/main.js", path)
	assert.Equal(t, []string{"/main.js", "/chunk.js"}, m.Entrypoints)
}

func TestManifestCmd_Run_output(t *testing.T) {
	dir := t.TempDir()
	stats := writeFile(t, filepath.Join(dir, "stats.yaml"), `artifacts:
  - name: admin.js
    path: /admin.js
entrypoints:
  admin:
    - /admin.js
    - /admin.js.map
`)
	output := filepath.Join(dir, "out", "asset-manifest.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(output), 0o755))

	cmd := &ManifestCmd{
		Stats:      stats,
		Entrypoint: "admin",
		Exclude:    []string{".map"},
		Output:     output,
		SeedFetch:  seedFlags(),
	}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	m, err := manifest.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"/admin.js"}, m.Entrypoints)
}

func TestManifestCmd_Run_missingEntrypoint(t *testing.T) {
	dir := t.TempDir()
	stats := writeFile(t, filepath.Join(dir, "stats.json"), statsDocument)

	cmd := &ManifestCmd{
		Stats:      stats,
		Entrypoint: "worker",
		SeedFetch:  seedFlags(),
		stdout:     &bytes.Buffer{},
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, manifest.ErrEntrypointNotFound)
}

func TestManifestCmd_Run_invalidSeedFlags(t *testing.T) {
	cmd := &ManifestCmd{
		Stats:     "stats.json",
		SeedFetch: SeedFetchFlags{Timeout: time.Second},
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max tries")
}

func TestBuildCmd_Run(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "index.ts"), `import { add } from "src/math";

console.log(add(1, 2));
`)
	writeFile(t, filepath.Join(root, "src", "math.ts"), `export const add = (a: number, b: number): number => a + b;
`)

	cmd := &BuildCmd{
		Root:       root,
		Entry:      []string{"src/index.ts"},
		EntryName:  "main",
		OutDir:     "build",
		PublicPath: "/static/",
		Manifest:   "asset-manifest.json",
		Mode:       "development",
		SourceMap:  false,
		Clean:      true,
		ChunkNames: "[name].[hash].chunk.min",
		AssetNames: "static/media/[name].[hash]",
		Alias:      map[string]string{"src": "./src"},
		SeedFetch:  seedFlags(),
	}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	m, err := manifest.ReadFile(filepath.Join(root, "build", "asset-manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/static/main.js"}, m.Entrypoints)

	path, ok := m.Files.Get("main.js")
	require.True(t, ok)
	assert.Equal(t, "/static/main.js", path)
}

func TestBuildCmd_Run_missingEntry(t *testing.T) {
	cmd := &BuildCmd{
		Root:      t.TempDir(),
		Entry:     []string{"src/index.tsx"},
		OutDir:    "build",
		Manifest:  "asset-manifest.json",
		Mode:      "production",
		SeedFetch: seedFlags(),
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
}

func TestServeCmd_Validate(t *testing.T) {
	require.NoError(t, (&ServeCmd{}).Validate())
	require.NoError(t, (&ServeCmd{Cert: "cert.pem", Key: "key.pem"}).Validate())
	require.Error(t, (&ServeCmd{Cert: "cert.pem"}).Validate())
}

func TestCLI_defaults(t *testing.T) {
	var cli struct {
		Build BuildCmd `cmd:""`
	}

	parser, err := kong.New(&cli, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"build", "--no-source-map", "--entry", "src/a.ts", "--entry", "src/b.ts"})
	require.NoError(t, err)

	cfg := cli.Build.config()
	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, cfg.EntryPoints)
	assert.False(t, cfg.SourceMap)
	assert.True(t, cfg.Clean)
	assert.Equal(t, "build", cfg.OutputDir)
	assert.Equal(t, "asset-manifest.json", cfg.ManifestFileName)
	assert.Equal(t, "[name].[hash].chunk.min", cfg.ChunkNames)
	assert.Equal(t, map[string]string{"src": "./src"}, cfg.Aliases)
	assert.Equal(t, uint(5), cli.Build.SeedFetch.MaxTries)
	assert.Equal(t, 30*time.Second, cli.Build.SeedFetch.Timeout)
}
