package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/assetpipe/internal/assets"
	"github.com/wolfeidau/assetpipe/internal/client"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/manifest"
)

type BuildCmd struct {
	Root       string            `help:"project root all other paths are relative to" default:"." env:"ASSETPIPE_ROOT" type:"path"`
	Entry      []string          `help:"entry point files or glob patterns" default:"src/index.tsx" env:"ASSETPIPE_ENTRY"`
	EntryName  string            `help:"entry point listed in the manifest, the first resolved entry is listed when none carries this name" default:"main" env:"ASSETPIPE_ENTRY_NAME"`
	OutDir     string            `help:"output directory" default:"build" env:"ASSETPIPE_OUTDIR"`
	PublicPath string            `help:"URL prefix for every path in the manifest" default:"/" env:"ASSETPIPE_PUBLIC_PATH"`
	Manifest   string            `help:"manifest file name written into the output directory" default:"asset-manifest.json" env:"ASSETPIPE_MANIFEST"`
	Metafile   string            `help:"optional path to write the esbuild metafile to" default:"" env:"ASSETPIPE_METAFILE"`
	Template   string            `help:"HTML template rendered into the output directory, empty to skip" default:"public/index.html" env:"ASSETPIPE_TEMPLATE"`
	Title      string            `help:"page title passed to the HTML template" default:"" env:"ASSETPIPE_TITLE"`
	Seed       string            `help:"seed manifest file or URL folded into the manifest" default:"" env:"ASSETPIPE_SEED"`
	Mode       string            `help:"build mode" default:"production" enum:"production,development" env:"ASSETPIPE_MODE"`
	SourceMap  bool              `help:"emit source maps" default:"true" negatable:"" env:"ASSETPIPE_SOURCE_MAP"`
	Clean      bool              `help:"empty the output directory before building" default:"true" negatable:"" env:"ASSETPIPE_CLEAN"`
	ChunkNames string            `help:"esbuild chunk naming template" default:"[name].[hash].chunk.min" env:"ASSETPIPE_CHUNK_NAMES"`
	AssetNames string            `help:"esbuild asset naming template" default:"static/media/[name].[hash]" env:"ASSETPIPE_ASSET_NAMES"`
	Alias      map[string]string `help:"import path aliases" default:"src=./src" env:"ASSETPIPE_ALIAS"`
	Print      bool              `help:"print the manifest to stdout after building" default:"false"`
	Tracing    bool              `help:"enable tracing" default:"false" env:"ASSETPIPE_TRACING"`
	SeedFetch  SeedFetchFlags    `embed:"" prefix:"seed-"`
	Timeout    time.Duration     `help:"abort the build after this long, zero disables" default:"0s" env:"ASSETPIPE_TIMEOUT"`
}

// SeedFetchFlags configures fetching of remote seed manifests
type SeedFetchFlags struct {
	CacheDir string        `help:"directory for cached seed responses, in memory when empty" default:"" env:"ASSETPIPE_SEED_CACHE_DIR"`
	Timeout  time.Duration `help:"per request timeout for remote seeds" default:"30s" env:"ASSETPIPE_SEED_TIMEOUT"`
	MaxTries uint          `help:"attempts for a remote seed including the first" default:"5" env:"ASSETPIPE_SEED_MAX_TRIES"`
}

func (s *SeedFetchFlags) Validate() error {
	if s.MaxTries == 0 {
		return errors.New("seed max tries must be at least 1 (--seed-max-tries or ASSETPIPE_SEED_MAX_TRIES)")
	}
	if s.Timeout <= 0 {
		return errors.New("seed timeout must be positive (--seed-timeout or ASSETPIPE_SEED_TIMEOUT)")
	}
	return nil
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting build")

	shutdown := setupTracing(ctx, log, c.Tracing, "assetpipe-build", globals.Version)
	defer shutdown()

	if err := c.SeedFetch.Validate(); err != nil {
		return fmt.Errorf("failed to validate seed flags: %w", err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	seeds := client.NewSeedLoader(client.Config{
		CacheDir: c.SeedFetch.CacheDir,
		Timeout:  c.SeedFetch.Timeout,
		MaxTries: c.SeedFetch.MaxTries,
	})

	pipeline, err := assets.New(c.config(), assets.WithSeedLoader(seeds))
	if err != nil {
		return fmt.Errorf("failed to create asset pipeline: %w", err)
	}

	res, err := pipeline.Build(ctx)
	if err != nil {
		return err
	}

	if c.Print {
		return manifest.Encode(os.Stdout, res.Manifest)
	}

	return nil
}

func (c *BuildCmd) config() assets.Config {
	cfg := assets.DefaultConfig()

	cfg.Root = c.Root
	cfg.EntryPoints = c.Entry
	cfg.EntryName = c.EntryName
	cfg.OutputDir = c.OutDir
	cfg.PublicPath = c.PublicPath
	cfg.ManifestFileName = c.Manifest
	cfg.MetafilePath = c.Metafile
	cfg.HTMLTemplate = c.Template
	cfg.Title = c.Title
	cfg.Seed = c.Seed
	cfg.Mode = assets.Mode(c.Mode)
	cfg.SourceMap = c.SourceMap
	cfg.Clean = c.Clean
	cfg.ChunkNames = c.ChunkNames
	cfg.AssetNames = c.AssetNames
	cfg.Aliases = c.Alias

	return cfg
}
