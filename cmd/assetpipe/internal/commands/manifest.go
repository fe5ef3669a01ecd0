package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assetpipe/internal/client"
	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/manifest"
)

type ManifestCmd struct {
	Stats      string         `arg:"" help:"build stats document (JSON or YAML) listing artifacts and entrypoints" type:"existingfile"`
	Seed       string         `help:"seed manifest file or URL folded into the manifest" default:"" env:"ASSETPIPE_SEED"`
	Entrypoint string         `help:"entry point listed in the manifest" default:"main" env:"ASSETPIPE_ENTRY_NAME"`
	Exclude    []string       `help:"path suffixes removed from the entrypoint list" default:".map"`
	Output     string         `short:"o" help:"write the manifest to this file instead of stdout" default:""`
	SeedFetch  SeedFetchFlags `embed:"" prefix:"seed-"`

	stdout io.Writer `kong:"-"`
}

func (c *ManifestCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	if err := c.SeedFetch.Validate(); err != nil {
		return fmt.Errorf("failed to validate seed flags: %w", err)
	}

	stats, err := manifest.LoadStats(c.Stats)
	if err != nil {
		return fmt.Errorf("failed to load build stats: %w", err)
	}

	seeds := client.NewSeedLoader(client.Config{
		CacheDir: c.SeedFetch.CacheDir,
		Timeout:  c.SeedFetch.Timeout,
		MaxTries: c.SeedFetch.MaxTries,
	})

	seed, err := seeds.Load(ctx, c.Seed)
	if err != nil {
		return fmt.Errorf("failed to load seed manifest: %w", err)
	}

	m, err := manifest.Build(seed, stats.Artifacts, stats.Entrypoints,
		manifest.WithEntrypoint(c.Entrypoint),
		manifest.WithExcludedSuffixes(c.Exclude...),
	)
	if err != nil {
		return err
	}

	if c.Output == "" {
		out := c.stdout
		if out == nil {
			out = os.Stdout
		}
		return manifest.Encode(out, m)
	}

	changed, err := manifest.WriteFile(c.Output, m)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	log.Info().
		Str("manifest", c.Output).
		Int("files", m.Files.Len()).
		Int("entrypoints", len(m.Entrypoints)).
		Bool("changed", changed).
		Msg("Manifest written")

	return nil
}
