package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assetpipe/cmd/assetpipe/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build    commands.BuildCmd    `cmd:"" help:"Bundle the application and write the asset manifest"`
		Manifest commands.ManifestCmd `cmd:"" help:"Generate an asset manifest from a build stats document"`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve a finished build directory"`
		Debug    bool                 `help:"Enable debug mode." env:"ASSETPIPE_DEBUG"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("assetpipe"),
		kong.Description("Bundle web assets and generate asset manifests."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
