package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/assetpipe/internal/naming"
)

type NameCmd struct {
	File     string `arg:"" help:"file whose contents are hashed" type:"existingfile"`
	Template string `help:"filename template; the configured asset template when empty" default:""`
	Name     string `help:"value for the [name] token; the file's base name when empty" default:""`
}

func (c *NameCmd) Run(ctx context.Context, globals *Globals) error {
	globals.setupLogger()

	cfg, _ := globals.loadConfig()

	namer, err := naming.New(cfg.Output.HashFunction, cfg.Output.HashDigest, cfg.Output.HashLength)
	if err != nil {
		return err
	}

	contents, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	tmpl := c.Template
	if tmpl == "" {
		tmpl = cfg.Output.AssetFilename
	}

	name, ext := naming.SplitName(c.File)
	if c.Name != "" {
		name = c.Name
	}

	digest := namer.Digest(contents)
	out, err := namer.Name(tmpl, naming.Tokens{
		Name:        name,
		Ext:         ext,
		ChunkHash:   digest,
		ContentHash: digest,
		Hash:        namer.BuildHash(digest),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.stdout(), out)
	return nil
}
