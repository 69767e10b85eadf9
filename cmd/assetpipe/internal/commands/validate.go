package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/config"
	"github.com/wolfeidau/assetpipe/internal/naming"
	"github.com/wolfeidau/assetpipe/internal/rules"
	"github.com/wolfeidau/assetpipe/internal/transform"
)

// ErrNoConfig indicates validate found no config file to check
var ErrNoConfig = errors.New("no config file found")

type ValidateCmd struct{}

// Run loads the config strictly: unlike the other commands it never falls
// back to the built-in configuration.
func (c *ValidateCmd) Run(ctx context.Context, globals *Globals) error {
	globals.setupLogger()

	path := globals.configPath()
	if path == "" {
		return fmt.Errorf("%w, looked for %v", ErrNoConfig, config.DefaultFiles)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	var errs []error
	matcher, err := rules.Compile(cfg.Rules)
	if err != nil {
		errs = append(errs, err)
	}
	if err := transform.NewRegistry(nil).Validate(cfg.Rules); err != nil {
		errs = append(errs, err)
	}
	if _, err := naming.New(cfg.Output.HashFunction, cfg.Output.HashDigest, cfg.Output.HashLength); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	log.Debug().Str("config", path).Int("rules", matcher.Len()).Msg("Configuration is valid")
	fmt.Fprintf(globals.stdout(), "%s: ok (%d entries, %d rules)\n", path, len(cfg.Entries), matcher.Len())
	return nil
}
