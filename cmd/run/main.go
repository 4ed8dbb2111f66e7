package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pack-discount/internal/app"
	"github.com/noah-isme/pack-discount/internal/cartxform"
	"github.com/noah-isme/pack-discount/internal/config"
	"github.com/noah-isme/pack-discount/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel, os.Stderr).With().Str("component", "run").Logger()

	if err := run(context.Background(), cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("cart transform failed")
		os.Exit(1)
	}
}

// run evaluates one input document from in and writes one result document to out.
// Input that is not JSON yields an empty result, like any other unusable input.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) error {
	evaluator, err := app.NewEvaluator(cfg, logger)
	if err != nil {
		return err
	}
	svc := cartxform.NewService(evaluator, logger, cartxform.EntrypointStdin)

	input, err := cartxform.Decode(in)
	if err != nil {
		if !errors.Is(err, cartxform.ErrInvalidJSON) {
			return err
		}
		logger.Warn().Err(err).Msg("input ignored")
		return cartxform.Encode(out, cartxform.NoChanges())
	}
	return cartxform.Encode(out, svc.Run(ctx, input))
}
