package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/marinemon/internal/config"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
)

func executeHealth(cmd *cobra.Command, cfg *config.Config) error {
	client := openmeteo.NewClient(cfg.API.BaseURL, cfg.API.Timezone, cfg.API.RequestTimeout.Duration)
	return runHealthProbe(cmd.OutOrStdout(), cfg, client)
}

// prober is the slice of the API client the health command needs.
type prober interface {
	Probe(ctx context.Context) error
}

func runHealthProbe(out io.Writer, cfg *config.Config, client prober) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout.Duration)
	defer cancel()

	start := time.Now()
	err := client.Probe(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		fmt.Fprintf(out, "API probe FAILED after %s: %v\n", elapsed, err)
		return fmt.Errorf("probe failed")
	}
	fmt.Fprintf(out, "API probe OK in %s (%s)\n", elapsed, cfg.API.BaseURL)
	return nil
}
