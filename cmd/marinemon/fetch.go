package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/marinemon/internal/config"
	"github.com/hazz-dev/marinemon/internal/marine"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
)

func executeFetch(cmd *cobra.Command, cfg *config.Config) error {
	client := openmeteo.NewClient(cfg.API.BaseURL, cfg.API.Timezone, cfg.API.RequestTimeout.Duration)
	return runFetches(cmd.OutOrStdout(), cfg, client)
}

// marineFetcher is the slice of the API client the fetch command needs.
type marineFetcher interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (*openmeteo.CurrentMarine, error)
}

func runFetches(out io.Writer, cfg *config.Config, client marineFetcher) error {
	type result struct {
		loc     config.Location
		data    *openmeteo.CurrentMarine
		elapsed time.Duration
		err     error
	}

	results := make([]result, len(cfg.Locations))
	var wg sync.WaitGroup

	for i, loc := range cfg.Locations {
		wg.Add(1)
		go func(i int, loc config.Location) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout.Duration)
			defer cancel()
			start := time.Now()
			data, err := client.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
			results[i] = result{loc: loc, data: data, elapsed: time.Since(start), err: err}
		}(i, loc)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tSWELL\tDIRECTION\tPERIOD\tWAVE\tRESPONSE\tERROR")
	allOK := true
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "%s\t—\t—\t—\t—\t%s\t%v\n",
				r.loc.Name,
				r.elapsed.Round(time.Millisecond),
				r.err,
			)
			allOK = false
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.loc.Name,
			formatMeters(r.data.SwellWaveHeight),
			marine.DegreesToCompass(r.data.SwellWaveDirection),
			formatSeconds(r.data.SwellWavePeriod),
			formatMeters(r.data.WaveHeight),
			r.elapsed.Round(time.Millisecond),
		)
	}
	w.Flush()

	if !allOK {
		return fmt.Errorf("one or more locations failed to fetch")
	}
	return nil
}

func formatMeters(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.2fm", *v)
}

func formatSeconds(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.1fs", *v)
}
