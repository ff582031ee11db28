package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/marinemon/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Fetch, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	fetches, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(fetches) == 0 {
		fmt.Fprintln(out, "No fetch history. Run 'marinemon serve' or 'marinemon fetch' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tSOURCE\tRESPONSE\tLAST FETCHED\tERROR")
	for _, f := range fetches {
		resp := "—"
		if f.ResponseMs > 0 {
			resp = time.Duration(f.ResponseMs * int64(time.Millisecond)).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.Location,
			f.Source,
			resp,
			f.FetchedAt.Local().Format("2006-01-02 15:04:05"),
			f.Error,
		)
	}
	w.Flush()
	return nil
}
