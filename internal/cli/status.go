package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/ecosetu/internal/control"
	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many transactions sit in each delivery status",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	st, err := control.OpenStorage(ctx, cfg.Database, false)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = st.Close()
	}()

	if err := printStatusCounts(ctx, st.Transactions, os.Stdout); err != nil {
		slog.Error("Failed to count transactions", "error", err)
		os.Exit(1)
	}
}

func printStatusCounts(ctx context.Context, txns storage.TransactionRepository, out io.Writer) error {
	counts, err := txns.CountByStatus(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")

	total := 0
	seen := make(map[domain.Status]bool)
	for _, s := range domain.KnownStatuses {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
		total += counts[s]
		seen[s] = true
	}
	for s, n := range counts {
		if !seen[s] {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", s, n)
			total += n
		}
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\n", total)
	return w.Flush()
}
