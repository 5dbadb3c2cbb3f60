package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/stockvaluation/backend/internal/saga"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch TICKER [TICKER...]",
	Short: "Generate valuation reports from the terminal",
	Long: `Run the valuation saga for one or more tickers and print each body.

Tickers are processed concurrently. Data learned from the API is written
back to the database before the command exits.

Example:
  go run ./cmd/stockvaluation fetch AAPL
  go run ./cmd/stockvaluation fetch AAPL MSFT NVDA --format explain`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

var (
	fetchFormat      string
	fetchConcurrency int
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchFormat, "format", "", "body format: json or explain (overrides RESPONSE_FORMAT)")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 4, "tickers processed at once")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchFormat != "" {
		cfg.ResponseFormat = fetchFormat
	}

	log := logger.New(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	responses := make([]*saga.Response, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, t := range args {
		i, t := i, t
		g.Go(func() error {
			responses[i] = a.orchestrator.Generate(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, resp := range responses {
		fmt.Printf("=== %s (%d %s) ===\n", args[i], resp.StatusCode, http.StatusText(resp.StatusCode))
		fmt.Println(resp.Body(a.formatter))
		fmt.Println()
		if resp.StatusCode != http.StatusOK {
			failed++
		}
	}

	if err := a.close(ctx); err != nil {
		log.WithError(err).Warn("Write-back did not finish")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, len(args))
	}
	return nil
}
