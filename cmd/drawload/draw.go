package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/secretsanta/giftdraw/internal/loadstats"
)

// drawOptions holds flags for the draw command.
type drawOptions struct {
	*rootOptions
	Requests    int
	Concurrency int
	Size        int
	Density     float64
	MetricsURL  string
	Timeout     time.Duration
	Seed        uint64
}

func newDrawCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &drawOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Concurrent draw requests with generated groups",
		Long: `Fire a fixed number of draw requests from a pool of workers and report
latency percentiles and the response code mix.

Example:
  drawload draw --requests 500 --concurrency 20 --size 12 --restrictions 0.2
  drawload draw --metrics http://localhost:5000/metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(opts)
		},
	}

	cmd.Flags().IntVar(&opts.Requests, "requests", 100, "total number of draw requests")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 10, "concurrent workers")
	cmd.Flags().IntVar(&opts.Size, "size", 8, "participants per group")
	cmd.Flags().Float64Var(&opts.Density, "restrictions", 0.1, "fraction of participant pairs that are restricted")
	cmd.Flags().StringVar(&opts.MetricsURL, "metrics", "", "Prometheus endpoint to scrape during the run")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", uint64(time.Now().UnixNano()), "seed for group generation")

	return cmd
}

func runDraw(opts *drawOptions) error {
	if opts.Size < 1 || opts.Requests < 1 || opts.Concurrency < 1 {
		return fmt.Errorf("size, requests and concurrency must be positive")
	}

	fmt.Printf("Draw test: %d requests to %s (concurrency=%d, size=%d, restrictions=%.2f)\n",
		opts.Requests, opts.DrawURL, opts.Concurrency, opts.Size, opts.Density)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := loadstats.NewCollector()
	var scraper *loadstats.Scraper
	if opts.MetricsURL != "" {
		scraper = loadstats.NewScraper(opts.MetricsURL, time.Second)
		scraper.Start(ctx)
		collector.SetScraper(scraper)
	}

	client := &http.Client{Timeout: opts.Timeout}
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(worker)))
			for i := range jobs {
				group := newGroup(rng, fmt.Sprintf("load-%d", i), opts.Size, opts.Density)
				status, _, elapsed, err := postDraw(ctx, client, opts.DrawURL, group)
				if err != nil {
					collector.AddError()
					continue
				}
				collector.AddDraw(status, elapsed)
			}
		}(w)
	}

	progress := time.NewTicker(time.Second)
	defer progress.Stop()

send:
	for i := 0; i < opts.Requests; i++ {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted, waiting for in-flight requests...")
			break send
		case jobs <- i:
		case <-progress.C:
			fmt.Printf("  %d/%d sent, %d done, %d errors\n", i, opts.Requests, collector.DrawCount(), collector.ErrorCount())
			i--
		}
	}
	close(jobs)
	wg.Wait()

	// Stop waits for the final snapshot.
	if scraper != nil {
		scraper.Stop()
	}
	collector.Report(os.Stdout)
	return nil
}
