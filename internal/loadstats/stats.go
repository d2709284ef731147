// Package loadstats aggregates measurements from load generator workers and
// prints a summary report with percentile distributions.
package loadstats

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Collector aggregates metrics from many workers. All methods are
// goroutine-safe.
type Collector struct {
	mu              sync.Mutex
	drawLatencies   []time.Duration
	revealLatencies []time.Duration
	statuses        map[int]int
	errors          int
	connections     int
	startTime       time.Time
	scraper         *Scraper
}

// NewCollector creates a new Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		statuses:  make(map[int]int),
		startTime: time.Now(),
	}
}

// SetScraper attaches a metrics scraper. When set, Report also prints the
// server-side metrics it collected.
func (c *Collector) SetScraper(s *Scraper) {
	c.mu.Lock()
	c.scraper = s
	c.mu.Unlock()
}

// AddDraw records a completed draw request with its HTTP status and latency.
func (c *Collector) AddDraw(status int, d time.Duration) {
	c.mu.Lock()
	c.drawLatencies = append(c.drawLatencies, d)
	c.statuses[status]++
	c.mu.Unlock()
}

// AddConnect records an open reveal connection.
func (c *Collector) AddConnect() {
	c.mu.Lock()
	c.connections++
	c.mu.Unlock()
}

// AddReveal records the time between a draw response and the assignment
// arriving on a watching connection.
func (c *Collector) AddReveal(d time.Duration) {
	c.mu.Lock()
	c.revealLatencies = append(c.revealLatencies, d)
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// DrawCount returns the number of draw requests that got a response.
func (c *Collector) DrawCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.drawLatencies)
}

// StatusCount returns how many draw requests ended with status.
func (c *Collector) StatusCount(status int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[status]
}

// ErrorCount returns the current number of recorded errors.
func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Report writes a summary of the collected metrics to w.
func (c *Collector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)
	total := len(c.drawLatencies)

	fmt.Fprintln(w, "\n=== Load Test Results ===")
	fmt.Fprintf(w, "Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(w, "Draws:        %d\n", total)
	if c.connections > 0 {
		fmt.Fprintf(w, "Connections:  %d\n", c.connections)
	}
	fmt.Fprintf(w, "Errors:       %d\n", c.errors)

	if attempted := total + c.errors; attempted > 0 {
		fmt.Fprintf(w, "Error rate:   %.2f%%\n", float64(c.errors)/float64(attempted)*100)
	}
	if elapsed > 0 && total > 0 {
		fmt.Fprintf(w, "Throughput:   %.1f draws/s\n", float64(total)/elapsed.Seconds())
	}

	if len(c.statuses) > 0 {
		fmt.Fprintln(w, "\n--- Responses ---")
		codes := make([]int, 0, len(c.statuses))
		for code := range c.statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d %-24s %d\n", code, http.StatusText(code), c.statuses[code])
		}
	}

	if len(c.drawLatencies) > 0 {
		fmt.Fprintln(w, "\n--- Draw Latency ---")
		printPercentiles(w, c.drawLatencies)
	}

	if len(c.revealLatencies) > 0 {
		fmt.Fprintln(w, "\n--- Reveal Latency ---")
		printPercentiles(w, c.revealLatencies)
	}

	if c.scraper != nil {
		c.scraper.Report(w)
	}

	fmt.Fprintln(w)
}

// Percentiles summarizes a latency sample.
type Percentiles struct {
	Avg, P50, P95, P99, Max time.Duration
	N                       int
}

// Summarize sorts durations in place and computes its percentiles. It returns
// the zero value for an empty sample.
func Summarize(durations []time.Duration) Percentiles {
	n := len(durations)
	if n == 0 {
		return Percentiles{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return Percentiles{
		Avg: sum / time.Duration(n),
		P50: durations[n/2],
		P95: durations[int(math.Ceil(float64(n)*0.95))-1],
		P99: durations[int(math.Ceil(float64(n)*0.99))-1],
		Max: durations[n-1],
		N:   n,
	}
}

func printPercentiles(w io.Writer, durations []time.Duration) {
	p := Summarize(durations)
	fmt.Fprintf(w, "  avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)\n",
		p.Avg.Round(time.Microsecond),
		p.P50.Round(time.Microsecond),
		p.P95.Round(time.Microsecond),
		p.P99.Round(time.Microsecond),
		p.Max.Round(time.Microsecond),
		p.N,
	)
}
