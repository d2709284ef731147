package loadstats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// snapshot holds the values of the tracked server metrics at a point in time.
type snapshot struct {
	timestamp time.Time

	draws         map[string]float64 // giftdraw_draws_total by outcome
	notifySent    float64
	notifyFailed  float64
	connections   float64
	watchers      float64
	durationSum   float64
	durationCount float64
	attemptsSum   float64
	attemptsCount float64
}

func (s snapshot) drawsTotal() float64 {
	var total float64
	for _, v := range s.draws {
		total += v
	}
	return total
}

// Scraper periodically fetches the draw server's Prometheus metrics and
// records snapshots for the final report.
type Scraper struct {
	metricsURL string
	interval   time.Duration

	mu        sync.Mutex
	snapshots []snapshot

	cancel context.CancelFunc
	done   chan struct{}
	client *http.Client
}

// NewScraper creates a Scraper that fetches metricsURL every interval.
func NewScraper(metricsURL string, interval time.Duration) *Scraper {
	return &Scraper{
		metricsURL: metricsURL,
		interval:   interval,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		done: make(chan struct{}),
	}
}

// Start takes a snapshot immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scraper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.scrapeOnce()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// Final snapshot so deltas cover the whole run.
				s.scrapeOnce()
				return
			case <-ticker.C:
				s.scrapeOnce()
			}
		}
	}()
}

// Stop stops the background scraper and waits for it to finish.
func (s *Scraper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Snapshots returns the number of snapshots taken so far.
func (s *Scraper) Snapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *Scraper) scrapeOnce() {
	snap, err := s.fetch()
	if err != nil {
		// The server may not be up yet.
		return
	}

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
}

func (s *Scraper) fetch() (snapshot, error) {
	resp, err := s.client.Get(s.metricsURL)
	if err != nil {
		return snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot{}, fmt.Errorf("loadstats: metrics returned %s", resp.Status)
	}
	return parseSnapshot(resp.Body, time.Now())
}

// parseSnapshot reads a Prometheus text exposition.
func parseSnapshot(r io.Reader, at time.Time) (snapshot, error) {
	snap := snapshot{timestamp: at, draws: make(map[string]float64)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		name, labels, value, ok := parseMetricLine(line)
		if !ok {
			continue
		}

		switch name {
		case "giftdraw_draws_total":
			snap.draws[labels["outcome"]] += value
		case "giftdraw_notifications_total":
			if labels["channel"] == "reveal" {
				continue
			}
			if labels["result"] == "failed" {
				snap.notifyFailed += value
			} else {
				snap.notifySent += value
			}
		case "giftdraw_reveal_connections_total":
			snap.connections = value
		case "giftdraw_reveal_watchers":
			snap.watchers = value
		case "giftdraw_draw_duration_seconds_sum":
			snap.durationSum = value
		case "giftdraw_draw_duration_seconds_count":
			snap.durationCount = value
		case "giftdraw_draw_attempts_sum":
			snap.attemptsSum = value
		case "giftdraw_draw_attempts_count":
			snap.attemptsCount = value
		}
	}

	return snap, scanner.Err()
}

// parseMetricLine splits an exposition line such as
//
//	giftdraw_draws_total{outcome="assigned"} 12
//
// into the metric name, its labels and the value.
func parseMetricLine(line string) (name string, labels map[string]string, value float64, ok bool) {
	rest := line
	if open := strings.IndexByte(line, '{'); open != -1 {
		closing := strings.IndexByte(line[open:], '}')
		if closing == -1 {
			return "", nil, 0, false
		}
		name = line[:open]
		labels = parseLabels(line[open+1 : open+closing])
		rest = line[open+closing+1:]
	} else {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", nil, 0, false
		}
		name = fields[0]
		rest = strings.Join(fields[1:], " ")
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, 0, false
	}
	// A trailing timestamp is optional; the value always comes first.
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", nil, 0, false
	}
	return name, labels, v, true
}

// parseLabels parses `a="x",b="y"`. Label values in these metrics never
// contain commas or escaped quotes.
func parseLabels(s string) map[string]string {
	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		labels[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return labels
}

// Report writes the initial value, final value, delta and peak of each
// tracked metric.
func (s *Scraper) Report(w io.Writer) {
	s.mu.Lock()
	snaps := make([]snapshot, len(s.snapshots))
	copy(snaps, s.snapshots)
	s.mu.Unlock()

	if len(snaps) == 0 {
		fmt.Fprintln(w, "\n--- Server Metrics (no data collected) ---")
		return
	}

	first := snaps[0]
	last := snaps[len(snaps)-1]

	fmt.Fprintln(w, "\n--- Server Metrics (Prometheus) ---")
	fmt.Fprintf(w, "  Scrape count:  %d snapshots over %s\n",
		len(snaps), last.timestamp.Sub(first.timestamp).Round(time.Second))

	type gauge struct {
		label   string
		extract func(snapshot) float64
	}

	gauges := []gauge{
		{"Draws", snapshot.drawsTotal},
		{"Emails Sent", func(s snapshot) float64 { return s.notifySent }},
		{"Emails Failed", func(s snapshot) float64 { return s.notifyFailed }},
		{"Connections", func(s snapshot) float64 { return s.connections }},
		{"Watchers", func(s snapshot) float64 { return s.watchers }},
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s %10s %10s %10s %10s\n", "Metric", "Initial", "Final", "Delta", "Peak")
	fmt.Fprintf(w, "  %-16s %10s %10s %10s %10s\n", "------", "-------", "-----", "-----", "----")
	for _, g := range gauges {
		initial, final := g.extract(first), g.extract(last)
		fmt.Fprintf(w, "  %-16s %10.0f %10.0f %10.0f %10.0f\n",
			g.label, initial, final, final-initial, peakValue(snaps, g.extract))
	}

	outcomes := make([]string, 0, len(last.draws))
	for outcome := range last.draws {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	if len(outcomes) > 0 {
		fmt.Fprintln(w)
		for _, outcome := range outcomes {
			fmt.Fprintf(w, "  draws %-10s +%.0f\n", outcome, last.draws[outcome]-first.draws[outcome])
		}
	}

	fmt.Fprintln(w)
	printHistogramAvg(w, "Engine Time", "s", first.durationSum, first.durationCount, last.durationSum, last.durationCount)
	printHistogramAvg(w, "Draw Attempts", "", first.attemptsSum, first.attemptsCount, last.attemptsSum, last.attemptsCount)
}

// printHistogramAvg prints the average of the observations made between two
// snapshots from histogram _sum and _count deltas.
func printHistogramAvg(w io.Writer, label, unit string, sumFirst, countFirst, sumLast, countLast float64) {
	deltaCount := countLast - countFirst
	if deltaCount <= 0 {
		fmt.Fprintf(w, "  %-16s avg: N/A  (no observations)\n", label)
		return
	}
	avg := (sumLast - sumFirst) / deltaCount
	fmt.Fprintf(w, "  %-16s avg: %.4f%s  (%.0f observations)\n", label, avg, unit, deltaCount)
}

func peakValue(snaps []snapshot, extract func(snapshot) float64) float64 {
	peak := math.Inf(-1)
	for _, s := range snaps {
		if v := extract(s); v > peak {
			peak = v
		}
	}
	return peak
}
