// Command evaluator drives load and accuracy measurements against a running
// guesser service. Workers issue guess requests from an evaluation set of
// (query, expected label) pairs and the report covers throughput, latency
// percentiles, and label accuracy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type evalCase struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Cases       []evalCase
}

type stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	correctCount  atomic.Int64
	labeledCount  atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newStats() *stats {
	return &stats{
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *stats) recordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func (s *stats) recordAccuracy(expected, got string) {
	if expected == "" {
		return
	}
	s.labeledCount.Add(1)
	if expected == got {
		s.correctCount.Add(1)
	}
}

type guessResponse struct {
	Guesses []struct {
		Question   string  `json:"question"`
		Guess      string  `json:"guess"`
		Confidence float64 `json:"confidence"`
	} `json:"guesses"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the guesser service")
	casesPath := flag.String("cases", "", "JSON file of [{text,label}] evaluation cases")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cases := defaultCases()
	if *casesPath != "" {
		loaded, err := loadCases(*casesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load cases: %v\n", err)
			os.Exit(1)
		}
		cases = loaded
	}

	cfg := config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Cases:       cases,
	}

	fmt.Println("=== Guesser Evaluation ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Cases:       %d\n", len(cfg.Cases))
	fmt.Println()

	st := run(cfg)
	printReport(st, cfg.Duration)
}

func loadCases(path string) ([]evalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []evalCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases in %s", path)
	}
	return cases, nil
}

func defaultCases() []evalCase {
	texts := []string{
		"term frequency weighting",
		"inverse document frequency",
		"cosine similarity search",
		"vocabulary pruning cutoff",
		"nearest neighbor retrieval",
		"unknown token handling",
		"sparse vector embedding",
		"document matrix construction",
	}
	cases := make([]evalCase, len(texts))
	for i, t := range texts {
		cases[i] = evalCase{Text: t}
	}
	return cases
}

func run(cfg config) *stats {
	st := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			caseIdx := workerID
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				c := cfg.Cases[caseIdx%len(cfg.Cases)]
				caseIdx++

				guessURL := fmt.Sprintf("%s/api/v1/guess?q=%s",
					cfg.BaseURL, url.QueryEscape(c.Text))

				start := time.Now()
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, guessURL, nil)
				if err != nil {
					st.recordRequest(time.Since(start), 0, err)
					continue
				}
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					st.recordRequest(elapsed, 0, err)
					continue
				}

				if resp.StatusCode == http.StatusOK && c.Label != "" {
					var gr guessResponse
					if decodeErr := json.NewDecoder(resp.Body).Decode(&gr); decodeErr == nil && len(gr.Guesses) > 0 {
						st.recordAccuracy(c.Label, gr.Guesses[0].Guess)
					}
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				st.recordRequest(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return st
}

func printReport(st *stats, duration time.Duration) {
	total := st.totalRequests.Load()
	success := st.successCount.Load()
	errors := st.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	if labeled := st.labeledCount.Load(); labeled > 0 {
		correct := st.correctCount.Load()
		fmt.Println()
		fmt.Println("=== Accuracy ===")
		fmt.Printf("Labeled:   %d\n", labeled)
		fmt.Printf("Correct:   %d\n", correct)
		fmt.Printf("Accuracy:  %.2f%%\n", float64(correct)/float64(labeled)*100)
	}

	st.latenciesMu.Lock()
	latencies := make([]time.Duration, len(st.latencies))
	copy(latencies, st.latencies)
	st.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		avgFloat := float64(avg)
		for _, l := range latencies {
			diff := float64(l) - avgFloat
			sumSquared += diff * diff
		}
		stddev := time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
		fmt.Printf("StdDev: %s\n", stddev)
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	st.statusCodesMu.Lock()
	codes := make([]int, 0, len(st.statusCodes))
	for code := range st.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, st.statusCodes[code].Load())
	}
	st.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
	}
}

func percentile(sorted []time.Duration, pct int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
