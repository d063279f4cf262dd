// Replay tool for running a labelled case file against a Kestrel server.
//
// Usage:
//
//	go run ./cmd/replay -cases /path/to/cases.jsonl -url http://localhost:8080
//
// Each line of the case file is one case as accepted by POST /evaluate.
// -cases may also name a directory, in which case every *.json file in it is
// one case. A case may carry an "expected_route" of "EDD" or "Baseline"; labelled lines
// feed the confusion matrix. The tool prints route and band distributions,
// the confusion matrix and latency.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// LabelledCase is one line of the case file.
type LabelledCase struct {
	ExpectedRoute string
	Body          json.RawMessage
}

// EvaluateResponse is the subset of the assessment the tool reads.
type EvaluateResponse struct {
	ID        string   `json:"id"`
	CaseID    string   `json:"case_id"`
	RiskScore int      `json:"risk_score"`
	RiskLabel string   `json:"risk_label"`
	Route     string   `json:"route"`
	RedFlags  []string `json:"red_flags"`
	Metadata  struct {
		RouteReason string `json:"route_reason"`
	} `json:"metadata"`
}

// Results tracks replay outcomes.
type Results struct {
	TruePositives  int64 // Expected EDD, routed EDD
	FalsePositives int64 // Expected Baseline, routed EDD
	TrueNegatives  int64 // Expected Baseline, routed Baseline
	FalseNegatives int64 // Expected EDD, routed Baseline

	TotalProcessed int64
	TotalLabelled  int64
	TotalErrors    int64

	ProcessingTimeMs int64

	mu           sync.Mutex
	Routes       map[string]int
	Bands        map[string]int
	RouteReasons map[string]int
	RedFlags     map[string]int
}

func newResults() *Results {
	return &Results{
		Routes:       map[string]int{},
		Bands:        map[string]int{},
		RouteReasons: map[string]int{},
		RedFlags:     map[string]int{},
	}
}

func main() {
	casesPath := flag.String("cases", "", "Path to JSONL case file or directory of .json cases")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "replay", "Tenant ID for requests")
	limit := flag.Int("limit", 0, "Maximum cases to replay (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each case result")
	flag.Parse()

	if *casesPath == "" {
		fmt.Println("Usage: replay -cases /path/to/cases.jsonl [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("KESTREL REPLAY")
	fmt.Printf("\nCase File:   %s\n", *casesPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run ./cmd/kestrel serve")
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	cases, err := loadCases(*casesPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read cases: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d cases\n", len(cases))

	fmt.Printf("\nReplaying with %d workers...\n", *workers)
	startTime := time.Now()
	results := runReplay(cases, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(os.Stdout, results, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

// loadCases reads cases from a JSONL file or a directory of .json files.
func loadCases(path string, limit int) ([]LabelledCase, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCases(f, limit)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var cases []LabelledCase
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		// Compact so each file becomes one line.
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			continue // Skip malformed files
		}
		buf.WriteByte('\n')
		parsed, err := readCases(&buf, 0)
		if err != nil {
			return nil, err
		}
		cases = append(cases, parsed...)
		if limit > 0 && len(cases) >= limit {
			return cases[:limit], nil
		}
	}
	return cases, nil
}

// readCases reads one case per line, skipping blank and malformed lines.
func readCases(r io.Reader, limit int) ([]LabelledCase, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cases []LabelledCase
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var label struct {
			ExpectedRoute string `json:"expected_route"`
		}
		if err := json.Unmarshal(line, &label); err != nil {
			continue // Skip malformed lines
		}

		cases = append(cases, LabelledCase{
			ExpectedRoute: label.ExpectedRoute,
			Body:          append(json.RawMessage(nil), line...),
		})

		if limit > 0 && len(cases) >= limit {
			break
		}
	}

	return cases, scanner.Err()
}

func runReplay(cases []LabelledCase, baseURL, tenantID string, numWorkers int, verbose bool) *Results {
	results := newResults()

	work := make(chan LabelledCase, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := evaluateCase(client, baseURL, tenantID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&results.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&results.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&results.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				results.record(c, result)

				if verbose {
					fmt.Printf("%-16s | score %3d | %-6s | %-8s | %s\n",
						result.CaseID,
						result.RiskScore,
						result.RiskLabel,
						result.Route,
						result.Metadata.RouteReason,
					)
				}
			}
		}()
	}

	for _, c := range cases {
		work <- c
	}
	close(work)

	wg.Wait()

	return results
}

func (r *Results) record(c LabelledCase, result *EvaluateResponse) {
	r.mu.Lock()
	r.Routes[result.Route]++
	r.Bands[result.RiskLabel]++
	r.RouteReasons[result.Metadata.RouteReason]++
	for _, f := range result.RedFlags {
		r.RedFlags[f]++
	}
	r.mu.Unlock()

	if c.ExpectedRoute == "" {
		return
	}
	atomic.AddInt64(&r.TotalLabelled, 1)

	predicted := result.Route == "EDD"
	actual := c.ExpectedRoute == "EDD"

	switch {
	case predicted && actual:
		atomic.AddInt64(&r.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&r.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&r.TrueNegatives, 1)
	default:
		atomic.AddInt64(&r.FalseNegatives, 1)
	}
}

func evaluateCase(client *http.Client, baseURL, tenantID string, c LabelledCase) (*EvaluateResponse, error) {
	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(c.Body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printDistribution(w io.Writer, title string, counts map[string]int, total int64) {
	fmt.Fprintf(w, "\n%s\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(counts[k]) / float64(total)
		}
		fmt.Fprintf(w, "   %-24s %6d (%.2f%%)\n", k, counts[k], pct)
	}
}

func printResults(w io.Writer, r *Results, duration time.Duration) {
	fmt.Fprintln(w, "\nREPLAY RESULTS")

	ok := r.TotalProcessed - r.TotalErrors
	fmt.Fprintf(w, "\nCASES\n")
	fmt.Fprintf(w, "   Total Processed:  %d\n", r.TotalProcessed)
	fmt.Fprintf(w, "   Labelled:         %d\n", r.TotalLabelled)
	fmt.Fprintf(w, "   Errors:           %d\n", r.TotalErrors)

	printDistribution(w, "ROUTES", r.Routes, ok)
	printDistribution(w, "RISK BANDS", r.Bands, ok)
	printDistribution(w, "ROUTE REASONS", r.RouteReasons, ok)
	printDistribution(w, "RED FLAGS", r.RedFlags, ok)

	if r.TotalLabelled > 0 {
		fmt.Fprintf(w, "\nCONFUSION MATRIX\n")
		fmt.Fprintln(w, "                        Routed")
		fmt.Fprintln(w, "                    EDD       Baseline")
		fmt.Fprintf(w, "   Expected EDD   %8d   %8d   (TP, FN)\n", r.TruePositives, r.FalseNegatives)
		fmt.Fprintf(w, "   Expected Base  %8d   %8d   (FP, TN)\n", r.FalsePositives, r.TrueNegatives)

		precision := float64(0)
		if r.TruePositives+r.FalsePositives > 0 {
			precision = float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
		}
		recall := float64(0)
		if r.TruePositives+r.FalseNegatives > 0 {
			recall = float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
		}
		fmt.Fprintf(w, "   Precision:  %.4f\n", precision)
		fmt.Fprintf(w, "   Recall:     %.4f\n", recall)
	}

	fmt.Fprintf(w, "\nPERFORMANCE\n")
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if r.TotalProcessed > 0 {
		avgMs := float64(r.ProcessingTimeMs) / float64(r.TotalProcessed)
		cps := float64(r.TotalProcessed) / duration.Seconds()
		fmt.Fprintf(w, "   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Fprintf(w, "   Throughput:       %.2f cases/sec\n", cps)
	}
	fmt.Fprintln(w)
}
