//go:build e2e

package e2e_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type labResult struct {
	name     string
	area     string
	target   string
	note     string
	status   string
	started  time.Time
	duration time.Duration
	seq      int
}

var labReport struct {
	mu      sync.Mutex
	results map[string]*labResult
	seq     int
	started time.Time
}

// InitReport starts collecting results. Call from TestMain before m.Run().
func InitReport() {
	labReport.mu.Lock()
	defer labReport.mu.Unlock()
	labReport.results = make(map[string]*labResult)
	labReport.started = time.Now()
}

// Track records the test's outcome in the run report. Call after SkipIfNoLab(t).
func Track(t *testing.T, area, target string) {
	t.Helper()
	labReport.mu.Lock()
	defer labReport.mu.Unlock()
	if labReport.results == nil {
		return
	}
	if _, ok := labReport.results[t.Name()]; ok {
		return
	}
	labReport.seq++
	r := &labResult{name: t.Name(), area: area, target: target, started: time.Now(), seq: labReport.seq}
	labReport.results[t.Name()] = r

	t.Cleanup(func() {
		labReport.mu.Lock()
		defer labReport.mu.Unlock()
		r.duration = time.Since(r.started)
		switch {
		case t.Failed():
			r.status = "FAIL"
		case t.Skipped():
			r.status = "SKIP"
		default:
			r.status = "PASS"
		}
	})
}

// Note attaches a remark to the current test's report row.
func Note(t *testing.T, format string, args ...any) {
	t.Helper()
	labReport.mu.Lock()
	defer labReport.mu.Unlock()
	r, ok := labReport.results[t.Name()]
	if !ok {
		return
	}
	if r.note != "" {
		r.note += "; "
	}
	r.note += fmt.Sprintf(format, args...)
}

// WriteReport writes a markdown summary of the tracked tests to path.
func WriteReport(path string) error {
	labReport.mu.Lock()
	defer labReport.mu.Unlock()
	if labReport.results == nil {
		return nil
	}

	rows := make([]*labResult, 0, len(labReport.results))
	counts := map[string]int{}
	for _, r := range labReport.results {
		rows = append(rows, r)
		counts[r.status]++
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	var sb strings.Builder
	sb.WriteString("# racctl lab report\n\n")
	fmt.Fprintf(&sb, "Console: %s  \n", os.Getenv(EnvLabHost))
	fmt.Fprintf(&sb, "Date: %s  \n", labReport.started.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "Duration: %s  \n", time.Since(labReport.started).Round(time.Second))
	fmt.Fprintf(&sb, "Passed %d, failed %d, skipped %d\n\n", counts["PASS"], counts["FAIL"], counts["SKIP"])
	sb.WriteString("| # | Test | Status | Duration | Target | Area | Notes |\n")
	sb.WriteString("|---|------|--------|----------|--------|------|-------|\n")
	for i, r := range rows {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1, strings.TrimPrefix(r.name, "TestLab_"), r.status, r.duration.Round(time.Millisecond),
			r.target, r.area, strings.ReplaceAll(r.note, "|", "\\|"))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
