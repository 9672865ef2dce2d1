// Package testreport turns test-runner output into pass/fail counts, a score
// and per-test outcomes.
package testreport

import (
	"fmt"
	"math"
)

// Outcome statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// NoTestsCollected is the error detail of the synthetic outcome reported
// when a run discovered nothing.
const NoTestsCollected = "No tests collected"

// Outcome is one parsed test result.
type Outcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Summary holds the three counted categories.
type Summary struct {
	Passed int
	Failed int
	Errors int
}

// Total is the number of tests the summary accounts for.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Errors
}

// String renders the canonical summary line, which ParseText reads back to
// the same counts.
func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d error", s.Passed, s.Failed, s.Errors)
}

// Report is the structured verdict derived from one run's output.
type Report struct {
	Summary          Summary
	TotalTests       int
	PassedTests      int
	FailedTestsCount int
	Score            float64
	Outcomes         []Outcome
	SummaryLine      string
	RawOutput        string
}

// Pass reports whether every counted test passed and at least one ran.
func (r Report) Pass() bool {
	return r.FailedTestsCount == 0 && r.TotalTests > 0
}

// Parse detects the output grammar and parses it. A go test -json stream
// wins over the plain text rules.
func Parse(output string) Report {
	if looksLikeEvents(output) {
		return ParseEvents(output)
	}
	return ParseText(output)
}

func newReport(summary Summary, outcomes []Outcome, raw string) Report {
	total := summary.Total()
	report := Report{
		Summary:          summary,
		TotalTests:       total,
		PassedTests:      summary.Passed,
		FailedTestsCount: summary.Failed + summary.Errors,
		SummaryLine:      summary.String(),
		RawOutput:        raw,
	}

	if total == 0 {
		report.FailedTestsCount = 0
		report.Outcomes = []Outcome{{Name: "collection", Status: StatusFailed, Error: NoTestsCollected}}
		return report
	}

	report.Score = Score(summary.Passed, total)
	if outcomes == nil {
		outcomes = []Outcome{}
	}
	report.Outcomes = outcomes
	return report
}

// Score is 100*passed/total rounded to two decimals, or 0 without tests.
func Score(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(100*float64(passed)/float64(total)*100) / 100
}
