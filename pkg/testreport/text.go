package testreport

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	summaryPattern = regexp.MustCompile(`(passed|failed|error)`)
	passedPattern  = regexp.MustCompile(`(\d+)\s+passed`)
	failedPattern  = regexp.MustCompile(`(\d+)\s+failed`)
	errorPattern   = regexp.MustCompile(`(\d+)\s+error`)
)

// ParseText applies the line-scraping rules: the last line mentioning
// passed, failed or error is the summary; lines starting with a FAILED or
// PASSED marker (or Go's verbose --- FAIL: / --- PASS:) become outcomes.
func ParseText(output string) Report {
	lines := strings.Split(output, "\n")

	summaryLine := ""
	for _, line := range lines {
		if summaryPattern.MatchString(line) {
			summaryLine = strings.TrimSpace(line)
		}
	}

	summary := Summary{
		Passed: countOf(passedPattern, summaryLine),
		Failed: countOf(failedPattern, summaryLine),
		Errors: countOf(errorPattern, summaryLine),
	}

	var outcomes []Outcome
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "FAILED"), strings.HasPrefix(trimmed, "--- FAIL:"):
			outcomes = append(outcomes, Outcome{Name: trimmed, Status: StatusFailed, Error: trimmed})
		case strings.HasPrefix(trimmed, "PASSED"), strings.HasPrefix(trimmed, "--- PASS:"):
			outcomes = append(outcomes, Outcome{Name: trimmed, Status: StatusPassed})
		}
	}

	return newReport(summary, outcomes, output)
}

func countOf(pattern *regexp.Regexp, line string) int {
	match := pattern.FindStringSubmatch(line)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}
