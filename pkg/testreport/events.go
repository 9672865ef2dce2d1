package testreport

import (
	"encoding/json"
	"strings"
)

// event mirrors one line of `go test -json` (cmd/test2json) output.
type event struct {
	Action      string `json:"Action"`
	Package     string `json:"Package"`
	Test        string `json:"Test"`
	Output      string `json:"Output"`
	ImportPath  string `json:"ImportPath"`
	FailedBuild string `json:"FailedBuild"`
}

type testKey struct {
	pkg  string
	name string
}

type packageState struct {
	failed      bool
	failedTests int
	output      strings.Builder
}

// ParseEvents parses a go test -json stream. Leaf tests (tests without
// subtests) are counted; skipped tests are ignored; a package that fails
// without any failing test (build failure, panic in init) counts as one error.
func ParseEvents(output string) Report {
	var (
		order      []testKey
		results    = map[testKey]string{}
		outputs    = map[testKey]*strings.Builder{}
		packages   = map[string]*packageState{}
		pkgOrder   []string
		buildLines = map[string]*strings.Builder{}
		stray      strings.Builder
	)

	pkgState := func(name string) *packageState {
		state, ok := packages[name]
		if !ok {
			state = &packageState{}
			packages[name] = state
			pkgOrder = append(pkgOrder, name)
		}
		return state
	}

	for _, line := range strings.Split(output, "\n") {
		ev, ok := decodeEvent(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				stray.WriteString(line)
				stray.WriteString("\n")
			}
			continue
		}

		switch ev.Action {
		case "build-output":
			b, ok := buildLines[ev.ImportPath]
			if !ok {
				b = &strings.Builder{}
				buildLines[ev.ImportPath] = b
			}
			b.WriteString(ev.Output)
			continue
		case "build-fail":
			continue
		}

		if ev.Test == "" {
			state := pkgState(ev.Package)
			switch ev.Action {
			case "output":
				state.output.WriteString(ev.Output)
			case "fail":
				state.failed = true
			}
			continue
		}

		key := testKey{pkg: ev.Package, name: ev.Test}
		switch ev.Action {
		case "run":
			if _, seen := outputs[key]; !seen {
				outputs[key] = &strings.Builder{}
				order = append(order, key)
			}
		case "output":
			b, seen := outputs[key]
			if !seen {
				b = &strings.Builder{}
				outputs[key] = b
				order = append(order, key)
			}
			b.WriteString(ev.Output)
		case "pass", "fail", "skip":
			if _, seen := outputs[key]; !seen {
				outputs[key] = &strings.Builder{}
				order = append(order, key)
			}
			results[key] = ev.Action
		}
	}

	parents := map[testKey]bool{}
	for key := range results {
		if idx := strings.LastIndex(key.name, "/"); idx > 0 {
			parents[testKey{pkg: key.pkg, name: key.name[:idx]}] = true
		}
	}

	summary := Summary{}
	outcomes := []Outcome{}
	for _, key := range order {
		action, done := results[key]
		if !done || parents[key] {
			continue
		}
		switch action {
		case "pass":
			summary.Passed++
			outcomes = append(outcomes, Outcome{Name: key.name, Status: StatusPassed})
		case "fail":
			summary.Failed++
			pkgState(key.pkg).failedTests++
			detail := testOutput(outputs[key])
			if detail == "" {
				detail = "--- FAIL: " + key.name
			}
			outcomes = append(outcomes, Outcome{Name: key.name, Status: StatusFailed, Error: detail})
		}
	}

	for _, name := range pkgOrder {
		state := packages[name]
		if !state.failed || state.failedTests > 0 {
			continue
		}
		summary.Errors++

		var detail strings.Builder
		for importPath, b := range buildLines {
			if importPath == name || strings.HasPrefix(importPath, name+" ") || strings.HasPrefix(importPath, name+".") {
				detail.WriteString(b.String())
			}
		}
		detail.WriteString(state.output.String())
		detail.WriteString(stray.String())

		outcomes = append(outcomes, Outcome{Name: name, Status: StatusFailed, Error: strings.TrimSpace(detail.String())})
	}

	return newReport(summary, outcomes, output)
}

func decodeEvent(line string) (event, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return event{}, false
	}
	var ev event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil || ev.Action == "" {
		return event{}, false
	}
	return ev, true
}

func looksLikeEvents(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if _, ok := decodeEvent(line); ok {
			return true
		}
	}
	return false
}

// testOutput drops test2json framing lines and keeps what the test printed.
func testOutput(b *strings.Builder) string {
	if b == nil {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(b.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "=== ") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	return strings.Join(kept, "\n")
}
