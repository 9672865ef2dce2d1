package ai

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

const materialsSchema = `{
  "type": "object",
  "required": ["scenario_question", "tests"],
  "properties": {
    "scenario_question": {"type": "string", "minLength": 1},
    "tests": {"type": "string", "minLength": 1}
  }
}`

// FallbackTests is the placeholder suite used when generation fails. It
// always passes.
const FallbackTests = `package solution

import "testing"

func TestPlaceholder(t *testing.T) {
	ok := true
	if !ok {
		t.Fatal("This is a fallback test. AI generation failed.")
	}
}
`

var (
	materialsValidator = mustCompileSchema("materials.json", materialsSchema)
	testFuncPattern    = regexp.MustCompile(`func\s+Test\w*\s*\(\s*\w+\s+\*testing\.T\s*\)`)
)

// FallbackMaterials returns the placeholder pair for description.
func FallbackMaterials(description string) Materials {
	return Materials{
		Scenario: fmt.Sprintf("**Scenario:** A real-world application for: '%s'.\n\n*(Fallback: AI generation failed.)*", description),
		Tests:    FallbackTests,
		Fallback: true,
	}
}

// GenerateMaterials asks the model for a beginner-friendly scenario and a Go
// test suite exercising Solution. Any failure yields FallbackMaterials.
func (a *Assistant) GenerateMaterials(ctx context.Context, description string) Materials {
	raw, err := a.generate(ctx, "materials", materialsPrompt(description))
	if err != nil {
		a.fallback("materials", err, "")
		return FallbackMaterials(description)
	}

	var payload struct {
		Scenario string `json:"scenario_question"`
		Tests    string `json:"tests"`
	}
	if err := decodeJSON(raw, materialsValidator, &payload); err != nil {
		a.fallback("materials", err, raw)
		return FallbackMaterials(description)
	}

	tests, err := normalizeTests(payload.Tests)
	if err != nil {
		a.fallback("materials", err, raw)
		return FallbackMaterials(description)
	}

	return Materials{Scenario: strings.TrimSpace(payload.Scenario), Tests: tests}
}

// normalizeTests checks the generated suite declares at least one test,
// shares no names with the submission and parses in package solution.
func normalizeTests(tests string) (string, error) {
	tests = StripFences(tests)
	if !testFuncPattern.MatchString(tests) {
		return "", fmt.Errorf("%w: tests declare no test functions", ErrMalformedResponse)
	}

	fset := token.NewFileSet()
	clause, err := parser.ParseFile(fset, "solution_test.go", tests, parser.PackageClauseOnly)
	if err != nil || clause.Name == nil {
		tests = "package solution\n\n" + tests
	} else if clause.Name.Name != "solution" {
		start := fset.Position(clause.Name.Pos()).Offset
		end := fset.Position(clause.Name.End()).Offset
		tests = tests[:start] + "solution" + tests[end:]
	}

	file, err := parser.ParseFile(token.NewFileSet(), "solution_test.go", tests, parser.AllErrors)
	if err != nil {
		return "", fmt.Errorf("%w: tests do not parse: %v", ErrMalformedResponse, err)
	}
	if err := onlyTestFuncs(file); err != nil {
		return "", err
	}
	for _, spec := range file.Imports {
		if spec.Path.Value == `"testing"` {
			return tests, nil
		}
	}
	return "", fmt.Errorf("%w: tests do not import testing", ErrMalformedResponse)
}

// onlyTestFuncs rejects suites declaring functions or methods other than
// test entry points, or anything named Solution. Either would be compiled
// next to the submission and clash with its declarations.
func onlyTestFuncs(file *ast.File) error {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil || !testEntryPoint(d.Name.Name) {
				return fmt.Errorf("%w: tests declare non-test function %s", ErrMalformedResponse, d.Name.Name)
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				for _, name := range specNames(spec) {
					if name == "Solution" {
						return fmt.Errorf("%w: tests declare Solution", ErrMalformedResponse)
					}
				}
			}
		}
	}
	return nil
}

func testEntryPoint(name string) bool {
	for _, prefix := range []string{"Test", "Benchmark", "Example", "Fuzz"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func specNames(spec ast.Spec) []string {
	switch s := spec.(type) {
	case *ast.ValueSpec:
		names := make([]string, 0, len(s.Names))
		for _, name := range s.Names {
			names = append(names, name.Name)
		}
		return names
	case *ast.TypeSpec:
		return []string{s.Name.Name}
	}
	return nil
}

func materialsPrompt(description string) string {
	return fmt.Sprintf(`You are an expert educational content generator for a programming course.
Based on the problem description below, generate two things:
1. A simple, real-world scenario-based question that a beginner can understand.
2. A Go test file for package "solution". The function under test is named Solution and lives in the same package. Include at least 3 test cases: a simple case, an edge case, and another common case.

IMPORTANT: the test file must only contain the package clause, imports and func TestXxx(t *testing.T) functions.
Do NOT include the Solution function itself.

Problem: %q

Your response MUST be a valid JSON object with two keys: "scenario_question" and "tests".
The value for "tests" must be the Go source as a string.

Example response format:
{
  "scenario_question": "You are building a POS system for a bookstore. Write a function that totals a customer's book prices.",
  "tests": "package solution\n\nimport \"testing\"\n\nfunc TestSimple(t *testing.T) {\n\tif got := Solution([]int{10, 20}); got != 30 {\n\t\tt.Fatalf(\"got %%d\", got)\n\t}\n}\n"
}`, description)
}
