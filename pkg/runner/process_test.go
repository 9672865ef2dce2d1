package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const passingSource = `package solution

func Solution(a, b int) int { return a + b }
`

const passingSuite = `package solution

import "testing"

func TestAdd(t *testing.T) {
	if Solution(2, 3) != 5 {
		t.Fatal("expected 5")
	}
}
`

func requireGo(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}
	return path
}

func newTestRunner(t *testing.T, root string) *ProcessRunner {
	return NewProcessRunner(ProcessConfig{
		GoBinary:      requireGo(t),
		WorkspaceRoot: root,
		Timeout:       2 * time.Minute,
		Logger:        zerolog.Nop(),
	})
}

func TestProcessRunnerPassingSuiteCleansWorkspace(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t, root)

	result, err := r.RunTests(context.Background(), TestRequest{Source: passingSource, TestSuite: passingSuite})
	require.NoError(t, err)
	require.False(t, result.Failed(), result.Output)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, result.Output, `"Action":"pass"`)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessRunnerFailingSuiteReportsError(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t, root)

	source := "package solution\n\nfunc Solution(a, b int) int { return a - b }\n"
	result, err := r.RunTests(context.Background(), TestRequest{Source: source, TestSuite: passingSuite})
	require.NoError(t, err)
	require.True(t, result.Failed())
	require.NotEqual(t, 0, result.ExitCode)
	require.Contains(t, result.Output, `"Action":"fail"`)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessRunnerTimesOutRunawaySubmission(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t, root)

	source := "package solution\n\nfunc Solution(a, b int) int {\n\tfor {\n\t}\n}\n"
	timeout := 3 * time.Second

	start := time.Now()
	result, err := r.RunTests(context.Background(), TestRequest{Source: source, TestSuite: passingSuite, Timeout: timeout})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, result.TimedOut)
	require.True(t, strings.HasPrefix(result.Error, TimeoutIndicator))
	require.Contains(t, result.Error, "infinite loop")
	require.Less(t, elapsed, timeout+5*time.Second)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessRunnerScriptModes(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, dir)

	missing, err := r.RunScript(context.Background(), ScriptRequest{Path: filepath.Join(dir, "missing.go")})
	require.NoError(t, err)
	require.Contains(t, missing.Error, "does not exist")

	ok := filepath.Join(dir, "ok.go")
	require.NoError(t, os.WriteFile(ok, []byte("package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"fine\") }\n"), 0o600))
	result, err := r.RunScript(context.Background(), ScriptRequest{Path: ok})
	require.NoError(t, err)
	require.False(t, result.Failed(), result.Output)
	require.Contains(t, result.Stdout, "fine")

	broken := filepath.Join(dir, "broken.go")
	require.NoError(t, os.WriteFile(broken, []byte("package main\n\nfunc main() {\n\tvar m map[string]int\n\tm[\"x\"] = 1\n}\n"), 0o600))
	result, err = r.RunScript(context.Background(), ScriptRequest{Path: broken})
	require.NoError(t, err)
	require.True(t, result.Failed())
	require.Contains(t, result.Error, "panic")

	_, err = os.Stat(broken)
	require.NoError(t, err, "script files belong to the caller")
}

func TestTimeoutMessageEmbedsPartialStdout(t *testing.T) {
	msg := TimeoutMessage(10*time.Second, "  step 1\nstep 2\n")
	require.True(t, strings.HasPrefix(msg, TimeoutIndicator))
	require.Contains(t, msg, "10s")
	require.True(t, strings.HasSuffix(msg, "step 1\nstep 2"))
}

func TestClassifyFallsBackToExitCode(t *testing.T) {
	result := Result{ExitCode: 2}
	classify(&result, time.Second)
	require.Equal(t, "process exited with code 2", result.Error)

	result = Result{ExitCode: 1, Stderr: "boom\n"}
	classify(&result, time.Second)
	require.Equal(t, "boom", result.Error)

	result = Result{}
	classify(&result, time.Second)
	require.False(t, result.Failed())
}

type countingRunner struct {
	mu      sync.Mutex
	current int
	peak    int
	calls   atomic.Int32
}

func (c *countingRunner) RunTests(ctx context.Context, req TestRequest) (Result, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.current++
	if c.current > c.peak {
		c.peak = c.current
	}
	c.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	c.mu.Lock()
	c.current--
	c.mu.Unlock()
	return Result{}, nil
}

func (c *countingRunner) RunScript(ctx context.Context, req ScriptRequest) (Result, error) {
	return Result{}, nil
}

func TestWithConcurrencyLimitCapsInFlightRuns(t *testing.T) {
	inner := &countingRunner{}
	limited := WithConcurrencyLimit(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limited.RunTests(context.Background(), TestRequest{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(8), inner.calls.Load())
	require.LessOrEqual(t, inner.peak, 2)
	require.Same(t, Runner(inner), WithConcurrencyLimit(inner, 0))
}
