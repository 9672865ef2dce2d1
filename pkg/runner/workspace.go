package runner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const defaultMaxOutput = 1 << 20

// goVersionDirective is written into the throwaway module so the local
// toolchain never tries to download another one.
const goVersionDirective = "1.22"

// prepareTestWorkspace materializes a module with the submission and its
// tests inside a fresh directory under root. The caller owns removal.
func prepareTestWorkspace(root string, req TestRequest) (string, error) {
	if root == "" {
		root = os.TempDir()
	}

	dir, err := os.MkdirTemp(root, "submission-")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}

	files := map[string]string{
		ModuleFile:    fmt.Sprintf("module %s\n\ngo %s\n", ModuleName, goVersionDirective),
		SolutionFile:  req.Source,
		TestSuiteFile: req.TestSuite,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	return dir, nil
}

// outputBuffer is a size-capped buffer safe for the concurrent pipe copiers
// exec starts for stdout and stderr.
type outputBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func newOutputBuffer(limit int) *outputBuffer {
	if limit <= 0 {
		limit = defaultMaxOutput
	}
	return &outputBuffer{limit: limit}
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
