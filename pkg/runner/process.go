package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProcessConfig configures the local subprocess backend.
type ProcessConfig struct {
	GoBinary       string
	WorkspaceRoot  string
	Timeout        time.Duration
	WaitDelay      time.Duration
	MaxOutputBytes int
	Env            []string
	Logger         zerolog.Logger
}

// ProcessRunner executes the Go toolchain as a local subprocess. Directory
// scoping and the timeout are its only isolation.
type ProcessRunner struct {
	cfg    ProcessConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewProcessRunner constructs a subprocess backed runner.
func NewProcessRunner(cfg ProcessConfig) *ProcessRunner {
	if cfg.GoBinary == "" {
		cfg.GoBinary = "go"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &ProcessRunner{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-autograder/pkg/runner/process"),
		logger: logger.With().Str("component", "process_runner").Logger(),
	}
}

// RunTests runs `go test -json` over a fresh module holding the submission
// and its suite. The workspace is removed on every exit path.
func (r *ProcessRunner) RunTests(ctx context.Context, req TestRequest) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "runner.process.tests")
	defer span.End()

	workspace, err := prepareTestWorkspace(r.cfg.WorkspaceRoot, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			r.logger.Error().Err(err).Str("workspace", workspace).Msg("failed to remove workspace")
		}
	}()

	timeout := effectiveTimeout(req.Timeout, r.cfg.Timeout)
	result, err := r.execute(ctx, "tests", workspace, timeout, "test", "-json", "-count=1", "./...")
	annotate(span, result, err)
	return result, err
}

// RunScript runs `go run` on a file the caller owns; nothing is cleaned up.
func (r *ProcessRunner) RunScript(ctx context.Context, req ScriptRequest) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "runner.process.script", trace.WithAttributes(
		attribute.String("runner.script", req.Path),
	))
	defer span.End()

	path, err := filepath.Abs(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve script path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{ExitCode: -1, Error: fmt.Sprintf("Error: the file %q does not exist.", req.Path)}, nil
		}
		return Result{}, fmt.Errorf("stat script: %w", err)
	}

	timeout := effectiveTimeout(req.Timeout, r.cfg.Timeout)
	result, err := r.execute(ctx, "script", filepath.Dir(path), timeout, "run", path)
	annotate(span, result, err)
	return result, err
}

func (r *ProcessRunner) execute(parent context.Context, mode, dir string, timeout time.Duration, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	combined := newOutputBuffer(r.cfg.MaxOutputBytes)
	stdout := newOutputBuffer(r.cfg.MaxOutputBytes)
	stderr := newOutputBuffer(r.cfg.MaxOutputBytes)

	cmd := exec.CommandContext(ctx, r.cfg.GoBinary, args...)
	cmd.Dir = dir
	cmd.Env = r.env()
	cmd.Stdout = io.MultiWriter(stdout, combined)
	cmd.Stderr = io.MultiWriter(stderr, combined)
	cmd.WaitDelay = r.cfg.WaitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()

	result := Result{
		Duration: time.Since(start),
		Output:   combined.String(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil:
		result.TimedOut = true
		result.ExitCode = -1
	case runErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			if parent.Err() != nil {
				return result, parent.Err()
			}
			return result, fmt.Errorf("start %s: %w", r.cfg.GoBinary, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	classify(&result, timeout)
	observe("process", mode, result)

	r.logger.Debug().
		Str("mode", mode).
		Int("exit_code", result.ExitCode).
		Bool("timed_out", result.TimedOut).
		Dur("duration", result.Duration).
		Msg("run finished")

	return result, nil
}

func (r *ProcessRunner) env() []string {
	env := append(os.Environ(),
		"GOTOOLCHAIN=local",
		"GOWORK=off",
		"GOFLAGS=-mod=mod",
		"GO111MODULE=on",
	)
	return append(env, r.cfg.Env...)
}

func annotate(span trace.Span, result Result, err error) {
	span.SetAttributes(
		attribute.Int("runner.exit_code", result.ExitCode),
		attribute.Bool("runner.timed_out", result.TimedOut),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.TimedOut:
		span.SetStatus(codes.Error, "execution timed out")
	}
}
