package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const containerWorkDir = "/workspace"

// DockerConfig configures the container backend.
type DockerConfig struct {
	Host          string
	Image         string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// DockerRunner runs the same go toolchain commands as ProcessRunner inside a
// throwaway container with networking disabled.
type DockerRunner struct {
	client *client.Client
	cfg    DockerConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerRunner constructs a Docker backed runner.
func NewDockerRunner(cfg DockerConfig) (*DockerRunner, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = "golang:1.24-alpine"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerRunner{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-autograder/pkg/runner/docker"),
		logger: logger.With().Str("component", "docker_runner").Logger(),
	}, nil
}

// RunTests mounts a fresh module workspace into the container and runs the suite.
func (r *DockerRunner) RunTests(ctx context.Context, req TestRequest) (Result, error) {
	workspace, err := prepareTestWorkspace(r.cfg.WorkspaceRoot, req)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			r.logger.Error().Err(err).Str("workspace", workspace).Msg("failed to remove workspace")
		}
	}()

	timeout := effectiveTimeout(req.Timeout, r.cfg.Timeout)
	return r.run(ctx, "tests", workspace, false, timeout, []string{"go", "test", "-json", "-count=1", "./..."})
}

// RunScript mounts the script's directory read-only and runs the file.
func (r *DockerRunner) RunScript(ctx context.Context, req ScriptRequest) (Result, error) {
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
	cmd := []string{"go", "run", containerWorkDir + "/" + filepath.Base(path)}
	return r.run(ctx, "script", filepath.Dir(path), true, timeout, cmd)
}

func (r *DockerRunner) run(parent context.Context, mode, hostDir string, readOnly bool, timeout time.Duration, cmd []string) (Result, error) {
	ctx, span := r.tracer.Start(parent, "runner.docker."+mode, trace.WithAttributes(
		attribute.String("docker.image", r.cfg.Image),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: r.cfg.CPUShares,
		},
		NetworkMode: "none",
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   hostDir,
			Target:   containerWorkDir,
			ReadOnly: readOnly,
		}},
	}

	config := &container.Config{
		Image:      r.cfg.Image,
		Cmd:        cmd,
		WorkingDir: containerWorkDir,
		Env: []string{
			"GOTOOLCHAIN=local",
			"GOFLAGS=-mod=mod",
			"GOWORK=off",
			"CGO_ENABLED=0",
			"GOCACHE=/tmp/go-cache",
			"GOPATH=/tmp/go",
		},
		AttachStdout: true,
		AttachStderr: true,
	}

	resp, err := r.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	start := time.Now()
	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("container start: %w", err)
	}

	result := Result{}
	statusCh, errCh := r.client.ContainerWait(runCtx, containerID, container.WaitConditionNotRunning)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-runCtx.Done():
		waitErr = runCtx.Err()
	}
	result.Duration = time.Since(start)

	if waitErr != nil {
		if !errors.Is(runCtx.Err(), context.DeadlineExceeded) || ctx.Err() != nil {
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, waitErr.Error())
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
		result.TimedOut = true
		result.ExitCode = -1
		killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
		}
	}

	logsCtx, cancelLogs := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelLogs()
	logReader, err := r.client.ContainerLogs(logsCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err == nil {
		defer logReader.Close()
		stdout, stderr, err := splitDockerLogs(logReader)
		if err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		}
		result.Stdout = stdout
		result.Stderr = stderr
		result.Output = stdout + stderr
	} else {
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
	}

	classify(&result, timeout)
	observe("docker", mode, result)
	annotate(span, result, nil)

	return result, nil
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return stdoutBuf.String(), stderrBuf.String(), err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the underlying Docker client.
func (r *DockerRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
