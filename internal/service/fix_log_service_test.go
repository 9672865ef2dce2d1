package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/pkg/runner"
)

const (
	brokenScript = "package main\n\nfunc main() {\n\tpanic(\"boom\")\n}\n"
	fixedScript  = "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"ok\")\n}\n"
)

type fixLogFixture struct {
	repo     repository.FixLogRepository
	runner   *runnerStub
	verifier *verifierStub
	scratch  string
	service  FixLogService
}

// panicking scripts fail, everything else succeeds.
func scriptOutcome(path string) runner.Result {
	content, err := os.ReadFile(path)
	if err != nil {
		return runner.Result{ExitCode: -1, Error: fmt.Sprintf("Error: the file %q does not exist.", path)}
	}
	if strings.Contains(string(content), "panic(") {
		return runner.Result{ExitCode: 2, Error: "panic: boom\n\ngoroutine 1 [running]:"}
	}
	return runner.Result{Output: "ok\n"}
}

func newFixLogFixture(t *testing.T, valid bool) fixLogFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.FixLog{}))

	f := fixLogFixture{
		repo:     repository.NewFixLogRepository(db),
		runner:   &runnerStub{script: scriptOutcome},
		verifier: &verifierStub{valid: valid},
		scratch:  t.TempDir(),
	}
	f.service = NewFixLogService(f.repo, f.runner, f.verifier, validator.New(), FixLogConfig{ScratchDir: f.scratch}, testLogger())
	return f
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestFixLogMonitorSuccessRemovesScript(t *testing.T) {
	f := newFixLogFixture(t, true)

	result, err := f.service.Monitor(context.Background(), []byte(fixedScript))
	require.NoError(t, err)
	require.Equal(t, dto.MonitorStatusOK, result.Status)
	require.Nil(t, result.LogID)
	require.Empty(t, scratchFiles(t, f.scratch))
}

func TestFixLogMonitorRejectsBinaryContent(t *testing.T) {
	f := newFixLogFixture(t, true)

	_, err := f.service.Monitor(context.Background(), []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00})
	require.ErrorIs(t, err, ErrUnsupportedScript)

	_, err = f.service.Monitor(context.Background(), []byte("   "))
	require.ErrorIs(t, err, ErrUnsupportedScript)
	require.Empty(t, f.runner.scripts)
}

func TestFixLogHTTPFlowFromFailureToDeletion(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	logged, err := f.service.Monitor(ctx, []byte(brokenScript))
	require.NoError(t, err)
	require.Equal(t, dto.MonitorStatusErrorLogged, logged.Status)
	require.NotNil(t, logged.LogID)
	require.Len(t, scratchFiles(t, f.scratch), 1)

	id := logged.LogID.String()
	stored, err := f.repo.GetByID(ctx, *logged.LogID)
	require.NoError(t, err)
	require.Equal(t, models.FixLogStatusUnresolved, stored.Status)
	require.Contains(t, stored.ErrorMessage, "panic: boom")
	require.Equal(t, brokenScript, stored.OriginalCode)

	_, err = f.service.ConfirmDelete(ctx, id, dto.ConfirmDeleteRequest{Confirmation: "yes"})
	require.ErrorIs(t, err, ErrFixLogNotConfirmable)

	still, err := f.service.CheckFix(ctx, id)
	require.NoError(t, err)
	require.Equal(t, dto.FixCheckStillBroken, still.Status)
	require.Contains(t, still.NewError, "panic: boom")

	updated, err := f.service.UpdateCode(ctx, id, dto.UpdateFixCodeRequest{NewCode: fixedScript})
	require.NoError(t, err)
	require.Equal(t, models.FixLogStatusFixAttempted, updated.Status)

	verified, err := f.service.CheckFix(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.FixLogStatusPendingConfirmation, verified.Status)
	require.Equal(t, []string{fixedScript}, f.verifier.calls)
	require.Len(t, scratchFiles(t, f.scratch), 1)

	_, err = f.service.ConfirmDelete(ctx, id, dto.ConfirmDeleteRequest{Confirmation: "maybe"})
	require.ErrorIs(t, err, ErrInvalidConfirmation)

	confirmed, err := f.service.ConfirmDelete(ctx, id, dto.ConfirmDeleteRequest{Confirmation: "YES"})
	require.NoError(t, err)
	require.Equal(t, dto.ConfirmStatusDeleted, confirmed.Status)
	require.Empty(t, scratchFiles(t, f.scratch))

	_, err = f.service.CheckFix(ctx, id)
	require.ErrorIs(t, err, ErrFixLogNotFound)
}

func TestFixLogConfirmNoResetsToUnresolved(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	logged, err := f.service.Monitor(ctx, []byte(brokenScript))
	require.NoError(t, err)
	id := logged.LogID.String()

	_, err = f.service.UpdateCode(ctx, id, dto.UpdateFixCodeRequest{NewCode: fixedScript})
	require.NoError(t, err)
	_, err = f.service.CheckFix(ctx, id)
	require.NoError(t, err)

	cancelled, err := f.service.ConfirmDelete(ctx, id, dto.ConfirmDeleteRequest{Confirmation: "no"})
	require.NoError(t, err)
	require.Equal(t, dto.ConfirmStatusCancelled, cancelled.Status)

	stored, err := f.repo.GetByID(ctx, *logged.LogID)
	require.NoError(t, err)
	require.Equal(t, models.FixLogStatusUnresolved, stored.Status)
}

func TestFixLogRejectedFixIsMarkedVerificationFailed(t *testing.T) {
	f := newFixLogFixture(t, false)
	ctx := context.Background()

	logged, err := f.service.Monitor(ctx, []byte(brokenScript))
	require.NoError(t, err)
	id := logged.LogID.String()

	_, err = f.service.UpdateCode(ctx, id, dto.UpdateFixCodeRequest{NewCode: fixedScript})
	require.NoError(t, err)

	result, err := f.service.CheckFix(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.FixLogStatusVerificationFailed, result.Status)

	pending, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestFixLogCommandLineFlow(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "script.go")
	require.NoError(t, os.WriteFile(path, []byte(brokenScript), 0o600))

	logged, err := f.service.Log(ctx, path)
	require.NoError(t, err)
	require.Equal(t, dto.MonitorStatusErrorLogged, logged.Status)

	again, err := f.service.Log(ctx, path)
	require.NoError(t, err)
	require.Equal(t, FixCheckAlreadyKnown, again.Status)
	require.Equal(t, *logged.LogID, *again.LogID)

	results, err := f.service.Check(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, dto.FixCheckStillBroken, results[0].Status)

	require.NoError(t, os.WriteFile(path, []byte(fixedScript), 0o600))
	results, err = f.service.Check(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, FixCheckResolved, results[0].Status)

	pending, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	ok, err := f.service.Log(ctx, path)
	require.NoError(t, err)
	require.Equal(t, dto.MonitorStatusOK, ok.Status)
}

func TestFixLogResolve(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	logged, err := f.service.Monitor(ctx, []byte(brokenScript))
	require.NoError(t, err)
	require.Len(t, scratchFiles(t, f.scratch), 1)

	require.ErrorIs(t, f.service.Resolve(ctx, "bogus"), ErrInvalidID)
	require.NoError(t, f.service.Resolve(ctx, logged.LogID.String()))
	require.Empty(t, scratchFiles(t, f.scratch))
	require.ErrorIs(t, f.service.Resolve(ctx, logged.LogID.String()), ErrFixLogNotFound)
	require.ErrorIs(t, f.service.Resolve(ctx, uuid.NewString()), ErrFixLogNotFound)
}

func TestFixLogResolveKeepsUserScripts(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "script.go")
	require.NoError(t, os.WriteFile(path, []byte(brokenScript), 0o600))
	logged, err := f.service.Log(ctx, path)
	require.NoError(t, err)

	require.NoError(t, f.service.Resolve(ctx, logged.LogID.String()))
	require.FileExists(t, path)
}

func TestFixLogCheckRemovesResolvedScratchScript(t *testing.T) {
	f := newFixLogFixture(t, true)
	ctx := context.Background()

	logged, err := f.service.Monitor(ctx, []byte(brokenScript))
	require.NoError(t, err)
	entry, err := f.repo.GetByID(ctx, *logged.LogID)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(entry.FilePath, []byte(fixedScript), 0o600))
	results, err := f.service.Check(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, FixCheckResolved, results[0].Status)
	require.Empty(t, scratchFiles(t, f.scratch))
}
