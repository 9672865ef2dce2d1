package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-autograder/internal/dto"
	"github.com/noah-isme/gema-autograder/internal/models"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/pkg/runner"
)

const maxScriptBytes = 1 << 20

var (
	// ErrFixLogNotFound indicates the fix log does not exist.
	ErrFixLogNotFound = errors.New("fix log not found")
	// ErrFixLogNotConfirmable indicates deletion was requested before the fix was verified.
	ErrFixLogNotConfirmable = errors.New("fix log is not awaiting confirmation")
	// ErrInvalidConfirmation indicates a confirmation other than yes or no.
	ErrInvalidConfirmation = errors.New("confirmation must be 'yes' or 'no'")
	// ErrUnsupportedScript indicates uploaded content is not a text program.
	ErrUnsupportedScript = errors.New("script must be plain text")
)

// Fix check outcomes reported by the CLI sweep.
const (
	FixCheckSkipped      = "skipped"
	FixCheckResolved     = "resolved"
	FixCheckAlreadyKnown = "already_logged"
)

// FixVerifier judges whether new code genuinely fixes a logged error.
type FixVerifier interface {
	VerifyFix(ctx context.Context, errorLog, originalCode, newCode string) bool
}

// FixLogConfig tunes script runs.
type FixLogConfig struct {
	ScratchDir string
	Timeout    time.Duration
}

// FixLogService records failing scripts and walks them through verified fixes.
type FixLogService interface {
	Log(ctx context.Context, path string) (dto.MonitorResult, error)
	Check(ctx context.Context) ([]dto.FixCheckResult, error)
	Resolve(ctx context.Context, id string) error
	List(ctx context.Context) ([]dto.FixLogResponse, error)
	Monitor(ctx context.Context, content []byte) (dto.MonitorResult, error)
	UpdateCode(ctx context.Context, id string, payload dto.UpdateFixCodeRequest) (dto.FixLogResponse, error)
	CheckFix(ctx context.Context, id string) (dto.FixCheckResult, error)
	ConfirmDelete(ctx context.Context, id string, payload dto.ConfirmDeleteRequest) (dto.ConfirmDeleteResult, error)
}

type fixLogService struct {
	repo      repository.FixLogRepository
	runner    runner.Runner
	verifier  FixVerifier
	validator *validator.Validate
	config    FixLogConfig
	logger    zerolog.Logger
}

// NewFixLogService constructs the fix-log service.
func NewFixLogService(repo repository.FixLogRepository, exec runner.Runner, verifier FixVerifier, validate *validator.Validate, cfg FixLogConfig, logger zerolog.Logger) FixLogService {
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = runner.DefaultTimeout
	}
	return &fixLogService{
		repo:      repo,
		runner:    exec,
		verifier:  verifier,
		validator: validate,
		config:    cfg,
		logger:    logger.With().Str("component", "fix_log_service").Logger(),
	}
}

func (s *fixLogService) Log(ctx context.Context, path string) (dto.MonitorResult, error) {
	errorLog, err := s.runScript(ctx, path)
	if err != nil {
		return dto.MonitorResult{}, err
	}
	if errorLog == "" {
		return dto.MonitorResult{Status: dto.MonitorStatusOK, Message: "Script ran successfully. Nothing to log."}, nil
	}

	existing, err := s.repo.FindUnresolvedByPath(ctx, path)
	switch {
	case err == nil:
		id := existing.ID
		return dto.MonitorResult{
			Status:  FixCheckAlreadyKnown,
			Message: "This file already has an unresolved error logged. Run check after fixing.",
			LogID:   &id,
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.MonitorResult{}, fmt.Errorf("lookup fix log: %w", err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return dto.MonitorResult{}, fmt.Errorf("read script: %w", err)
	}

	entry := models.FixLog{FilePath: path, ErrorMessage: errorLog, OriginalCode: string(original)}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return dto.MonitorResult{}, err
	}

	s.logger.Info().Str("log_id", entry.ID.String()).Str("path", path).Msg("script failure logged")
	return dto.MonitorResult{
		Status:  dto.MonitorStatusErrorLogged,
		Message: errorLog,
		LogID:   &entry.ID,
	}, nil
}

func (s *fixLogService) Check(ctx context.Context) ([]dto.FixCheckResult, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]dto.FixCheckResult, 0, len(pending))
	for _, entry := range pending {
		result := dto.FixCheckResult{LogID: entry.ID}

		current, readErr := os.ReadFile(entry.FilePath)
		if readErr != nil {
			result.Status = FixCheckSkipped
			result.Message = "File not found. Skipping."
			results = append(results, result)
			continue
		}

		errorLog, runErr := s.runScript(ctx, entry.FilePath)
		if runErr != nil {
			return results, runErr
		}
		if errorLog != "" {
			result.Status = dto.FixCheckStillBroken
			result.Message = "Fix not successful. The script still fails."
			result.NewError = errorLog
			results = append(results, result)
			continue
		}

		if s.verifier.VerifyFix(ctx, entry.ErrorMessage, entry.OriginalCode, string(current)) {
			if _, err := s.repo.Delete(ctx, entry.ID); err != nil {
				return results, err
			}
			s.removeScratch(entry.FilePath)
			result.Status = FixCheckResolved
			result.Message = "AI verification succeeded. Log deleted."
		} else {
			entry.Status = models.FixLogStatusVerificationFailed
			if err := s.repo.Update(ctx, &entry); err != nil {
				return results, err
			}
			result.Status = models.FixLogStatusVerificationFailed
			result.Message = "AI verification failed. The log is kept for review."
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *fixLogService) Resolve(ctx context.Context, id string) error {
	entry, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrFixLogNotFound
	}
	s.removeScratch(entry.FilePath)
	return nil
}

func (s *fixLogService) List(ctx context.Context) ([]dto.FixLogResponse, error) {
	logs, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.FixLogResponse, 0, len(logs))
	for _, entry := range logs {
		responses = append(responses, dto.NewFixLogResponse(entry))
	}
	return responses, nil
}

func (s *fixLogService) Monitor(ctx context.Context, content []byte) (dto.MonitorResult, error) {
	if err := validateScript(content); err != nil {
		return dto.MonitorResult{}, err
	}

	path, err := s.writeScratch(content)
	if err != nil {
		return dto.MonitorResult{}, err
	}

	errorLog, err := s.runScript(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return dto.MonitorResult{}, err
	}
	if errorLog == "" {
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove monitored script")
		}
		return dto.MonitorResult{Status: dto.MonitorStatusOK, Message: "Script ran successfully. No errors to log."}, nil
	}

	entry := models.FixLog{FilePath: path, ErrorMessage: errorLog, OriginalCode: string(content)}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return dto.MonitorResult{}, err
	}

	s.logger.Info().Str("log_id", entry.ID.String()).Msg("uploaded script failure logged")
	return dto.MonitorResult{
		Status:  dto.MonitorStatusErrorLogged,
		Message: "Error detected and logged from uploaded script.",
		LogID:   &entry.ID,
	}, nil
}

func (s *fixLogService) UpdateCode(ctx context.Context, id string, payload dto.UpdateFixCodeRequest) (dto.FixLogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FixLogResponse{}, err
	}
	entry, err := s.load(ctx, id)
	if err != nil {
		return dto.FixLogResponse{}, err
	}

	code := payload.NewCode
	entry.NewCode = &code
	entry.Status = models.FixLogStatusFixAttempted
	if err := s.repo.Update(ctx, &entry); err != nil {
		return dto.FixLogResponse{}, err
	}
	return dto.NewFixLogResponse(entry), nil
}

func (s *fixLogService) CheckFix(ctx context.Context, id string) (dto.FixCheckResult, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return dto.FixCheckResult{}, err
	}

	current := entry.OriginalCode
	var errorLog string
	if entry.NewCode != nil && *entry.NewCode != "" {
		current = *entry.NewCode
		path, err := s.writeScratch([]byte(current))
		if err != nil {
			return dto.FixCheckResult{}, err
		}
		errorLog, err = s.runScript(ctx, path)
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.Warn().Err(removeErr).Str("path", path).Msg("failed to remove fix candidate")
		}
		if err != nil {
			return dto.FixCheckResult{}, err
		}
	} else {
		errorLog, err = s.runScript(ctx, entry.FilePath)
		if err != nil {
			return dto.FixCheckResult{}, err
		}
	}

	if errorLog != "" {
		return dto.FixCheckResult{
			Status:   dto.FixCheckStillBroken,
			Message:  "Script still has errors.",
			NewError: errorLog,
			LogID:    entry.ID,
		}, nil
	}

	result := dto.FixCheckResult{LogID: entry.ID}
	if s.verifier.VerifyFix(ctx, entry.ErrorMessage, entry.OriginalCode, current) {
		entry.Status = models.FixLogStatusPendingConfirmation
		result.Message = "AI verified fix. Confirm to delete the log."
	} else {
		entry.Status = models.FixLogStatusVerificationFailed
		result.Message = "AI did not accept the fix. Log remains."
	}
	result.Status = entry.Status

	if err := s.repo.Update(ctx, &entry); err != nil {
		return dto.FixCheckResult{}, err
	}
	return result, nil
}

func (s *fixLogService) ConfirmDelete(ctx context.Context, id string, payload dto.ConfirmDeleteRequest) (dto.ConfirmDeleteResult, error) {
	answer := strings.ToLower(strings.TrimSpace(payload.Confirmation))
	if answer != "yes" && answer != "no" {
		return dto.ConfirmDeleteResult{}, ErrInvalidConfirmation
	}

	entry, err := s.load(ctx, id)
	if err != nil {
		return dto.ConfirmDeleteResult{}, err
	}
	if !entry.Confirmable() {
		return dto.ConfirmDeleteResult{}, fmt.Errorf("%w: current status is %q", ErrFixLogNotConfirmable, entry.Status)
	}

	if answer == "no" {
		entry.Status = models.FixLogStatusUnresolved
		if err := s.repo.Update(ctx, &entry); err != nil {
			return dto.ConfirmDeleteResult{}, err
		}
		return dto.ConfirmDeleteResult{Status: dto.ConfirmStatusCancelled, Message: "Log was not deleted."}, nil
	}

	deleted, err := s.repo.Delete(ctx, entry.ID)
	if err != nil {
		return dto.ConfirmDeleteResult{}, err
	}
	if !deleted {
		return dto.ConfirmDeleteResult{}, ErrFixLogNotFound
	}
	s.removeScratch(entry.FilePath)
	return dto.ConfirmDeleteResult{Status: dto.ConfirmStatusDeleted, Message: "Log deleted successfully."}, nil
}

func (s *fixLogService) load(ctx context.Context, id string) (models.FixLog, error) {
	logID, err := parseID(id)
	if err != nil {
		return models.FixLog{}, err
	}
	entry, err := s.repo.GetByID(ctx, logID)
	if err != nil {
		return models.FixLog{}, translateNotFound(err, ErrFixLogNotFound)
	}
	return entry, nil
}

// runScript returns the error text of a run, or "" when the script exits cleanly.
func (s *fixLogService) runScript(ctx context.Context, path string) (string, error) {
	result, err := s.runner.RunScript(ctx, runner.ScriptRequest{Path: path, Timeout: s.config.Timeout})
	if err != nil {
		return "", fmt.Errorf("run script: %w", err)
	}
	return strings.TrimSpace(result.Error), nil
}

func (s *fixLogService) writeScratch(content []byte) (string, error) {
	file, err := os.CreateTemp(s.config.ScratchDir, "gema-fix-*.go")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(content); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write script file: %w", err)
	}
	return file.Name(), nil
}

// removeScratch deletes a script kept by Monitor; paths outside the scratch
// directory belong to the user and are left alone.
func (s *fixLogService) removeScratch(path string) {
	scratch, err := filepath.Abs(s.config.ScratchDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != scratch || !strings.HasPrefix(filepath.Base(abs), "gema-fix-") {
		return
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", abs).Msg("failed to remove kept script")
	}
}

func validateScript(content []byte) error {
	if len(strings.TrimSpace(string(content))) == 0 || len(content) > maxScriptBytes {
		return ErrUnsupportedScript
	}
	for mime := mimetype.Detect(content); mime != nil; mime = mime.Parent() {
		if mime.Is("text/plain") {
			return nil
		}
	}
	return ErrUnsupportedScript
}
