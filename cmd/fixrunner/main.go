package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"

	"github.com/noah-isme/gema-autograder/internal/bootstrap"
	"github.com/noah-isme/gema-autograder/internal/config"
	"github.com/noah-isme/gema-autograder/internal/database"
	"github.com/noah-isme/gema-autograder/internal/logging"
	"github.com/noah-isme/gema-autograder/internal/repository"
	"github.com/noah-isme/gema-autograder/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadTooling()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  "console",
		File:    cfg.LogFile,
		Service: "fixrunner",
	})

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// Scripts run on the host so the paths recorded in the log stay valid.
	cfg.RunnerBackend = config.RunnerBackendProcess
	exec, closeRunner, err := bootstrap.Runner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRunner()

	assistant, _ := bootstrap.Assistant(cfg, logger)
	fixes := service.NewFixLogService(
		repository.NewFixLogRepository(db),
		exec,
		assistant,
		validator.New(validator.WithRequiredStructEnabled()),
		service.FixLogConfig{ScratchDir: cfg.FixScratchDir, Timeout: cfg.ExecutionTimeout},
		logger,
	)

	return newCommand(fixes, os.Stdout).Run(ctx, args)
}

func newCommand(fixes service.FixLogService, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "fixrunner",
		Usage: "record failing Go scripts and check whether they have been fixed",
		Commands: []*cli.Command{
			{
				Name:      "log",
				Usage:     "run a script and record its error if it fails",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return errors.New("a script path is required")
					}
					result, err := fixes.Log(ctx, path)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, result.Message)
					if result.LogID != nil {
						fmt.Fprintf(out, "log id: %s\n", result.LogID)
					}
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "re-run every pending script and verify the fixes",
				Action: func(ctx context.Context, _ *cli.Command) error {
					results, err := fixes.Check(ctx)
					if err != nil {
						return err
					}
					if len(results) == 0 {
						fmt.Fprintln(out, "no pending errors")
						return nil
					}
					for _, result := range results {
						fmt.Fprintf(out, "%s\t%s\t%s\n", result.LogID, result.Status, result.Message)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "show pending error logs",
				Action: func(ctx context.Context, _ *cli.Command) error {
					logs, err := fixes.List(ctx)
					if err != nil {
						return err
					}
					for _, entry := range logs {
						fmt.Fprintf(out, "%s\t%s\t%s\n", entry.ID, entry.Status, entry.FilePath)
					}
					return nil
				},
			},
			{
				Name:      "resolve",
				Usage:     "mark a log entry as resolved",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return errors.New("a log id is required")
					}
					if err := fixes.Resolve(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(out, "resolved %s\n", id)
					return nil
				},
			},
		},
	}
}
