package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/certmailer/internal/certificate"
	"github.com/certmailer/internal/config"
	"github.com/certmailer/internal/mailer"
	"github.com/certmailer/internal/pipeline"
	"github.com/certmailer/internal/roster"
)

type App struct {
	config   *config.Config
	logger   *slog.Logger
	renderer pipeline.Renderer
	sender   pipeline.Sender
}

func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)

	return &App{
		config:   cfg,
		logger:   logger,
		renderer: certificate.NewRenderer(),
		sender:   mailer.New(mailer.NewConfig(cfg)),
	}, nil
}

// Run loads the roster, checks the template and mails every team's
// certificates. Errors returned here end the run.
func (app *App) Run(ctx context.Context) error {
	records, err := roster.Load(app.config.RosterPath)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	app.logger.Info("roster loaded", "path", app.config.RosterPath, "teams", len(records))

	if app.config.SkipPreflight {
		app.logger.Warn("template preflight skipped", "template", app.config.TemplatePath)
	} else if err := certificate.Check(ctx, app.config.TemplatePath); err != nil {
		return fmt.Errorf("checking template: %w", err)
	}

	if app.config.DryRun {
		app.logger.Info("dry run: emails will be composed but not sent")
	}

	p := pipeline.NewProcessor(app.renderer, app.sender, app.config.TemplatePath, app.logger)
	sum, err := p.Run(ctx, records)
	if err != nil {
		return fmt.Errorf("processing teams (sent %d of %d): %w", sum.Sent, len(records), err)
	}

	if sum.Failed > 0 {
		app.logger.Warn("some emails failed to send", "failed", sum.Failed)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
