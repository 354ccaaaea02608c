// Package pipeline drives a certificate run: validate each registration,
// render a certificate per member, and mail each team's batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/certmailer/internal/certificate"
	"github.com/certmailer/internal/model"
)

type Renderer interface {
	Render(ctx context.Context, member, team, templatePath string) ([]byte, error)
}

type Sender interface {
	SendCertificates(ctx context.Context, team, to string, attachments []model.Attachment) error
}

// Summary counts what a run did.
type Summary struct {
	Teams        int
	Skipped      int
	Empty        int
	Certificates int
	Sent         int
	Failed       int
}

type Processor struct {
	renderer     Renderer
	sender       Sender
	templatePath string
	logger       *slog.Logger
}

func NewProcessor(renderer Renderer, sender Sender, templatePath string, logger *slog.Logger) *Processor {
	return &Processor{
		renderer:     renderer,
		sender:       sender,
		templatePath: templatePath,
		logger:       logger,
	}
}

// Run processes records in order, one at a time. Send failures are logged
// and the run moves on to the next team. A render failure stops the run and
// is returned along with the counts gathered so far.
func (p *Processor) Run(ctx context.Context, records []model.Registration) (Summary, error) {
	var sum Summary
	p.logger.Info("processing teams", "total", len(records))

	for _, rec := range records {
		sum.Teams++
		if err := p.process(ctx, rec, &sum); err != nil {
			return sum, err
		}
	}

	p.logger.Info("run complete",
		"teams", sum.Teams,
		"skipped", sum.Skipped,
		"empty", sum.Empty,
		"certificates", sum.Certificates,
		"sent", sum.Sent,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (p *Processor) process(ctx context.Context, rec model.Registration, sum *Summary) error {
	team, email := rec.TeamName(), rec.Email()
	if team == "" || email == "" {
		p.logger.Warn("skipping team due to missing team name or email", "row", rec.Row)
		sum.Skipped++
		return nil
	}

	batch, err := p.renderMembers(ctx, rec, team)
	if err != nil {
		return err
	}
	sum.Certificates += len(batch)

	if len(batch) == 0 {
		p.logger.Info("no valid members to send", "team", team)
		sum.Empty++
		return nil
	}

	if err := p.sender.SendCertificates(ctx, team, email, batch); err != nil {
		p.logger.Error("failed to send email", "team", team, "email", email, "err", err)
		sum.Failed++
		return nil
	}

	p.logger.Info("email sent", "team", team, "email", email, "certificates", len(batch))
	sum.Sent++
	return nil
}

func (p *Processor) renderMembers(ctx context.Context, rec model.Registration, team string) ([]model.Attachment, error) {
	var batch []model.Attachment

	for _, field := range model.MemberFields {
		member := rec.Member(field)
		if member == "" {
			p.logger.Info("skipping empty member", "team", team, "field", field)
			continue
		}

		data, err := p.renderer.Render(ctx, member, team, p.templatePath)
		if err != nil {
			return nil, fmt.Errorf("render certificate for %q of team %q: %w", member, team, err)
		}

		batch = append(batch, model.Attachment{
			Filename:    certificate.Filename(member),
			ContentType: model.ContentTypePDF,
			Data:        data,
		})
	}

	return batch, nil
}
