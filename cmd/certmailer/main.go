package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/certmailer/internal/app"
	"github.com/certmailer/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("certmailer failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		rosterPath    string
		templatePath  string
		dryRun        bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "certmailer",
		Short: "Email participation certificates to every registered team",
		Long: `Reads team registrations from the first sheet of an Excel workbook,
renders one certificate per team member from a PDF template, and emails
each team's certificates to the team's contact address.

SMTP credentials are read from EMAIL_USER and EMAIL_PASS (a .env file in
the working directory is loaded if present).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("roster") {
				cfg.RosterPath = rosterPath
			}
			if flags.Changed("template") {
				cfg.TemplatePath = templatePath
			}
			if flags.Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if flags.Changed("skip-preflight") {
				cfg.SkipPreflight = skipPreflight
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&rosterPath, "roster", "", "path to the registrations workbook (overrides ROSTER_PATH)")
	cmd.Flags().StringVar(&templatePath, "template", "", "path to the certificate PDF template (overrides TEMPLATE_PATH)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compose emails and log them instead of sending")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "do not test-render the template before processing teams")

	return cmd
}
