package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env string `env:"ENV" envDefault:"production"` // development, production

	// Inputs
	RosterPath   string `env:"ROSTER_PATH" envDefault:"testing.xlsx"`
	TemplatePath string `env:"TEMPLATE_PATH" envDefault:"certificate.pdf"`

	// SMTP
	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"EMAIL_USER"`
	SMTPPass     string `env:"EMAIL_PASS"`
	SMTPFromName string `env:"EMAIL_FROM_NAME"`

	DryRun        bool `env:"DRY_RUN" envDefault:"false"`
	SkipPreflight bool `env:"SKIP_PREFLIGHT" envDefault:"false"`
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the values needed to start a run. Mail credentials are not
// checked here: a missing credential fails each send instead.
func (c *Config) Validate() error {
	if c.RosterPath == "" {
		return fmt.Errorf("roster path is required")
	}
	if c.TemplatePath == "" {
		return fmt.Errorf("template path is required")
	}
	if !c.DryRun {
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTPPort)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
