package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for a run. Path existence is
// checked by preflight, not here, so config files can be authored before the
// folders they reference.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		return errors.New("paths.source_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TargetDir) == "" {
		return errors.New("paths.target_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ITCTemplate) == "" {
		return errors.New("paths.itc_template must be set")
	}
	if strings.TrimSpace(c.Paths.SalesTemplate) == "" {
		return errors.New("paths.sales_template must be set")
	}
	return nil
}

func (c *Config) validateTemplates() error {
	for name, mapping := range map[string]TemplateMapping{
		"templates.itc":   c.Templates.ITC,
		"templates.sales": c.Templates.Sales,
	} {
		if strings.TrimSpace(mapping.Sheet) == "" {
			return fmt.Errorf("%s.sheet must be set", name)
		}
		if len(mapping.Cells) == 0 {
			return fmt.Errorf("%s.cells must map at least one cell", name)
		}
		for cell, field := range mapping.Cells {
			if strings.TrimSpace(cell) == "" || strings.TrimSpace(field) == "" {
				return fmt.Errorf("%s.cells contains an empty mapping", name)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
