package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOrganizer()
	c.normalizeTemplates()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.TargetDir, err = expandPath(c.Paths.TargetDir); err != nil {
		return fmt.Errorf("paths.target_dir: %w", err)
	}
	if c.Paths.ITCTemplate, err = expandPath(c.Paths.ITCTemplate); err != nil {
		return fmt.Errorf("paths.itc_template: %w", err)
	}
	if c.Paths.SalesTemplate, err = expandPath(c.Paths.SalesTemplate); err != nil {
		return fmt.Errorf("paths.sales_template: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerDir) == "" {
		c.Paths.LedgerDir = defaultLedgerDir
	}
	if c.Paths.LedgerDir, err = expandPath(c.Paths.LedgerDir); err != nil {
		return fmt.Errorf("paths.ledger_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOrganizer() {
	if c.Organizer.ClientKeyMaxLength <= 0 {
		c.Organizer.ClientKeyMaxLength = defaultClientKeyMaxLength
	}
	if c.Organizer.MinFreeSpaceGiB < 0 {
		c.Organizer.MinFreeSpaceGiB = defaultMinFreeSpaceGiB
	}
}

func (c *Config) normalizeTemplates() {
	defaults := Default().Templates
	if strings.TrimSpace(c.Templates.ITC.Sheet) == "" {
		c.Templates.ITC.Sheet = defaults.ITC.Sheet
	}
	if len(c.Templates.ITC.Cells) == 0 {
		c.Templates.ITC.Cells = defaults.ITC.Cells
	}
	if strings.TrimSpace(c.Templates.Sales.Sheet) == "" {
		c.Templates.Sales.Sheet = defaults.Sales.Sheet
	}
	if len(c.Templates.Sales.Cells) == 0 {
		c.Templates.Sales.Cells = defaults.Sales.Cells
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
}
