package config

const (
	defaultLogDir             = "~/.local/share/annualstatement/logs"
	defaultLedgerDir          = "~/.local/share/annualstatement"
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultClientKeyMaxLength = 35
	defaultMinFreeSpaceGiB    = 1
	defaultLinksSheet         = "Links"
)

// Default returns a Config populated with repository defaults. The template
// cell mappings mirror the Links-sheet layout both stock templates ship with;
// operators with customized templates override them in config.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			LedgerDir: defaultLedgerDir,
		},
		Organizer: Organizer{
			ClientKeyMaxLength: defaultClientKeyMaxLength,
			MinFreeSpaceGiB:    defaultMinFreeSpaceGiB,
		},
		Templates: Templates{
			ITC: TemplateMapping{
				Sheet: defaultLinksSheet,
				Cells: map[string]string{
					"B2":  "gstr3b_folder",
					"B4":  "annual_folder",
					"B5":  "annual_filename",
					"B7":  "gstr2b_folder",
					"B8":  "gstr2b_filename",
					"B10": "ims_folder",
					"B11": "ims_filename",
				},
			},
			Sales: TemplateMapping{
				Sheet: defaultLinksSheet,
				Cells: map[string]string{
					"B2": "sales_folder",
					"B3": "sales_filename",
					"B5": "annual_folder",
					"B6": "annual_filename",
					"B8": "sales_reco_folder",
					"B9": "sales_reco_filename",
				},
			},
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
