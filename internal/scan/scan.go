// Package scan enumerates spreadsheet files in a source folder, classifies
// them, and groups the results by client.
package scan

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"annualstatement/internal/logging"
	"annualstatement/internal/naming"
	"annualstatement/internal/services"
)

// Spreadsheet container magics. Zip-based formats (xlsx, xlsm) start with a
// local file header; legacy xls is an OLE compound document.
var (
	zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}
	oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0}
)

// minSpreadsheetBytes rejects zero-byte and truncated stub files before
// classification. An OLE document is at least one 512-byte sector.
const minSpreadsheetBytes = 512

// File is one classified spreadsheet found in the source folder.
type File struct {
	Path       string
	Size       int64
	Classified naming.Classified
}

// Client groups the classified files that share a client identity key.
type Client struct {
	Key              string
	Name             string
	Jurisdiction     string
	JurisdictionCode string
	Files            map[naming.Category][]File
	Missing          []naming.Category
	Duplicates       []naming.Category
	Complete         bool
}

// FileCount returns the total number of classified files for the client.
func (c *Client) FileCount() int {
	total := 0
	for _, files := range c.Files {
		total += len(files)
	}
	return total
}

// Stats summarizes one scan pass.
type Stats struct {
	Entries       int
	Classified    int
	NonConforming int
	Skipped       int
}

// Result is the full outcome of scanning one source folder.
type Result struct {
	SourceDir     string
	Clients       []*Client
	NonConforming []naming.NonConforming
	Stats         Stats
}

// Client returns the client with the given key, or nil.
func (r *Result) Client(key string) *Client {
	for _, c := range r.Clients {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Scanner classifies the contents of a source folder. Scanning never mutates
// the folder.
type Scanner struct {
	logger *slog.Logger

	// Progress, when set, is called once per directory entry considered.
	Progress func(current, total int, name string)
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan enumerates the immediate children of dir (subdirectories are not
// descended), verifies each looks like a real spreadsheet, classifies it,
// and aggregates the results by client key.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "read_dir", "reading source folder", err)
	}

	result := &Result{SourceDir: dir}
	clients := make(map[string]*Client)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	result.Stats.Entries = len(names)

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Progress != nil {
			s.Progress(i+1, len(names), name)
		}

		path := filepath.Join(dir, name)
		classified, nonConforming := naming.Classify(name)
		if nonConforming != nil {
			if nonConforming.Reason == naming.ReasonBadExtension {
				result.Stats.Skipped++
			} else {
				result.Stats.NonConforming++
				result.NonConforming = append(result.NonConforming, *nonConforming)
			}
			continue
		}

		size, reason := checkSpreadsheet(path)
		if reason != "" {
			result.Stats.NonConforming++
			result.NonConforming = append(result.NonConforming, naming.NonConforming{
				SourceName: name,
				Reason:     reason,
			})
			s.logger.Warn("file rejected before classification",
				logging.String("file", name),
				logging.String("reason", string(reason)))
			continue
		}

		result.Stats.Classified++
		key := classified.Key()
		client, ok := clients[key]
		if !ok {
			client = &Client{
				Key:              key,
				Name:             classified.Client,
				Jurisdiction:     classified.Jurisdiction,
				JurisdictionCode: classified.JurisdictionCode,
				Files:            make(map[naming.Category][]File),
			}
			clients[key] = client
			result.Clients = append(result.Clients, client)
		}
		client.Files[classified.Category] = append(client.Files[classified.Category], File{
			Path:       path,
			Size:       size,
			Classified: classified,
		})
	}

	sort.Slice(result.Clients, func(i, j int) bool {
		return result.Clients[i].Key < result.Clients[j].Key
	})
	for _, client := range result.Clients {
		finishClient(client)
	}

	s.logger.Info("scan complete",
		logging.String("source", dir),
		logging.Int("entries", result.Stats.Entries),
		logging.Int("classified", result.Stats.Classified),
		logging.Int("non_conforming", result.Stats.NonConforming),
		logging.Int("clients", len(result.Clients)))

	return result, nil
}

// checkSpreadsheet verifies the file is large enough to be a workbook and
// carries a recognized container magic. Returns the file size and an empty
// reason on success.
func checkSpreadsheet(path string) (int64, naming.Reason) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, naming.ReasonNotASpreadsheet
	}
	if info.Size() < minSpreadsheetBytes {
		return info.Size(), naming.ReasonNotASpreadsheet
	}

	f, err := os.Open(path)
	if err != nil {
		return info.Size(), naming.ReasonNotASpreadsheet
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return info.Size(), naming.ReasonNotASpreadsheet
	}
	if !bytes.Equal(header, zipMagic) && !bytes.Equal(header, oleMagic) {
		return info.Size(), naming.ReasonNotASpreadsheet
	}
	return info.Size(), ""
}

func finishClient(client *Client) {
	for _, category := range naming.Categories() {
		files, ok := client.Files[category]
		if !ok || len(files) == 0 {
			client.Missing = append(client.Missing, category)
			continue
		}
		sort.Slice(files, func(i, j int) bool {
			return files[i].Classified.SourceName < files[j].Classified.SourceName
		})
		if len(files) > 1 && !naming.AllowsMultiple(category) {
			client.Duplicates = append(client.Duplicates, category)
		}
	}
	client.Complete = len(client.Missing) == 0
}
