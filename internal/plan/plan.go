// Package plan computes the destination layout for a run: which folders to
// create and where every classified file lands. Planning is pure; nothing
// here touches the disk.
package plan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"annualstatement/internal/naming"
	"annualstatement/internal/scan"
)

// FolderStamp is the timestamp layout used in folder names, DDMMYY HHMM.
const FolderStamp = "020106 1504"

// Stamp formats a time the way folder names expect.
func Stamp(t time.Time) string {
	return t.Format(FolderStamp)
}

// RootName returns the run root folder name under the target directory.
func RootName(t time.Time) string {
	return "Annual Statement-" + Stamp(t)
}

// Bucket folder base names inside a version folder.
const (
	folderGSTR3B = "GSTR-3B Exports"
	folderITC    = "Other ITC related files"
	folderSales  = "Sales related files"
)

// Options control folder naming.
type Options struct {
	// IncludeClientName appends " (<Client>)" to each bucket folder name.
	IncludeClientName bool
	// ClientKeyMaxLength caps the client folder name length.
	ClientKeyMaxLength int
}

// Entry is one planned file placement.
type Entry struct {
	SourcePath string
	SourceName string
	Category   naming.Category
	ClientKey  string
	DestDir    string
	DestName   string
	DestPath   string
	Conflicted bool
}

// Conflict records two or more sources mapping to one destination. Later
// arrivals get ordinal suffixes at plan time, so re-executing the same plan
// resolves each source to the same final path.
type Conflict struct {
	DestPath string
	Sources  []string
}

// ClientPlan is the placement plan for one client version.
type ClientPlan struct {
	Key              string
	Client           string
	Jurisdiction     string
	JurisdictionCode string
	Number           int
	VersionDir       string
	GSTR3BDir        string
	ITCDir           string
	SalesDir         string
	Folders          []string
	Entries          []Entry
}

// Plan is the full placement plan for a run.
type Plan struct {
	TargetDir string
	RootDir   string
	Clients   []ClientPlan
	Conflicts []Conflict
}

// FileCount returns the total number of planned entries.
func (p *Plan) FileCount() int {
	total := 0
	for _, c := range p.Clients {
		total += len(c.Entries)
	}
	return total
}

// Request pairs a scanned client with its resolved version.
type Request struct {
	Client *scan.Client
	Number int
	// VersionDirRel is the version folder relative to the target directory.
	// Empty means mint a new folder under the run root; resume passes the
	// folder recorded in the ledger.
	VersionDirRel string
}

// Build computes the plan for one run. now fixes the run root and version
// folder timestamps so every client in the run shares them.
func Build(targetDir string, now time.Time, requests []Request, opts Options) *Plan {
	root := filepath.Join(targetDir, RootName(now))
	p := &Plan{TargetDir: targetDir, RootDir: root}

	for _, req := range requests {
		p.Clients = append(p.Clients, buildClient(targetDir, root, now, req, opts))
	}
	sort.Slice(p.Clients, func(i, j int) bool {
		return p.Clients[i].Key < p.Clients[j].Key
	})

	markConflicts(p)
	return p
}

func buildClient(targetDir, root string, now time.Time, req Request, opts Options) ClientPlan {
	client := req.Client
	maxKey := opts.ClientKeyMaxLength
	if maxKey <= 0 {
		maxKey = naming.DefaultKeyLength
	}
	key := naming.ClientKey(client.Name, client.Jurisdiction, maxKey)

	versionDir := ""
	if req.VersionDirRel != "" {
		versionDir = filepath.Join(targetDir, req.VersionDirRel)
	} else {
		versionDir = filepath.Join(root, key, "Version-"+Stamp(now))
	}

	cp := ClientPlan{
		Key:              client.Key,
		Client:           client.Name,
		Jurisdiction:     client.Jurisdiction,
		JurisdictionCode: client.JurisdictionCode,
		Number:           req.Number,
		VersionDir:       versionDir,
	}

	cp.GSTR3BDir = filepath.Join(versionDir, bucketFolder(folderGSTR3B, client.Name, opts))
	cp.ITCDir = filepath.Join(versionDir, bucketFolder(folderITC, client.Name, opts))
	cp.SalesDir = filepath.Join(versionDir, bucketFolder(folderSales, client.Name, opts))
	buckets := map[naming.Bucket]string{
		naming.BucketGSTR3B:      cp.GSTR3BDir,
		naming.BucketITC:         cp.ITCDir,
		naming.BucketSales:       cp.SalesDir,
		naming.BucketVersionRoot: versionDir,
	}
	cp.Folders = []string{versionDir, cp.GSTR3BDir, cp.ITCDir, cp.SalesDir}

	for _, category := range naming.Categories() {
		for _, file := range client.Files[category] {
			destDir := buckets[naming.BucketFor(category)]
			destName := naming.SanitizeFilename(naming.Build(file.Classified))
			cp.Entries = append(cp.Entries, Entry{
				SourcePath: file.Path,
				SourceName: file.Classified.SourceName,
				Category:   category,
				ClientKey:  client.Key,
				DestDir:    destDir,
				DestName:   destName,
				DestPath:   filepath.Join(destDir, destName),
			})
		}
	}
	return cp
}

// bucketFolder keeps the bucket base name verbatim; only the inserted client
// name is sanitized.
func bucketFolder(base, client string, opts Options) string {
	if !opts.IncludeClientName {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, naming.SanitizeFilename(client))
}

func markConflicts(p *Plan) {
	sources := make(map[string][]string)
	for _, cp := range p.Clients {
		for _, entry := range cp.Entries {
			sources[entry.DestPath] = append(sources[entry.DestPath], entry.SourcePath)
		}
	}

	conflicted := make(map[string]struct{})
	for dest, srcs := range sources {
		if len(srcs) > 1 {
			conflicted[dest] = struct{}{}
			sort.Strings(srcs)
			p.Conflicts = append(p.Conflicts, Conflict{DestPath: dest, Sources: srcs})
		}
	}
	sort.Slice(p.Conflicts, func(i, j int) bool {
		return p.Conflicts[i].DestPath < p.Conflicts[j].DestPath
	})

	for ci := range p.Clients {
		entries := p.Clients[ci].Entries
		byDest := make(map[string][]int)
		for ei := range entries {
			dest := entries[ei].DestPath
			if _, ok := conflicted[dest]; ok {
				byDest[dest] = append(byDest[dest], ei)
			}
		}
		for _, indices := range byDest {
			sort.Slice(indices, func(a, b int) bool {
				return entries[indices[a]].SourcePath < entries[indices[b]].SourcePath
			})
			for k, ei := range indices[1:] {
				entries[ei].Conflicted = true
				entries[ei].DestName = ordinalName(entries[ei].DestName, k+1)
				entries[ei].DestPath = filepath.Join(entries[ei].DestDir, entries[ei].DestName)
			}
		}
	}
}

// ordinalName inserts the conflict ordinal before the extension.
func ordinalName(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}
