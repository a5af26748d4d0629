// Package pipeline drives a full organization run: scan, mode resolution,
// planning, placement, report generation, and the summary workbook, in that
// order. Progress is reported through an ordered event stream and the run
// is serialized against other processes with a lock file.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"annualstatement/internal/config"
	"annualstatement/internal/docwriter"
	"annualstatement/internal/ledger"
	"annualstatement/internal/logging"
	"annualstatement/internal/place"
	"annualstatement/internal/plan"
	"annualstatement/internal/preflight"
	"annualstatement/internal/report"
	"annualstatement/internal/scan"
	"annualstatement/internal/services"
	"annualstatement/internal/services/refresh"
	"annualstatement/internal/summary"
)

// Stage names, in execution order.
type Stage string

const (
	StageScan    Stage = "scan"
	StageResolve Stage = "resolve"
	StagePlan    Stage = "plan"
	StagePlace   Stage = "place"
	StageReports Stage = "reports"
	StageSummary Stage = "summary"
)

// Event is one progress tick. Events are strictly ordered within a run.
type Event struct {
	Stage   Stage
	Current int
	Total   int
	Item    string
}

// Options select what a run does.
type Options struct {
	Mode ledger.Mode
	// ClientKeys restricts the run to the named clients. Empty means every
	// client found in the scan.
	ClientKeys []string
	// Events, when set, receives progress events. The caller must drain the
	// channel for the duration of the run.
	Events chan<- Event
}

// ClientOutcome is the per-client result of a run.
type ClientOutcome struct {
	Plan      plan.ClientPlan
	Number    int
	VersionID int64
	Placement place.Result
	Reports   []string
	ReportErr error
	// ClientErr is set when the client's pass aborted before completing,
	// e.g. its folders could not be created.
	ClientErr error
	Finalized bool
}

// RunResult is everything a run produced.
type RunResult struct {
	RunID       string
	Stamp       string
	RootDir     string
	SummaryPath string
	Scan        *scan.Result
	Clients     []ClientOutcome
	Failed      int
}

// Clean reports whether every client placed without failures.
func (r *RunResult) Clean() bool {
	return r.Failed == 0
}

// Manager wires the run stages together.
type Manager struct {
	cfg       *config.Config
	store     *ledger.Store
	logger    *slog.Logger
	scanner   *scan.Scanner
	placer    *place.Placer
	writer    *docwriter.Writer
	generator *report.Generator
	summarize *summary.Aggregator
	lock      *flock.Flock
	now       func() time.Time
}

// New constructs a Manager with initialized stage dependencies.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, refresher refresh.Service) (*Manager, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("pipeline requires config and ledger store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	writer := docwriter.New(logger)
	lockPath := filepath.Join(cfg.Paths.LedgerDir, "annualstatement.lock")
	return &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		scanner:   scan.NewScanner(logger),
		placer:    place.New(logger),
		writer:    writer,
		generator: report.NewGenerator(logger, writer, refresher, cfg.Reports.RefreshConnections),
		summarize: summary.NewAggregator(logger, writer),
		lock:      flock.New(lockPath),
		now:       time.Now,
	}, nil
}

// Run executes a full organization pass. It is synchronous; callers wanting
// a responsive front end run it on a goroutine and consume Options.Events.
func (m *Manager) Run(ctx context.Context, opts Options) (*RunResult, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)

	locked, err := m.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock", m.lock.Path(), err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "lock",
			"another organization run is in progress", nil)
	}
	defer func() { _ = m.lock.Unlock() }()

	if _, err := preflight.Verify(ctx, m.cfg); err != nil {
		return nil, err
	}

	now := m.now()
	result := &RunResult{RunID: runID, Stamp: plan.Stamp(now)}

	// Scan.
	m.scanner.Progress = func(current, total int, name string) {
		m.emit(ctx, opts, Event{Stage: StageScan, Current: current, Total: total, Item: name})
	}
	scanned, err := m.scanner.Scan(ctx, m.cfg.Paths.SourceDir)
	if err != nil {
		return nil, err
	}
	result.Scan = scanned

	clients, err := selectClients(scanned, opts.ClientKeys)
	if err != nil {
		return nil, err
	}

	// Resolve every client before any disk mutation so mode violations
	// abort with zero files touched.
	resolutions := make(map[string]ledger.Resolution, len(clients))
	for i, client := range clients {
		m.emit(ctx, opts, Event{Stage: StageResolve, Current: i + 1, Total: len(clients), Item: client.Key})
		if err := m.store.Acquire(client.Key, runID); err != nil {
			return nil, err
		}
		defer m.store.Release(client.Key, runID)

		res, err := m.store.ResolveMode(ctx, client.Key, opts.Mode)
		if err != nil {
			return nil, err
		}
		resolutions[client.Key] = res
	}

	// Plan.
	requests := make([]plan.Request, 0, len(clients))
	for _, client := range clients {
		req := plan.Request{Client: client, Number: resolutions[client.Key].Number}
		if resumed := resolutions[client.Key].Resumed; resumed != nil {
			req.VersionDirRel = resumed.FolderName
		}
		requests = append(requests, req)
	}
	m.emit(ctx, opts, Event{Stage: StagePlan, Current: 1, Total: 1})
	p := plan.Build(m.cfg.Paths.TargetDir, now, requests, plan.Options{
		IncludeClientName:  m.cfg.Organizer.IncludeClientName,
		ClientKeyMaxLength: m.cfg.Organizer.ClientKeyMaxLength,
	})
	result.RootDir = summaryRoot(p, resolutions)

	// Place, report, and record per client. One client's folder or ledger
	// trouble does not stop the others; only configuration errors and
	// cancellation abort the run.
	for _, cp := range p.Clients {
		outcome, err := m.runClient(ctx, opts, cp, resolutions[cp.Key], runID)
		if err != nil {
			if services.IsFatal(err) || ctx.Err() != nil {
				return result, err
			}
			logger.Error("client run failed",
				logging.String("client", cp.Key),
				logging.Error(err))
			outcome.ClientErr = err
			result.Clients = append(result.Clients, outcome)
			result.Failed++
			continue
		}
		result.Clients = append(result.Clients, outcome)
		result.Failed += outcome.Placement.Failed
	}

	// Summary.
	m.emit(ctx, opts, Event{Stage: StageSummary, Current: 1, Total: 1})
	summaryPath, err := m.summarize.Write(ctx, m.buildSummary(result, opts.Mode))
	if err != nil {
		logger.Error("summary generation failed", logging.Error(err))
	} else {
		result.SummaryPath = summaryPath
	}

	if err := m.store.SaveLastUsed(ctx, ledger.LastUsedPaths{
		SourceDir:     m.cfg.Paths.SourceDir,
		TargetDir:     m.cfg.Paths.TargetDir,
		ITCTemplate:   m.cfg.Paths.ITCTemplate,
		SalesTemplate: m.cfg.Paths.SalesTemplate,
	}); err != nil {
		logger.Warn("saving session paths failed", logging.Error(err))
	}

	logger.Info("run complete",
		logging.Int("clients", len(result.Clients)),
		logging.Int("failures", result.Failed),
		logging.String("summary", result.SummaryPath))
	return result, nil
}

func (m *Manager) runClient(ctx context.Context, opts Options, cp plan.ClientPlan, res ledger.Resolution, runID string) (ClientOutcome, error) {
	ctx = services.WithClientKey(ctx, cp.Key)
	logger := logging.WithContext(ctx, m.logger)
	outcome := ClientOutcome{Plan: cp, Number: res.Number}

	versionID := int64(0)
	if res.Resumed != nil {
		versionID = res.Resumed.ID
	} else {
		rel, err := filepath.Rel(m.cfg.Paths.TargetDir, cp.VersionDir)
		if err != nil {
			rel = cp.VersionDir
		}
		begun, err := m.store.BeginVersion(ctx, ledger.Version{
			ClientKey:    cp.Key,
			Client:       cp.Client,
			Jurisdiction: cp.Jurisdiction,
			Number:       res.Number,
			FolderName:   rel,
			RunID:        runID,
		})
		if err != nil {
			return outcome, services.Wrap(services.ErrLedger, "pipeline", "begin_version", cp.Key, err)
		}
		versionID = begun.ID
	}
	outcome.VersionID = versionID

	m.placer.Progress = func(current, total int, item string) {
		m.emit(ctx, opts, Event{Stage: StagePlace, Current: current, Total: total, Item: item})
	}
	placement, err := m.placer.Execute(services.WithStage(ctx, string(StagePlace)), cp)
	outcome.Placement = placement
	if err != nil {
		return outcome, err
	}

	// Reports.
	in := report.Input{Plan: cp, Placement: placement, Stamp: plan.Stamp(m.now())}
	kinds := []struct {
		kind     report.Kind
		template string
		mapping  config.TemplateMapping
	}{
		{report.KindITC, m.cfg.Paths.ITCTemplate, m.cfg.Templates.ITC},
		{report.KindSales, m.cfg.Paths.SalesTemplate, m.cfg.Templates.Sales},
	}
	reportCtx := services.WithStage(ctx, string(StageReports))
	for i, k := range kinds {
		m.emit(ctx, opts, Event{Stage: StageReports, Current: i + 1, Total: len(kinds), Item: cp.Key})
		path, err := m.generator.Generate(reportCtx, k.kind, k.template, k.mapping, in)
		if err != nil {
			outcome.ReportErr = err
			logger.Error("report generation failed",
				logging.String("kind", string(k.kind)),
				logging.String("client", cp.Key),
				logging.Error(err))
			continue
		}
		outcome.Reports = append(outcome.Reports, path)
	}

	// A version is complete only when every file landed; report trouble is
	// surfaced separately and does not block completion.
	if placement.Clean() {
		if err := m.store.FinalizeVersion(ctx, versionID); err != nil {
			return outcome, services.Wrap(services.ErrLedger, "pipeline", "finalize_version", cp.Key, err)
		}
		outcome.Finalized = true
	}
	return outcome, nil
}

func (m *Manager) buildSummary(result *RunResult, mode ledger.Mode) summary.Data {
	data := summary.Data{
		Stamp:             result.Stamp,
		Mode:              string(mode),
		SourceDir:         m.cfg.Paths.SourceDir,
		TargetRoot:        result.RootDir,
		IncludeClientName: m.cfg.Organizer.IncludeClientName,
		TotalClients:      len(result.Clients),
		Variations:        result.Scan.NonConforming,
	}

	for _, outcome := range result.Clients {
		scanned := result.Scan.Client(outcome.Plan.Key)
		status := summary.ClientStatus{
			Client:       outcome.Plan.Client,
			Jurisdiction: outcome.Plan.Jurisdiction,
			Number:       outcome.Number,
			Placed:       outcome.Placement.Placed,
			Skipped:      outcome.Placement.Skipped,
			Failed:       outcome.Placement.Failed,
		}
		if scanned != nil {
			status.Complete = scanned.Complete
			status.Missing = scanned.Missing
			status.FileCount = scanned.FileCount()
		}
		data.Clients = append(data.Clients, status)

		if outcome.Placement.Failed == 0 && outcome.ClientErr == nil {
			data.SuccessfulClients++
		} else {
			data.FailedClients++
		}
		data.ReportsGenerated += len(outcome.Reports)
		if outcome.ReportErr != nil {
			data.ReportErrors++
		}

		for _, fr := range outcome.Placement.Files {
			data.TotalFiles++
			data.Mappings = append(data.Mappings, summary.FileMapping{
				SourceName:  fr.Entry.SourceName,
				Client:      outcome.Plan.Client,
				Category:    fr.Entry.Category,
				Destination: fr.FinalPath,
				Outcome:     fr.Outcome,
			})
			if fr.Outcome == place.OutcomeFailed {
				data.Errors = append(data.Errors, summary.ErrorRow{
					Entity:      fr.Entry.SourceName,
					Destination: fr.FinalPath,
					Reason:      "PLACEMENT_FAILED",
				})
			}
			if fr.Collision {
				data.Errors = append(data.Errors, summary.ErrorRow{
					Entity:      fr.Entry.SourceName,
					Destination: fr.FinalPath,
					Reason:      "DESTINATION_COLLISION",
				})
			}
		}
		if outcome.ReportErr != nil {
			data.Errors = append(data.Errors, summary.ErrorRow{
				Entity:      outcome.Plan.Key,
				Destination: outcome.Plan.VersionDir,
				Reason:      "REPORT_WRITE_FAILED",
			})
		}
		if outcome.ClientErr != nil {
			data.Errors = append(data.Errors, summary.ErrorRow{
				Entity:      outcome.Plan.Key,
				Destination: outcome.Plan.VersionDir,
				Reason:      "CLIENT_RUN_FAILED",
			})
		}
	}
	return data
}

// emit delivers an event in order, giving up only on cancellation.
func (m *Manager) emit(ctx context.Context, opts Options, event Event) {
	if opts.Events == nil {
		return
	}
	select {
	case opts.Events <- event:
	case <-ctx.Done():
	}
}

func selectClients(scanned *scan.Result, keys []string) ([]*scan.Client, error) {
	if len(keys) == 0 {
		return scanned.Clients, nil
	}
	clients := make([]*scan.Client, 0, len(keys))
	for _, key := range keys {
		client := scanned.Client(key)
		if client == nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "select_clients",
				fmt.Sprintf("client %q not present in the source folder", key), nil)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// summaryRoot picks where the summary workbook lands. When every client
// resumes into a recorded folder the freshly minted root was never used, so
// the summary joins the resumed tree instead.
func summaryRoot(p *plan.Plan, resolutions map[string]ledger.Resolution) string {
	allResumed := len(p.Clients) > 0
	for _, cp := range p.Clients {
		if res, ok := resolutions[cp.Key]; !ok || res.Resumed == nil {
			allResumed = false
			break
		}
	}
	if allResumed {
		return filepath.Dir(filepath.Dir(p.Clients[0].VersionDir))
	}
	return p.RootDir
}
