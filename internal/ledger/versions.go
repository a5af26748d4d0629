package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"annualstatement/internal/services"
)

// Mode selects how a run relates to a client's prior versions.
type Mode string

const (
	ModeFresh  Mode = "fresh"
	ModeRerun  Mode = "rerun"
	ModeResume Mode = "resume"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeFresh, ModeRerun, ModeResume:
		return Mode(value), nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "ledger", "parse_mode",
			fmt.Sprintf("unknown mode %q (expected fresh, rerun, or resume)", value), nil)
	}
}

// Version is one recorded organization attempt for a client.
type Version struct {
	ID           int64
	ClientKey    string
	Client       string
	Jurisdiction string
	Number       int
	FolderName   string
	RunID        string
	Finalized    bool
	CreatedAt    time.Time
	FinalizedAt  *time.Time
}

// Resolution carries the outcome of ResolveMode: the version number the run
// should use and, for resume, the unfinalized version being continued.
type Resolution struct {
	Mode    Mode
	Number  int
	Resumed *Version
}

// ResolveMode applies the fresh/rerun/resume rules for one client. Mode
// violations surface as configuration errors rather than silently changing
// the requested behavior.
func (s *Store) ResolveMode(ctx context.Context, clientKey string, mode Mode) (Resolution, error) {
	ctx = ensureContext(ctx)

	maxNumber, err := s.maxVersionNumber(ctx, clientKey)
	if err != nil {
		return Resolution{}, services.Wrap(services.ErrLedger, "ledger", "resolve_mode", "reading version history", err)
	}

	switch mode {
	case ModeFresh:
		return Resolution{Mode: mode, Number: maxNumber + 1}, nil
	case ModeRerun:
		if maxNumber == 0 {
			return Resolution{}, services.Wrap(services.ErrConfiguration, "ledger", "resolve_mode",
				fmt.Sprintf("re-run requested for %s but no prior version exists", clientKey), nil)
		}
		return Resolution{Mode: mode, Number: maxNumber + 1}, nil
	case ModeResume:
		resumed, err := s.latestUnfinalized(ctx, clientKey)
		if err != nil {
			return Resolution{}, services.Wrap(services.ErrLedger, "ledger", "resolve_mode", "reading unfinalized versions", err)
		}
		if resumed == nil {
			return Resolution{}, services.Wrap(services.ErrConfiguration, "ledger", "resolve_mode",
				fmt.Sprintf("resume requested for %s but no incomplete version exists", clientKey), nil)
		}
		return Resolution{Mode: mode, Number: resumed.Number, Resumed: resumed}, nil
	default:
		return Resolution{}, services.Wrap(services.ErrConfiguration, "ledger", "resolve_mode",
			fmt.Sprintf("unknown mode %q", mode), nil)
	}
}

// BeginVersion records a new unfinalized version row and returns it.
func (s *Store) BeginVersion(ctx context.Context, v Version) (*Version, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO versions (
            client_key, client, jurisdiction, number, folder_name,
            run_id, finalized, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		v.ClientKey, v.Client, v.Jurisdiction, v.Number, v.FolderName,
		v.RunID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.VersionByID(ctx, id)
}

// FinalizeVersion marks a version as complete. Callers only finalize when
// every planned file for the version landed without failures.
func (s *Store) FinalizeVersion(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE versions SET finalized = 1, finalized_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("finalize version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finalize version: no version with id %d", id)
	}
	return nil
}

// VersionByID loads a single version row.
func (s *Store) VersionByID(ctx context.Context, id int64) (*Version, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, selectVersionColumns+` WHERE id = ?`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no version with id %d", id)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// VersionsForClient returns a client's versions ordered oldest first.
func (s *Store) VersionsForClient(ctx context.Context, clientKey string) ([]Version, error) {
	return s.queryVersions(ctx, selectVersionColumns+` WHERE client_key = ? ORDER BY number`, clientKey)
}

// AllVersions returns every recorded version ordered by client then number.
func (s *Store) AllVersions(ctx context.Context) ([]Version, error) {
	return s.queryVersions(ctx, selectVersionColumns+` ORDER BY client_key, number`)
}

const selectVersionColumns = `SELECT id, client_key, client, jurisdiction, number,
    folder_name, run_id, finalized, created_at, finalized_at FROM versions`

func (s *Store) queryVersions(ctx context.Context, query string, args ...any) ([]Version, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func (s *Store) maxVersionNumber(ctx context.Context, clientKey string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(number) FROM versions WHERE client_key = ?`, clientKey,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (s *Store) latestUnfinalized(ctx context.Context, clientKey string) (*Version, error) {
	row := s.db.QueryRowContext(ctx,
		selectVersionColumns+` WHERE client_key = ? AND finalized = 0 ORDER BY number DESC LIMIT 1`,
		clientKey,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*Version, error) {
	var (
		v           Version
		finalized   int
		createdAt   string
		finalizedAt sql.NullString
	)
	if err := row.Scan(&v.ID, &v.ClientKey, &v.Client, &v.Jurisdiction, &v.Number,
		&v.FolderName, &v.RunID, &finalized, &createdAt, &finalizedAt); err != nil {
		return nil, err
	}
	v.Finalized = finalized != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		v.CreatedAt = ts
	}
	if finalizedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finalizedAt.String); err == nil {
			v.FinalizedAt = &ts
		}
	}
	return &v, nil
}
