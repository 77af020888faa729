package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/coastline-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	study_area     TEXT NOT NULL,
	raster_version TEXT NOT NULL,
	vector_version TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	points         INTEGER NOT NULL DEFAULT 0,
	segments       INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at    DATETIME
);

CREATE TABLE IF NOT EXISTS shoreline_points (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	rate_time   REAL,
	sig_time    REAL,
	se_time     REAL,
	outl_time   TEXT,
	sce         REAL,
	nsm         REAL,
	valid_obs   INTEGER NOT NULL,
	valid_span  INTEGER NOT NULL,
	max_year    INTEGER NOT NULL,
	min_year    INTEGER NOT NULL,
	distances   TEXT NOT NULL,
	regressions TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_study_area ON runs(study_area);
CREATE INDEX IF NOT EXISTS idx_shoreline_points_run_id ON shoreline_points(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, studyArea, rasterVersion, vectorVersion string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, study_area, raster_version, vector_version, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, studyArea, rasterVersion, vectorVersion, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:            id,
		StudyArea:     studyArea,
		RasterVersion: rasterVersion,
		VectorVersion: vectorVersion,
		Status:        RunStatusRunning,
		StartedAt:     now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, points, segments int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, points = ?, segments = ?, finished_at = ? WHERE id = ?`,
		string(RunStatusComplete), points, segments, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, study_area, raster_version, vector_version, status, points, segments,
		        COALESCE(error, ''), started_at, COALESCE(finished_at, started_at)
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, study_area, raster_version, vector_version, status, points, segments,
	                 COALESCE(error, ''), started_at, COALESCE(finished_at, started_at)
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.StudyArea != "" {
		query += ` AND study_area = ?`
		args = append(args, filter.StudyArea)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SavePoints(ctx context.Context, runID string, pts []*model.ReferencePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save points")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shoreline_points
		 (id, run_id, x, y, rate_time, sig_time, se_time, outl_time, sce, nsm,
		  valid_obs, valid_span, max_year, min_year, distances, regressions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save points")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range pts {
		reg := p.Regressions["time"]
		distJSON, regJSON, err := encodePoint(p)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), runID, p.X, p.Y,
			nullFloat(reg.Slope), nullFloat(reg.PValue), nullFloat(reg.StdErr), reg.Outliers,
			nullFloat(p.Stats.SCE), nullFloat(p.Stats.NSM),
			p.Stats.ValidObs, p.Stats.ValidSpan, p.Stats.MaxYear, p.Stats.MinYear,
			distJSON, regJSON,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert point")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save points")
}

// encodePoint serializes the distances and regressions of one point.
// NaN values are dropped (distances) or nulled (regressions) since JSON
// cannot represent them.
func encodePoint(p *model.ReferencePoint) (string, string, error) {
	dists := make(map[string]float64, len(p.Distances))
	for y, d := range p.Distances {
		if math.IsNaN(d) {
			continue
		}
		dists[fmt.Sprintf("%d", y)] = d
	}
	distJSON, err := json.Marshal(dists)
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal distances")
	}

	regs := make(map[string]map[string]any, len(p.Regressions))
	for name, r := range p.Regressions {
		regs[name] = map[string]any{
			"slope":     nullFloat(r.Slope),
			"intercept": nullFloat(r.Intercept),
			"pvalue":    nullFloat(r.PValue),
			"stderr":    nullFloat(r.StdErr),
			"outliers":  r.Outliers,
		}
	}
	regJSON, err := json.Marshal(regs)
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal regressions")
	}
	return string(distJSON), string(regJSON), nil
}

// nullFloat maps NaN to NULL so SQLite never sees a NaN bind.
func nullFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var status string
	err := row.Scan(&r.ID, &r.StudyArea, &r.RasterVersion, &r.VectorVersion, &status,
		&r.Points, &r.Segments, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = RunStatus(status)
	return &r, nil
}
