package batch

import (
	"database/sql"
	"time"

	"github.com/hollandm/slurmherd/errors"
)

// RunStore handles persistence of runs and their submissions
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a run store
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// RunSummary is the stored view of one run
type RunSummary struct {
	RunID       string     `json:"run_id"`
	SpecDir     string     `json:"spec_dir"`
	State       RunState   `json:"state"`
	SpecsTotal  int        `json:"specs_total"`
	Submitted   int        `json:"submitted"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	ParseSkips  int        `json:"parse_skips"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateRun inserts a new run record
func (s *RunStore) CreateRun(runID, specDir string) error {
	query := `
		INSERT INTO runs (id, spec_dir, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now()
	_, err := s.db.Exec(query, runID, specDir, RunIdle, now, now)
	if err != nil {
		return errors.Wrap(err, "failed to create run")
	}

	return nil
}

// UpdateRunState transitions the run's stored state
func (s *RunStore) UpdateRunState(runID string, state RunState) error {
	query := `UPDATE runs SET state = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.Exec(query, state, time.Now(), runID)
	if err != nil {
		return errors.Wrap(err, "failed to update run state")
	}

	return requireRunRow(result, runID)
}

// StartRun marks the run loading and records its start time
func (s *RunStore) StartRun(runID string, startedAt time.Time) error {
	query := `UPDATE runs SET state = ?, started_at = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.Exec(query, RunLoading, startedAt, time.Now(), runID)
	if err != nil {
		return errors.Wrap(err, "failed to start run")
	}

	return requireRunRow(result, runID)
}

// FinalizeRun stores the terminal counts and completion time
func (s *RunStore) FinalizeRun(runID string, counts Counts, parseSkips int, completedAt time.Time) error {
	query := `
		UPDATE runs
		SET state = ?,
		    specs_total = ?,
		    submitted = ?,
		    failed = ?,
		    skipped = ?,
		    parse_skipped = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		RunCompleted,
		counts.Total,
		counts.Submitted,
		counts.Failed,
		counts.Skipped,
		parseSkips,
		completedAt,
		time.Now(),
		runID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to finalize run")
	}

	return requireRunRow(result, runID)
}

// RecordSubmission inserts one submission outcome
func (s *RunStore) RecordSubmission(runID string, res SubmissionResult) error {
	query := `
		INSERT INTO submissions (
			run_id, seq, spec_name, spec_path, partition,
			scheduler_job_id, status, error, submitted_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	jobID := sql.NullString{String: res.JobID, Valid: res.JobID != ""}
	errMsg := sql.NullString{String: res.Error, Valid: res.Error != ""}
	partition := sql.NullString{String: res.Partition, Valid: res.Partition != ""}
	var submittedAt sql.NullTime
	if res.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *res.SubmittedAt, Valid: true}
	}

	_, err := s.db.Exec(query,
		runID,
		res.Seq,
		res.SpecName,
		res.SpecPath,
		partition,
		jobID,
		res.Status,
		errMsg,
		submittedAt,
		time.Now(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to record submission")
	}

	return nil
}

// DeleteRun removes a run record. Used to discard runs that abort
// before any submission is attempted.
func (s *RunStore) DeleteRun(runID string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := s.db.Exec(query, runID)
	if err != nil {
		return errors.Wrap(err, "failed to delete run")
	}

	return requireRunRow(result, runID)
}

// GetRun retrieves a run summary by ID
func (s *RunStore) GetRun(runID string) (*RunSummary, error) {
	query := `
		SELECT id, spec_dir, state, specs_total, submitted, failed,
		       skipped, parse_skipped, started_at, completed_at, created_at
		FROM runs WHERE id = ?
	`

	var run RunSummary
	var startedAt, completedAt sql.NullTime

	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.SpecDir,
		&run.State,
		&run.SpecsTotal,
		&run.Submitted,
		&run.Failed,
		&run.Skipped,
		&run.ParseSkips,
		&startedAt,
		&completedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrRunNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}

	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// GetSubmissions returns the run's submission results in sequence order
func (s *RunStore) GetSubmissions(runID string) ([]SubmissionResult, error) {
	query := `
		SELECT seq, spec_name, spec_path, partition,
		       scheduler_job_id, status, error, submitted_at
		FROM submissions
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list submissions")
	}
	defer rows.Close()

	var results []SubmissionResult
	for rows.Next() {
		var res SubmissionResult
		var partition, jobID, errMsg sql.NullString
		var submittedAt sql.NullTime

		if err := rows.Scan(
			&res.Seq,
			&res.SpecName,
			&res.SpecPath,
			&partition,
			&jobID,
			&res.Status,
			&errMsg,
			&submittedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan submission")
		}

		res.Partition = partition.String
		res.JobID = jobID.String
		res.Error = errMsg.String
		if submittedAt.Valid {
			res.SubmittedAt = &submittedAt.Time
		}

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating submissions")
	}

	return results, nil
}

// LatestRunID returns the ID of the most recently created run
func (s *RunStore) LatestRunID() (string, error) {
	query := `SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`

	var runID string
	err := s.db.QueryRow(query).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrap(errors.ErrRunNotFound, "no runs recorded")
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to get latest run")
	}

	return runID, nil
}

// ListRuns returns run summaries, newest first
func (s *RunStore) ListRuns(limit int) ([]*RunSummary, error) {
	query := `
		SELECT id, spec_dir, state, specs_total, submitted, failed,
		       skipped, parse_skipped, started_at, completed_at, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		var run RunSummary
		var startedAt, completedAt sql.NullTime

		if err := rows.Scan(
			&run.RunID,
			&run.SpecDir,
			&run.State,
			&run.SpecsTotal,
			&run.Submitted,
			&run.Failed,
			&run.Skipped,
			&run.ParseSkips,
			&startedAt,
			&completedAt,
			&run.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}

		if startedAt.Valid {
			run.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating runs")
	}

	return runs, nil
}

// PruneRuns removes completed runs older than the retention window.
// Submissions follow through the foreign key cascade.
func (s *RunStore) PruneRuns(retainDays int) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retainDays)

	query := `DELETE FROM runs WHERE state = ? AND created_at < ?`

	result, err := s.db.Exec(query, RunCompleted, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune runs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

// requireRunRow converts a zero-row update into ErrRunNotFound
func requireRunRow(result sql.Result, runID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrRunNotFound, "run %s", runID)
	}
	return nil
}
