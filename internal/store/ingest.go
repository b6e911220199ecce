package store

import (
	"database/sql"
	"fmt"
	"time"
)

// IngestRun is the audit row for one upstream fetch.
type IngestRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Source            string // "open-meteo", "ftp"
	Endpoint          string // "v1/forecast", or the FTP path
	LocationID        sql.NullInt64
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	RecordsParsed     sql.NullInt64
	RecordsStored     sql.NullInt64
	ParseErrors       sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// StartIngestRun records the start of a fetch. locationID may be nil for fetches not tied to a place.
func (s *Store) StartIngestRun(source, endpoint string, locationID *int64) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt:  time.Now().UTC(),
		Source:     source,
		Endpoint:   endpoint,
		LocationID: nullID(locationID),
	}

	err := s.db.QueryRow(`
		INSERT INTO ingest_runs (started_unix, source, endpoint, location_id, success)
		VALUES (?, ?, ?, ?, FALSE)
		RETURNING id
	`, run.StartedAt.Unix(), source, endpoint, run.LocationID).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("start ingest run: %w", err)
	}
	return run, nil
}

// CompleteIngestRun stamps the finish time and writes the outcome fields of run.
func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_unix = ?, http_status = ?, response_size_bytes = ?, records_parsed = ?,
			records_stored = ?, parse_errors = ?, success = ?, error_message = ?
		WHERE id = ?
	`, run.FinishedAt.Time.Unix(), run.HTTPStatus, run.ResponseSizeBytes, run.RecordsParsed,
		run.RecordsStored, run.ParseErrors, run.Success, run.ErrorMessage, run.ID)
	if err != nil {
		return fmt.Errorf("complete ingest run %d: %w", run.ID, err)
	}
	return nil
}

// IngestSummary aggregates runs for one source and endpoint.
type IngestSummary struct {
	Source        string
	Endpoint      string
	Runs          int
	Failures      int
	RecordsStored int64
	ParseErrors   int64
	LastSuccess   sql.NullTime
	LastError     sql.NullString
}

// IngestSummaries reports runs started at or after since, one row per source and endpoint.
// LastError is the message of the newest failed run in the window.
func (s *Store) IngestSummaries(since time.Time) ([]IngestSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			r.source,
			r.endpoint,
			COUNT(*),
			SUM(CASE WHEN r.success THEN 0 ELSE 1 END),
			COALESCE(SUM(r.records_stored), 0),
			COALESCE(SUM(r.parse_errors), 0),
			MAX(CASE WHEN r.success THEN r.started_unix END),
			(SELECT e.error_message FROM ingest_runs e
				WHERE e.source = r.source AND e.endpoint = r.endpoint
					AND NOT e.success AND e.started_unix >= ?
				ORDER BY e.started_unix DESC, e.id DESC LIMIT 1)
		FROM ingest_runs r
		WHERE r.started_unix >= ?
		GROUP BY r.source, r.endpoint
		ORDER BY r.source, r.endpoint
	`, since.Unix(), since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestSummary
	for rows.Next() {
		var (
			sum         IngestSummary
			lastSuccess sql.NullInt64
		)
		if err := rows.Scan(&sum.Source, &sum.Endpoint, &sum.Runs, &sum.Failures,
			&sum.RecordsStored, &sum.ParseErrors, &lastSuccess, &sum.LastError); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			sum.LastSuccess = sql.NullTime{Time: time.Unix(lastSuccess.Int64, 0).UTC(), Valid: true}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RecentIngestFailures returns the newest failed runs first.
func (s *Store) RecentIngestFailures(limit int) ([]IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_unix, finished_unix, source, endpoint, location_id,
			http_status, response_size_bytes, records_parsed, records_stored, parse_errors, error_message
		FROM ingest_runs
		WHERE NOT success
		ORDER BY started_unix DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngestRun
	for rows.Next() {
		var (
			r        IngestRun
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Source, &r.Endpoint, &r.LocationID,
			&r.HTTPStatus, &r.ResponseSizeBytes, &r.RecordsParsed, &r.RecordsStored, &r.ParseErrors,
			&r.ErrorMessage); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			r.FinishedAt = sql.NullTime{Time: time.Unix(finished.Int64, 0).UTC(), Valid: true}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
