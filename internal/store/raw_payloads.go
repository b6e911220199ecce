package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload is an upstream response body as it was received.
type RawPayload struct {
	ID          int64
	IngestRunID sql.NullInt64
	FetchedAt   time.Time
	Source      string
	Endpoint    string
	LocationID  sql.NullInt64
	Body        []byte
}

// StoreRawPayload keeps a gzip-compressed copy of an upstream response for replay. Bodies are
// keyed by their sha256, so it returns 0 when an identical body is already stored.
func (s *Store) StoreRawPayload(runID *int64, source, endpoint string, locationID *int64, payload []byte) (int64, error) {
	packed, err := pack(payload)
	if err != nil {
		return 0, err
	}
	sum := sha256.Sum256(payload)

	res, err := s.db.Exec(`
		INSERT INTO raw_payloads (ingest_run_id, fetched_unix, source, endpoint, location_id, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, nullID(runID), time.Now().Unix(), source, endpoint, nullID(locationID), packed, hex.EncodeToString(sum[:]))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, nil
	}
	return res.LastInsertId()
}

// GetRawPayload returns a stored payload by ID, or nil if it has been pruned.
func (s *Store) GetRawPayload(id int64) (*RawPayload, error) {
	return s.scanRawPayload(s.db.QueryRow(`SELECT `+rawPayloadColumns+` FROM raw_payloads WHERE id = ?`, id))
}

// LatestRawPayload returns the newest payload from source stored against locationID.
func (s *Store) LatestRawPayload(source string, locationID int64) (*RawPayload, error) {
	return s.scanRawPayload(s.db.QueryRow(`
		SELECT `+rawPayloadColumns+` FROM raw_payloads
		WHERE source = ? AND location_id = ?
		ORDER BY fetched_unix DESC, id DESC
		LIMIT 1
	`, source, locationID))
}

const rawPayloadColumns = `id, ingest_run_id, fetched_unix, source, endpoint, location_id, payload_compressed`

func (s *Store) scanRawPayload(row scanner) (*RawPayload, error) {
	var (
		p       RawPayload
		fetched int64
		packed  []byte
	)
	err := row.Scan(&p.ID, &p.IngestRunID, &fetched, &p.Source, &p.Endpoint, &p.LocationID, &packed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.FetchedAt = time.Unix(fetched, 0).UTC()
	if p.Body, err = unpack(packed); err != nil {
		return nil, fmt.Errorf("raw payload %d: %w", p.ID, err)
	}
	return &p, nil
}

// PruneRawPayloads deletes payloads fetched before cutoff, then the ingest runs that started
// before it. It returns the number of payloads removed.
func (s *Store) PruneRawPayloads(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM raw_payloads WHERE fetched_unix < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune raw payloads: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.Exec(`DELETE FROM ingest_runs WHERE started_unix < ?`, cutoff.Unix()); err != nil {
		return 0, fmt.Errorf("prune ingest runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}

func pack(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	return buf.Bytes(), nil
}

func unpack(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gunzip payload: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
