package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gardenlog/internal/config"
)

// Store manages job and media-ref persistence backed by SQLite. Writes are
// durable before the triggering call returns, so the queue survives a crash
// between "added" and "synced".
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir(), "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Put inserts a new job. ID, ClientWorkID, and CreatedAt must already be
// assigned; UpdatedAt is stamped here.
func (s *Store) Put(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id is empty")
	}
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, owner_address, kind, payload_json, client_work_id,
            created_at, updated_at, synced, attempts, last_error, meta_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.OwnerAddress,
		string(job.Kind),
		string(job.Payload),
		job.ClientWorkID,
		job.CreatedAt.Format(storedTimeLayout),
		job.UpdatedAt.Format(storedTimeLayout),
		boolToInt(job.Synced),
		job.Attempts,
		nullableString(job.LastError),
		nullableString(job.MetaJSON),
	)
	if err != nil {
		return storeErr("insert job", err)
	}
	return nil
}

// Get fetches a job by identifier. Returns nil when the job does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get job", err)
	}
	return job, nil
}

// FindByClientWorkID returns the job carrying the given correlation id, or
// nil when no such job exists.
func (s *Store) FindByClientWorkID(ctx context.Context, clientWorkID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE client_work_id = ? LIMIT 1`,
		clientWorkID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find by client work id", err)
	}
	return job, nil
}

// List returns jobs matching the filter ordered oldest-first. The kind and
// synced predicates hit the (kind, synced) index so large queues are never
// scanned in full.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var (
		clauses []string
		args    []any
	)
	if filter.Owner != "" {
		clauses = append(clauses, "owner_address = ?")
		args = append(args, filter.Owner)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Synced != nil {
		clauses = append(clauses, "synced = ?")
		args = append(args, boolToInt(*filter.Synced))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storeErr("scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate jobs", err)
	}
	return jobs, nil
}

// Unsynced returns every unsynced job oldest-first, the drain order used by
// the flush engine.
func (s *Store) Unsynced(ctx context.Context) ([]*Job, error) {
	return s.List(ctx, Filter{Synced: SyncedFilter(false)})
}

// MarkSynced flags a job as having a confirmed remote counterpart.
func (s *Store) MarkSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET synced = 1, last_error = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(storedTimeLayout),
		id,
	)
	if err != nil {
		return storeErr("mark synced", err)
	}
	return requireRow(res, id)
}

// RecordFailure increments the attempt counter and stores the submission
// error. Attempts never decreases.
func (s *Store) RecordFailure(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		message,
		time.Now().UTC().Format(storedTimeLayout),
		id,
	)
	if err != nil {
		return storeErr("record failure", err)
	}
	return requireRow(res, id)
}

// ResetRetry clears failure bookkeeping so capped jobs re-enter automatic
// flush cycles. With no ids, every unsynced job carrying an error is reset.
func (s *Store) ResetRetry(ctx context.Context, ids ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(storedTimeLayout)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET attempts = 0, last_error = NULL, updated_at = ?
             WHERE synced = 0 AND last_error IS NOT NULL`,
			timestamp,
		)
		if err != nil {
			return 0, storeErr("reset retry", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET attempts = 0, last_error = NULL, updated_at = ?
         WHERE synced = 0 AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, storeErr("reset selected retries", err)
	}
	return res.RowsAffected()
}

// ReplacePayload rewrites a job's payload and resets its submission
// bookkeeping, used when conflict resolution supplies replacement data.
func (s *Store) ReplacePayload(ctx context.Context, id string, payload []byte) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET payload_json = ?, synced = 0, attempts = 0, last_error = NULL, updated_at = ?
         WHERE id = ?`,
		string(payload),
		time.Now().UTC().Format(storedTimeLayout),
		id,
	)
	if err != nil {
		return storeErr("replace payload", err)
	}
	return requireRow(res, id)
}

// Delete removes a job; its media refs cascade. Reports whether a row was
// actually removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, storeErr("delete job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("rows affected", err)
	}
	return affected > 0, nil
}

// Stats aggregates per-owner queue counts in SQL. retryCap decides when an
// errored job counts as failed rather than pending.
func (s *Store) Stats(ctx context.Context, owner string, retryCap int) (Stats, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
            COUNT(1),
            SUM(CASE WHEN synced = 0 AND NOT (last_error IS NOT NULL AND attempts >= ?) THEN 1 ELSE 0 END),
            SUM(CASE WHEN synced = 0 AND last_error IS NOT NULL AND attempts >= ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN synced = 1 THEN 1 ELSE 0 END)
        FROM jobs WHERE owner_address = ?`,
		retryCap,
		retryCap,
		owner,
	)

	var (
		total   int
		pending sql.NullInt64
		failed  sql.NullInt64
		synced  sql.NullInt64
	)
	if err := row.Scan(&total, &pending, &failed, &synced); err != nil {
		return Stats{}, storeErr("queue stats", err)
	}
	return Stats{
		Total:   total,
		Pending: int(pending.Int64),
		Failed:  int(failed.Int64),
		Synced:  int(synced.Int64),
	}, nil
}

// Clear removes all jobs (media refs cascade).
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, storeErr("clear queue", err)
	}
	return res.RowsAffected()
}

// ClearSynced removes only jobs that already have a confirmed remote
// counterpart.
func (s *Store) ClearSynced(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE synced = 1`)
	if err != nil {
		return 0, storeErr("clear synced", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, owner_address, kind, payload_json, client_work_id, created_at, updated_at, synced, attempts, last_error, meta_json"

// storedTimeLayout is fixed-width so lexicographic ordering on the stored
// strings matches chronological order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		owner        string
		kindStr      string
		payload      string
		clientWorkID string
		createdRaw   string
		updatedRaw   string
		synced       int
		attempts     int
		lastError    sql.NullString
		metaJSON     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&owner,
		&kindStr,
		&payload,
		&clientWorkID,
		&createdRaw,
		&updatedRaw,
		&synced,
		&attempts,
		&lastError,
		&metaJSON,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		OwnerAddress: owner,
		Kind:         Kind(kindStr),
		Payload:      []byte(payload),
		ClientWorkID: clientWorkID,
		Synced:       synced != 0,
		Attempts:     attempts,
		LastError:    lastError.String,
		MetaJSON:     metaJSON.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
