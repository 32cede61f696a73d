package queue

import (
	"context"
	"database/sql"
)

// AddMediaRefs attaches media references to an existing job inside one
// transaction, so a job never ends up with a partial attachment set.
func (s *Store) AddMediaRefs(ctx context.Context, refs ...MediaRef) error {
	if len(refs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin media tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ref := range refs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO media_refs (id, job_id, blob_handle, url, size_bytes) VALUES (?, ?, ?, ?, ?)`,
			ref.ID,
			ref.JobID,
			nullableString(ref.BlobHandle),
			nullableString(ref.URL),
			ref.SizeBytes,
		); err != nil {
			return storeErr("insert media ref", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit media refs", err)
	}
	return nil
}

// MediaRefsByJob returns the media references owned by a job.
func (s *Store) MediaRefsByJob(ctx context.Context, jobID string) ([]MediaRef, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, blob_handle, url, size_bytes FROM media_refs WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, storeErr("list media refs", err)
	}
	defer rows.Close()

	var refs []MediaRef
	for rows.Next() {
		var (
			ref        MediaRef
			blobHandle sql.NullString
			url        sql.NullString
		)
		if err := rows.Scan(&ref.ID, &ref.JobID, &blobHandle, &url, &ref.SizeBytes); err != nil {
			return nil, storeErr("scan media ref", err)
		}
		ref.BlobHandle = blobHandle.String
		ref.URL = url.String
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate media refs", err)
	}
	return refs, nil
}
