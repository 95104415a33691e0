package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"threatlens/internal/domain"
	"threatlens/internal/ports"
)

var (
	_ ports.ScanRepository   = (*DB)(nil)
	_ ports.ResultRepository = (*DB)(nil)
	_ ports.JobRepository    = (*DB)(nil)
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ScanJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id::text, scan_id::text FROM scan_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.ScanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE scan_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
        UPDATE scan_requests SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
    `, job.ScanID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) UpdateScanProgress(ctx context.Context, scanID string, progress float64) error {
	progress = min(max(progress, 0), 1)
	_, err := db.Pool.Exec(ctx, `UPDATE scan_requests SET progress=$2 WHERE id=$1`, scanID, progress)
	return err
}

// MarkCompleted finishes the job and its request atomically.
func (db *DB) MarkCompleted(ctx context.Context, jobID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var scanID string
	if err = tx.QueryRow(ctx, `SELECT scan_id::text FROM scan_jobs WHERE id=$1`, jobID).Scan(&scanID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='completed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_requests SET status='completed', progress=1, finished_at=now() WHERE id=$1`, scanID); err != nil {
		return err
	}
	return nil
}

// MarkFailed records reason on both the job and its request.
func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var scanID string
	if err = tx.QueryRow(ctx, `SELECT scan_id::text FROM scan_jobs WHERE id=$1`, jobID).Scan(&scanID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='failed', reason=$2, finished_at=now() WHERE id=$1`, jobID, reason); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_requests SET status='failed', error=$2, finished_at=now() WHERE id=$1`, scanID, reason); err != nil {
		return err
	}
	return nil
}

// StartJobForScan marks the job for a specific scan as running and returns the job id.
func (db *DB) StartJobForScan(ctx context.Context, scanID string) (jobID string, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	// a worker may already hold it
	err = tx.QueryRow(ctx, `
        SELECT id::text FROM scan_jobs
        WHERE scan_id = $1 AND status = 'queued'
        FOR UPDATE SKIP LOCKED
    `, scanID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_requests SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1`, scanID); err != nil {
		return "", err
	}
	return jobID, nil
}
