package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"threatlens/internal/domain"
)

// ScanRepository

func (db *DB) Create(ctx context.Context, req domain.ScanRequest) (string, error) {
	var scanID string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO scan_requests (subject_type, target, payload, status, progress)
        VALUES ($1, $2, $3, 'queued', 0)
        RETURNING id::text
    `, string(req.SubjectType), req.Target, req.Payload).Scan(&scanID)
	if err != nil {
		return "", err
	}
	// create job row
	_, err = db.Pool.Exec(ctx, `INSERT INTO scan_jobs (scan_id) VALUES ($1)`, scanID)
	return scanID, err
}

func (db *DB) Get(ctx context.Context, scanID string) (domain.ScanRequest, error) {
	if !validID(scanID) {
		return domain.ScanRequest{}, domain.ErrNotFound
	}
	var (
		req      domain.ScanRequest
		subject  string
		status   string
		errText  *string
		resultID *string
	)
	err := db.Pool.QueryRow(ctx, `
        SELECT id::text, subject_type, target, payload, status, progress, error, result_id::text, created_at, finished_at
        FROM scan_requests WHERE id = $1
    `, scanID).Scan(&req.ID, &subject, &req.Target, &req.Payload, &status, &req.Progress, &errText, &resultID, &req.CreatedAt, &req.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return req, domain.ErrNotFound
	}
	if err != nil {
		return req, err
	}
	req.SubjectType = domain.SubjectType(subject)
	req.Status = domain.RequestStatus(status)
	req.ResultID = resultID
	if errText != nil {
		req.Error = *errText
	}
	return req, nil
}

// ResultRepository

// SaveResult writes the history row, its detail rows and the optional ML row,
// and links the result to its request, in one transaction.
func (db *DB) SaveResult(ctx context.Context, res domain.ScanResult) (err error) {
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

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

	var requestID *string
	if res.RequestID != "" {
		requestID = &res.RequestID
	}
	if _, err = tx.Exec(ctx, `
        INSERT INTO scan_history (id, request_id, subject_type, target, scanned_at, status, risk_score, warning,
                                  harmless, malicious, suspicious, undetected, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, res.ID, requestID, string(res.SubjectType), res.Target, res.Timestamp, string(res.Verdict), res.RiskScore, res.Warning,
		res.Stats.Harmless, res.Stats.Malicious, res.Stats.Suspicious, res.Stats.Undetected, meta); err != nil {
		return err
	}
	if requestID != nil {
		tag, uErr := tx.Exec(ctx, `UPDATE scan_requests SET result_id=$2 WHERE id=$1`, *requestID, res.ID)
		if uErr != nil {
			return uErr
		}
		if tag.RowsAffected() == 0 {
			err = fmt.Errorf("request %s: %w", *requestID, domain.ErrNotFound)
			return err
		}
	}

	batch := &pgx.Batch{}
	for i, d := range res.Details {
		batch.Queue(`
            INSERT INTO detection_details (scan_id, position, source, category, result, method, engine_update)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, res.ID, i, d.Source, d.Category, d.Result, d.Method, d.EngineUpdate)
	}
	if res.ML != nil {
		factors, mErr := json.Marshal(res.ML.Factors)
		if mErr != nil {
			return fmt.Errorf("encode ml factors: %w", mErr)
		}
		batch.Queue(`INSERT INTO ml_analyses (scan_id, score, status, factors) VALUES ($1, $2, $3, $4)`,
			res.ID, res.ML.Score, res.ML.Status, factors)
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return nil
}

const historyColumns = `id::text, COALESCE(request_id::text, ''), subject_type, target, scanned_at, status, risk_score, warning,
        harmless, malicious, suspicious, undetected, metadata`

func scanHistory(row pgx.Row) (domain.ScanResult, error) {
	var (
		res     domain.ScanResult
		subject string
		verdict string
		meta    []byte
	)
	err := row.Scan(&res.ID, &res.RequestID, &subject, &res.Target, &res.Timestamp, &verdict, &res.RiskScore, &res.Warning,
		&res.Stats.Harmless, &res.Stats.Malicious, &res.Stats.Suspicious, &res.Stats.Undetected, &meta)
	if err != nil {
		return res, err
	}
	res.SubjectType = domain.SubjectType(subject)
	res.Verdict = domain.Verdict(verdict)
	if err := json.Unmarshal(meta, &res.Metadata); err != nil {
		return res, fmt.Errorf("decode metadata: %w", err)
	}
	return res, nil
}

func (db *DB) GetResult(ctx context.Context, resultID string) (domain.ScanResult, error) {
	if !validID(resultID) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	res, err := scanHistory(db.Pool.QueryRow(ctx, `SELECT `+historyColumns+` FROM scan_history WHERE id = $1`, resultID))
	if errors.Is(err, pgx.ErrNoRows) {
		return res, domain.ErrNotFound
	}
	if err != nil {
		return res, err
	}
	return res, db.loadChildren(ctx, &res)
}

func (db *DB) LatestForTarget(ctx context.Context, target string) (domain.ScanResult, error) {
	res, err := scanHistory(db.Pool.QueryRow(ctx, `
        SELECT `+historyColumns+` FROM scan_history
        WHERE target = $1
        ORDER BY scanned_at DESC
        LIMIT 1
    `, target))
	if errors.Is(err, pgx.ErrNoRows) {
		return res, domain.ErrNotFound
	}
	if err != nil {
		return res, err
	}
	return res, db.loadChildren(ctx, &res)
}

// ListResults returns history rows newest first. Details are loaded per row;
// the limit is capped by the history service.
func (db *DB) ListResults(ctx context.Context, limit int) ([]domain.ScanResult, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+historyColumns+` FROM scan_history ORDER BY scanned_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out := []domain.ScanResult{}
	for rows.Next() {
		res, err := scanHistory(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := db.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) loadChildren(ctx context.Context, res *domain.ScanResult) error {
	rows, err := db.Pool.Query(ctx, `
        SELECT source, category, result, method, engine_update
        FROM detection_details WHERE scan_id = $1 ORDER BY position
    `, res.ID)
	if err != nil {
		return err
	}
	details, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.DetectionDetail])
	if err != nil {
		return err
	}
	res.Details = details

	var (
		ml      domain.MLAnalysis
		factors []byte
	)
	err = db.Pool.QueryRow(ctx, `SELECT score, status, factors FROM ml_analyses WHERE scan_id = $1`, res.ID).
		Scan(&ml.Score, &ml.Status, &factors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(factors, &ml.Factors); err != nil {
		return fmt.Errorf("decode ml factors: %w", err)
	}
	res.ML = &ml
	return nil
}

// validID keeps malformed ids from reaching a uuid column as a syntax error.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
