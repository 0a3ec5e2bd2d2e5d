package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ndc-portal-api/internal/models"
)

// ErrApprovalNotRejected is returned when a reopen targets a row that is neither rejected nor already reopened.
var ErrApprovalNotRejected = errors.New("approval is not rejected")

const approvalColumns = `request_id, admin_id, status, remarks, review_requested, created_at, updated_at`

// ApprovalRepository provides persistence for per-admin approval rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// ListByRequest returns every approval row of the request.
func (r *ApprovalRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM ndc_approvals WHERE request_id = $1 ORDER BY created_at ASC, admin_id ASC`
	var items []models.Approval
	if err := r.db.SelectContext(ctx, &items, query, requestID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return items, nil
}

// ListByRequests returns the approval rows of many requests in one round trip.
func (r *ApprovalRepository) ListByRequests(ctx context.Context, requestIDs []string) ([]models.Approval, error) {
	if len(requestIDs) == 0 {
		return []models.Approval{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+approvalColumns+` FROM ndc_approvals WHERE request_id IN (?) ORDER BY request_id ASC, created_at ASC`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("build approvals query: %w", err)
	}
	var items []models.Approval
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list approvals for requests: %w", err)
	}
	return items, nil
}

// UpdateDecision records an admin's decision and clears any pending review request.
// It returns sql.ErrNoRows when the admin holds no row for the request.
func (r *ApprovalRepository) UpdateDecision(ctx context.Context, requestID, adminID string, status models.ApprovalStatus, remarks *string, at time.Time) (*models.Approval, error) {
	query := `UPDATE ndc_approvals SET status = $3, remarks = $4, review_requested = FALSE, updated_at = $5
WHERE request_id = $1 AND admin_id = $2
RETURNING ` + approvalColumns
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, requestID, adminID, status, remarks, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update approval decision: %w", err)
	}
	return &approval, nil
}

// UpsertDecision records an admin's decision, creating the row when the admin joined
// the approver pool after the request was fanned out.
func (r *ApprovalRepository) UpsertDecision(ctx context.Context, requestID, adminID string, status models.ApprovalStatus, remarks *string, at time.Time) (*models.Approval, error) {
	query := `INSERT INTO ndc_approvals (request_id, admin_id, status, remarks, review_requested, created_at, updated_at)
VALUES ($1, $2, $3, $4, FALSE, $5, $5)
ON CONFLICT (request_id, admin_id) DO UPDATE
SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, review_requested = FALSE, updated_at = EXCLUDED.updated_at
RETURNING ` + approvalColumns
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, requestID, adminID, status, remarks, at); err != nil {
		return nil, fmt.Errorf("upsert approval decision: %w", err)
	}
	return &approval, nil
}

// Reopen moves a rejected row back to pending with review_requested set and touches the parent request.
// A row that is already pending with review_requested is returned unchanged with changed=false.
func (r *ApprovalRepository) Reopen(ctx context.Context, requestID, adminID string, at time.Time) (approval *models.Approval, changed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin reopen transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Approval
	lockQuery := `SELECT ` + approvalColumns + ` FROM ndc_approvals WHERE request_id = $1 AND admin_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, requestID, adminID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock approval: %w", err)
	}

	switch {
	case current.Status == models.ApprovalPending && current.ReviewRequested:
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit reopen: %w", err)
		}
		return &current, false, nil
	case current.Status != models.ApprovalRejected:
		err = ErrApprovalNotRejected
		return nil, false, err
	}

	var updated models.Approval
	updateQuery := `UPDATE ndc_approvals SET status = $3, review_requested = TRUE, updated_at = $4
WHERE request_id = $1 AND admin_id = $2
RETURNING ` + approvalColumns
	if err = tx.GetContext(ctx, &updated, updateQuery, requestID, adminID, models.ApprovalPending, at); err != nil {
		return nil, false, fmt.Errorf("reopen approval: %w", err)
	}

	const touchRequest = `UPDATE ndc_requests SET updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, touchRequest, requestID, at); err != nil {
		return nil, false, fmt.Errorf("touch ndc request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit reopen: %w", err)
	}
	return &updated, true, nil
}

// PendingForAdmin returns the admin's queue of requests still awaiting their decision.
// With includeUnassigned set, requests holding no row for the admin are queued as well.
func (r *ApprovalRepository) PendingForAdmin(ctx context.Context, adminID string, includeUnassigned bool) ([]models.PendingApproval, error) {
	const query = `
SELECT
	q.id AS request_id,
	q.ticket_number,
	q.student_name,
	q.course,
	q.batch,
	q.roll_number,
	COALESCE(a.review_requested, FALSE) AS review_requested,
	q.created_at AS request_created_at,
	COALESCE(a.updated_at, q.created_at) AS updated_at
FROM ndc_requests q
LEFT JOIN ndc_approvals a ON a.request_id = q.id AND a.admin_id = $1
WHERE a.status = $2 OR (a.admin_id IS NULL AND $3::boolean)
ORDER BY review_requested DESC, q.created_at ASC`
	var items []models.PendingApproval
	if err := r.db.SelectContext(ctx, &items, query, adminID, models.ApprovalPending, includeUnassigned); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return items, nil
}
