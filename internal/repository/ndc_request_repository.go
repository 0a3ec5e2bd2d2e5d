package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ndc-portal-api/internal/models"
)

var (
	// ErrNoEligibleAdmins is returned by the fan-out when no active admin exists.
	ErrNoEligibleAdmins = errors.New("no eligible admins")
	// ErrFanout wraps failures while writing the per-admin approval rows.
	ErrFanout = errors.New("approval fan-out failed")
)

const requestColumns = `id, ticket_number, owner_id, student_name, course, batch, roll_number, phone_number, email, address, photo_key, photo_url, status, created_at, updated_at`

// NDCRequestRepository provides persistence for NDC requests.
type NDCRequestRepository struct {
	db *sqlx.DB
}

// NewNDCRequestRepository constructs the repository.
func NewNDCRequestRepository(db *sqlx.DB) *NDCRequestRepository {
	return &NDCRequestRepository{db: db}
}

// CreateWithApprovals inserts the request and one pending approval per eligible admin in a single transaction.
// It returns the number of approval rows created.
func (r *NDCRequestRepository) CreateWithApprovals(ctx context.Context, req *models.NDCRequest) (count int, err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRequest = `INSERT INTO ndc_requests (` + requestColumns + `) VALUES (:id, :ticket_number, :owner_id, :student_name, :course, :batch, :roll_number, :phone_number, :email, :address, :photo_key, :photo_url, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertRequest, req); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return 0, err
		}
		return 0, fmt.Errorf("insert ndc request: %w", err)
	}

	var adminIDs []string
	const selectAdmins = `SELECT id FROM users WHERE role = $1 AND active = TRUE ORDER BY created_at ASC, id ASC FOR SHARE`
	if err = tx.SelectContext(ctx, &adminIDs, selectAdmins, models.RoleAdmin); err != nil {
		return 0, fmt.Errorf("select eligible admins: %w", err)
	}
	if len(adminIDs) == 0 {
		err = ErrNoEligibleAdmins
		return 0, err
	}

	rows := make([]interface{}, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		rows = append(rows, goqu.Record{
			"request_id":       req.ID,
			"admin_id":         adminID,
			"status":           string(models.ApprovalPending),
			"review_requested": false,
			"created_at":       now,
			"updated_at":       now,
		})
	}
	insertApprovals, args, err := dialect.Insert("ndc_approvals").Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		err = fmt.Errorf("%w: build insert: %v", ErrFanout, err)
		return 0, err
	}
	res, err := tx.ExecContext(ctx, insertApprovals, args...)
	if err != nil {
		err = fmt.Errorf("%w: insert approval rows: %v", ErrFanout, err)
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("%w: rows affected: %v", ErrFanout, err)
		return 0, err
	}
	if int(affected) != len(adminIDs) {
		err = fmt.Errorf("%w: wrote %d of %d rows", ErrFanout, affected, len(adminIDs))
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submission: %w", err)
	}
	return len(adminIDs), nil
}

// FindByID returns a request by identifier.
func (r *NDCRequestRepository) FindByID(ctx context.Context, id string) (*models.NDCRequest, error) {
	return r.findOne(ctx, "id", id)
}

// FindByTicket returns a request by its ticket number.
func (r *NDCRequestRepository) FindByTicket(ctx context.Context, ticket string) (*models.NDCRequest, error) {
	return r.findOne(ctx, "ticket_number", ticket)
}

func (r *NDCRequestRepository) findOne(ctx context.Context, column, value string) (*models.NDCRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM ndc_requests WHERE ` + column + ` = $1 LIMIT 1`
	var req models.NDCRequest
	if err := r.db.GetContext(ctx, &req, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find ndc request by %s: %w", column, err)
	}
	return &req, nil
}

// ListByOwner returns the owner's requests, newest first.
func (r *NDCRequestRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.NDCRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM ndc_requests WHERE owner_id = $1 ORDER BY created_at DESC`
	var items []models.NDCRequest
	if err := r.db.SelectContext(ctx, &items, query, ownerID); err != nil {
		return nil, fmt.Errorf("list ndc requests by owner: %w", err)
	}
	return items, nil
}

// List returns requests matching the filter with the total count.
func (r *NDCRequestRepository) List(ctx context.Context, filter models.NDCRequestFilter) ([]models.NDCRequest, int, error) {
	base := dialect.From("ndc_requests")
	if filter.OwnerID != "" {
		base = base.Where(goqu.C("owner_id").Eq(filter.OwnerID))
	}
	if course := strings.TrimSpace(filter.Course); course != "" {
		base = base.Where(goqu.C("course").Eq(course))
	}
	if batch := strings.TrimSpace(filter.Batch); batch != "" {
		base = base.Where(goqu.C("batch").Eq(batch))
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		base = base.Where(goqu.Or(
			goqu.Func("LOWER", goqu.C("student_name")).Like(pattern),
			goqu.Func("LOWER", goqu.C("roll_number")).Like(pattern),
			goqu.Func("LOWER", goqu.C("ticket_number")).Like(pattern),
		))
	}

	order := goqu.I("created_at").Desc()
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = goqu.I("created_at").Asc()
	}
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery, args, err := base.
		Select(goqu.L(requestColumns)).
		Order(order, goqu.I("id").Asc()).
		Limit(uint(pageSize)).
		Offset(uint(offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list ndc requests query: %w", err)
	}
	var items []models.NDCRequest
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list ndc requests: %w", err)
	}

	countQuery, countArgs, err := base.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count ndc requests query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count ndc requests: %w", err)
	}
	return items, total, nil
}
