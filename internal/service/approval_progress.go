package service

import (
	"math"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

// AggregateProgress joins the eligible admins with the request's approval rows and derives the
// counters, the rounded percentage and the overall status. Admins without a row count as pending;
// rows of admins that are no longer eligible are ignored. The list keeps the admins' order.
func AggregateProgress(admins []models.AdminSummary, approvals []models.Approval) (dto.ApprovalSummary, []dto.ApprovalStatusItem, error) {
	if len(admins) == 0 {
		return dto.ApprovalSummary{}, nil, appErrors.ErrNoApprovers
	}

	byAdmin := make(map[string]models.Approval, len(approvals))
	for _, a := range approvals {
		byAdmin[a.AdminID] = a
	}

	summary := dto.ApprovalSummary{TotalAdmins: len(admins)}
	items := make([]dto.ApprovalStatusItem, 0, len(admins))
	for _, admin := range admins {
		item := dto.ApprovalStatusItem{
			AdminID:     admin.ID,
			DisplayName: admin.DisplayName(),
			Status:      models.ApprovalPending,
			Remarks:     dto.DefaultRemarks,
		}
		if row, ok := byAdmin[admin.ID]; ok {
			item.Status = row.Status
			item.Remarks = ""
			if row.Remarks != nil {
				item.Remarks = *row.Remarks
			}
			item.ReviewRequested = row.ReviewRequested
			updatedAt := row.UpdatedAt
			item.UpdatedAt = &updatedAt
		}

		switch item.Status {
		case models.ApprovalApproved:
			summary.Approved++
		case models.ApprovalRejected:
			summary.Rejected++
		default:
			summary.Pending++
		}
		items = append(items, item)
	}

	summary.ProgressPercent = int(math.Round(100 * float64(summary.Approved) / float64(summary.TotalAdmins)))
	summary.OverallStatus = overallStatus(summary)
	return summary, items, nil
}

func overallStatus(s dto.ApprovalSummary) string {
	switch {
	case s.Approved == s.TotalAdmins:
		return dto.OverallApproved
	case s.Rejected == s.TotalAdmins:
		return dto.OverallRejected
	default:
		return dto.OverallInReview
	}
}
