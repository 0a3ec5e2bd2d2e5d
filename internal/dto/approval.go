package dto

import (
	"time"

	"github.com/noah-isme/ndc-portal-api/internal/models"
)

// Overall statuses derived from the per-admin decisions.
const (
	OverallApproved    = "Approved"
	OverallRejected    = "Rejected"
	OverallInReview    = "In Review"
	OverallNoApprovers = "No Approvers"
)

// DefaultRemarks is reported for admins that have no approval row yet.
const DefaultRemarks = "No remarks provided"

// RecordDecisionRequest is an admin's approve/reject decision.
type RecordDecisionRequest struct {
	Decision models.ApprovalStatus `json:"decision" validate:"required,oneof=approved rejected"`
	Remarks  string                `json:"remarks" validate:"max=1000"`
}

// ApprovalStatusItem is one admin's entry in the tracking view.
type ApprovalStatusItem struct {
	AdminID         string                `json:"adminId"`
	DisplayName     string                `json:"displayName"`
	Status          models.ApprovalStatus `json:"status"`
	Remarks         string                `json:"remarks"`
	ReviewRequested bool                  `json:"reviewRequested"`
	UpdatedAt       *time.Time            `json:"updatedAt,omitempty"`
}

// ApprovalSummary carries the counters of an aggregate.
type ApprovalSummary struct {
	ProgressPercent int    `json:"progressPercent"`
	TotalAdmins     int    `json:"totalAdmins"`
	Approved        int    `json:"approved"`
	Rejected        int    `json:"rejected"`
	Pending         int    `json:"pending"`
	OverallStatus   string `json:"overallStatus"`
}

// ApprovalProgress is the full tracking view of a request.
type ApprovalProgress struct {
	RequestID    string `json:"requestId"`
	TicketNumber string `json:"ticketNumber"`
	ApprovalSummary
	StatusList []ApprovalStatusItem `json:"statusList"`
}
