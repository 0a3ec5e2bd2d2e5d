package models

import "time"

// ApprovalStatus is the per-admin decision state.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Approval is one admin's decision on one request.
type Approval struct {
	RequestID       string         `db:"request_id" json:"requestId"`
	AdminID         string         `db:"admin_id" json:"adminId"`
	Status          ApprovalStatus `db:"status" json:"status"`
	Remarks         *string        `db:"remarks" json:"remarks,omitempty"`
	ReviewRequested bool           `db:"review_requested" json:"reviewRequested"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// PendingApproval is a row of an admin's work queue.
type PendingApproval struct {
	RequestID        string    `db:"request_id" json:"requestId"`
	TicketNumber     string    `db:"ticket_number" json:"ticketNumber"`
	StudentName      string    `db:"student_name" json:"studentName"`
	Course           string    `db:"course" json:"course"`
	Batch            string    `db:"batch" json:"batch"`
	RollNumber       string    `db:"roll_number" json:"rollNumber"`
	ReviewRequested  bool      `db:"review_requested" json:"reviewRequested"`
	RequestCreatedAt time.Time `db:"request_created_at" json:"requestCreatedAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}
