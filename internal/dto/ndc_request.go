package dto

import (
	"io"

	"github.com/noah-isme/ndc-portal-api/internal/models"
)

// SubmitNDCRequest is the form payload of a new NDC request.
type SubmitNDCRequest struct {
	StudentName string `form:"studentName" json:"studentName" validate:"required,max=128"`
	Course      string `form:"course" json:"course" validate:"required,max=128"`
	Batch       string `form:"batch" json:"batch" validate:"required,max=32"`
	RollNumber  string `form:"rollNumber" json:"rollNumber" validate:"required,max=64"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber" validate:"required,phone"`
	Email       string `form:"email" json:"email" validate:"required,email"`
	Address     string `form:"address" json:"address" validate:"required,max=500"`
}

// PhotoUpload is the optional passport photo attached to a submission.
type PhotoUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// SubmitNDCResult reports the created request and how many approval rows were fanned out.
type SubmitNDCResult struct {
	Request       *models.NDCRequest `json:"request"`
	ApprovalCount int                `json:"approvalCount"`
}

// NDCRequestQuery mirrors supported listing filters.
type NDCRequestQuery struct {
	Course    string `form:"course"`
	Batch     string `form:"batch"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortOrder string `form:"sort_order"`
}

// NDCRequestSummary is a listing row with its aggregate approval state.
type NDCRequestSummary struct {
	models.NDCRequest
	Approval ApprovalSummary `json:"approval"`
}
