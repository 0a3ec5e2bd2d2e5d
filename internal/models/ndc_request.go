package models

import "time"

// RequestStatusPending is the advisory status stored on new requests.
const RequestStatusPending = "pending"

// NDCRequest is a student's No-Dues Certificate submission.
type NDCRequest struct {
	ID           string    `db:"id" json:"id"`
	TicketNumber string    `db:"ticket_number" json:"ticketNumber"`
	OwnerID      string    `db:"owner_id" json:"ownerId"`
	StudentName  string    `db:"student_name" json:"studentName"`
	Course       string    `db:"course" json:"course"`
	Batch        string    `db:"batch" json:"batch"`
	RollNumber   string    `db:"roll_number" json:"rollNumber"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	Email        string    `db:"email" json:"email"`
	Address      string    `db:"address" json:"address"`
	PhotoKey     *string   `db:"photo_key" json:"-"`
	PhotoURL     *string   `db:"photo_url" json:"photoUrl,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// NDCRequestFilter constrains the super-admin listing.
type NDCRequestFilter struct {
	OwnerID   string
	Course    string
	Batch     string
	Search    string
	Page      int
	PageSize  int
	SortOrder string
}
