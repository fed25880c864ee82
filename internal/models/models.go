package models

import "time"

type User struct {
	UserID  string    `json:"id"`
	Email   string    `json:"email"`
	Created time.Time `json:"createdAt"`
}

type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected:
		return true
	default:
		return false
	}
}

// Application is one tracked job application. UserID is set from the
// session on creation and never changes afterwards.
type Application struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	Location    string    `json:"location,omitempty"`
	Link        string    `json:"link,omitempty"`
	Status      Status    `json:"status"`
	DateApplied time.Time `json:"dateApplied"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
