// Package client is a Go client for the job tracker API. It keeps the
// session cookie across calls and offers an optimistic, server-reconciled
// cache of the caller's application list.
package client

import "time"

type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
)

// Application mirrors the server's record representation.
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

// Fields holds the client-settable attributes for a create call.
type Fields struct {
	Company     string     `json:"company"`
	Role        string     `json:"role"`
	Location    string     `json:"location,omitempty"`
	Link        string     `json:"link,omitempty"`
	Status      Status     `json:"status,omitempty"`
	DateApplied *time.Time `json:"dateApplied,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Patch carries only the fields to change; nil means "leave unchanged".
type Patch struct {
	Company     *string    `json:"company,omitempty"`
	Role        *string    `json:"role,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Link        *string    `json:"link,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DateApplied *time.Time `json:"dateApplied,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Query narrows a list call: Text is a substring match against company
// or role, Status an exact match.
type Query struct {
	Text   string
	Status Status
}

type User struct {
	ID string `json:"id"`
}
