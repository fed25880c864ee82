package store

import (
	"context"
	"time"

	"github.com/hellow-star/job-app-tracker/internal/models"
)

type AuthResult struct {
	User    models.User
	Session models.Session
}

// ListQuery narrows a list call. Text matches company or role as a
// case-insensitive substring; Status is an exact match when non-empty.
type ListQuery struct {
	Text   string
	Status models.Status
}

type CreateApplicationInput struct {
	UserID      string
	Company     string
	Role        string
	Location    string
	Link        string
	Status      models.Status
	DateApplied time.Time
	Notes       string
}

// ApplicationPatch carries only the fields present in an update request.
// Nil pointers mean "leave unchanged".
type ApplicationPatch struct {
	Company     *string
	Role        *string
	Location    *string
	Link        *string
	Status      *models.Status
	DateApplied *time.Time
	Notes       *string
}

type Store interface {
	Signup(ctx context.Context, email, password string, sessionTTL time.Duration) (AuthResult, error)
	Login(ctx context.Context, email, password string, sessionTTL time.Duration) (AuthResult, error)
	GetSession(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	ListApplications(ctx context.Context, userID string, query ListQuery) ([]models.Application, error)
	CreateApplication(ctx context.Context, input CreateApplicationInput) (models.Application, error)
	UpdateApplication(ctx context.Context, userID, id string, patch ApplicationPatch) (models.Application, error)
	DeleteApplication(ctx context.Context, userID, id string) error
}
