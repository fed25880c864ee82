package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hellow-star/job-app-tracker/internal/models"
	"github.com/hellow-star/job-app-tracker/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Signup(ctx context.Context, email, password string, sessionTTL time.Duration) (store.AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.AuthResult{}, err
	}

	var user models.User
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, email, password_hash)
		VALUES ($1, lower($2), $3)
		RETURNING user_id, email, created_at
	`, uuid.NewString(), email, string(hash))
	if err := row.Scan(&user.UserID, &user.Email, &user.Created); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.AuthResult{}, store.ErrEmailTaken
		}
		return store.AuthResult{}, err
	}

	session, err := s.createSession(ctx, user.UserID, time.Now().UTC().Add(sessionTTL))
	if err != nil {
		return store.AuthResult{}, err
	}
	return store.AuthResult{User: user, Session: session}, nil
}

func (s *Store) Login(ctx context.Context, email, password string, sessionTTL time.Duration) (store.AuthResult, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email, password_hash, created_at
		FROM users
		WHERE email = lower($1)
	`, email)
	if err := row.Scan(&user.UserID, &user.Email, &passwordHash, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.AuthResult{}, store.ErrInvalidCredentials
		}
		return store.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return store.AuthResult{}, store.ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.UserID, time.Now().UTC().Add(sessionTTL))
	if err != nil {
		return store.AuthResult{}, err
	}
	return store.AuthResult{User: user, Session: session}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT token, user_id, expires_at
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token)
	if err := row.Scan(&session.Token, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

// DeleteSession is idempotent: deleting an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *Store) createSession(ctx context.Context, userID string, expiresAt time.Time) (models.Session, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

const applicationColumns = `id, user_id, company, role, location, link, status, date_applied, notes, created_at, updated_at`

func (s *Store) ListApplications(ctx context.Context, userID string, query store.ListQuery) ([]models.Application, error) {
	sql := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id = $1`
	args := []interface{}{userID}

	if query.Status != "" {
		args = append(args, string(query.Status))
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if query.Text != "" {
		args = append(args, "%"+escapeLike(query.Text)+"%")
		sql += fmt.Sprintf(" AND (company ILIKE $%d OR role ILIKE $%d)", len(args), len(args))
	}
	sql += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Store) CreateApplication(ctx context.Context, input store.CreateApplicationInput) (models.Application, error) {
	status := input.Status
	if status == "" {
		status = models.StatusApplied
	}
	dateApplied := input.DateApplied
	if dateApplied.IsZero() {
		dateApplied = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO applications (id, user_id, company, role, location, link, status, date_applied, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+applicationColumns+`
	`, uuid.NewString(), input.UserID, input.Company, input.Role, input.Location, input.Link, string(status), dateApplied, input.Notes)
	return scanApplication(row)
}

func (s *Store) UpdateApplication(ctx context.Context, userID, id string, patch store.ApplicationPatch) (models.Application, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{userID, id}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Company != nil {
		add("company", *patch.Company)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Link != nil {
		add("link", *patch.Link)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.DateApplied != nil {
		add("date_applied", *patch.DateApplied)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE applications
		SET `+strings.Join(sets, ", ")+`
		WHERE user_id = $1 AND id = $2
		RETURNING `+applicationColumns+`
	`, args...)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Application{}, store.ErrApplicationNotFound
		}
		return models.Application{}, err
	}
	return app, nil
}

func (s *Store) DeleteApplication(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM applications
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrApplicationNotFound
	}
	return nil
}

func scanApplication(row pgx.Row) (models.Application, error) {
	var app models.Application
	var status string
	err := row.Scan(&app.ID, &app.UserID, &app.Company, &app.Role, &app.Location, &app.Link,
		&status, &app.DateApplied, &app.Notes, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return models.Application{}, err
	}
	app.Status = models.Status(status)
	return app, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
