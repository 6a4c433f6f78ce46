package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"miniHabitsAPI/internal/apperr"
	"miniHabitsAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type AuthService struct {
	db *pgxpool.Pool
}

func NewAuthService(db *pgxpool.Pool) *AuthService {
	return &AuthService{db: db}
}

// Register creates a user with a bcrypt-hashed password. The display name
// defaults to the email local part, matching the web client's behavior.
func (s *AuthService) Register(ctx context.Context, req *user.RegisterRequest) (*user.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", apperr.ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", apperr.ErrValidation)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: user already exists", apperr.ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), 10)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, email, password, name, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query, u.ID, u.Email, string(hashed), u.Name, u.CreatedAt).Scan(&u.CreatedAt); err != nil {
		// The EXISTS check above races with concurrent registrations; the
		// unique index on email is the real arbiter.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already exists", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// Authenticate verifies credentials. Every failure path returns the same
// generic error so callers cannot probe which field was wrong.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	invalid := fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)

	email = strings.ToLower(strings.TrimSpace(email))

	u := &user.User{}
	var hashed string
	var name, phone, timezone *string
	query := `
	SELECT id, email, password, name, phone, phone_verified, timezone, created_at
	FROM users
	WHERE email = $1
	`
	err := s.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &hashed, &name, &phone, &u.PhoneVerified, &timezone, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return nil, invalid
	}

	if name != nil {
		u.Name = *name
	}
	if phone != nil {
		u.Phone = *phone
	}
	if timezone != nil {
		u.Timezone = *timezone
	}

	return u, nil
}
