package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"strings"
	"time"

	"miniHabitsAPI/internal/apperr"
	"miniHabitsAPI/internal/messaging"
	"miniHabitsAPI/internal/user"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var phoneRe = regexp.MustCompile(`^\d{10,15}$`)

const otpTTL = 10 * time.Minute

type UserService struct {
	db     *pgxpool.Pool
	sender messaging.Sender
}

func NewUserService(db *pgxpool.Pool, sender messaging.Sender) *UserService {
	return &UserService{db: db, sender: sender}
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*user.User, error) {
	u := &user.User{}
	var name, phone, timezone *string
	query := `
	SELECT id, email, name, phone, phone_verified, timezone, created_at
	FROM users
	WHERE id = $1
	`
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &name, &phone, &u.PhoneVerified, &timezone, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
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

func (s *UserService) UpdateName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return fmt.Errorf("%w: name must be 1-100 characters", apperr.ErrValidation)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, userID)
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	return nil
}

func (s *UserService) UpdateTimezone(ctx context.Context, userID, tz string) error {
	if tz == "" {
		return fmt.Errorf("%w: timezone is required", apperr.ErrValidation)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: invalid timezone %q", apperr.ErrValidation, tz)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET timezone = $1 WHERE id = $2`, tz, userID)
	if err != nil {
		return fmt.Errorf("failed to update timezone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	return nil
}

// SetPhone stores a new phone number in unverified state, generates a one-time
// code with a short expiry and sends it through the messaging gateway.
// Invariant: code set implies phone set and not verified.
func (s *UserService) SetPhone(ctx context.Context, userID, phone string) error {
	if !phoneRe.MatchString(phone) {
		return fmt.Errorf("%w: phone must be 10-15 digits", apperr.ErrValidation)
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	expiry := time.Now().Add(otpTTL)

	query := `
	UPDATE users
	SET phone = $1, phone_verified = FALSE, phone_otp = $2, phone_otp_expiry = $3
	WHERE id = $4
	`
	tag, err := s.db.Exec(ctx, query, phone, code, expiry, userID)
	if err != nil {
		return fmt.Errorf("failed to set phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", apperr.ErrNotFound)
	}

	if err := s.sender.Send(ctx, phone, fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)); err != nil {
		log.Printf("Failed to send OTP to user %s: %v", userID, err)
		return fmt.Errorf("%w: could not deliver verification code", apperr.ErrExternal)
	}

	return nil
}

// VerifyPhone checks the pending code. OTP failures are specific on purpose:
// "none pending", "expired" and "incorrect" are low-risk to disclose.
func (s *UserService) VerifyPhone(ctx context.Context, userID, code string) error {
	var otp *string
	var expiry *time.Time
	err := s.db.QueryRow(ctx, `SELECT phone_otp, phone_otp_expiry FROM users WHERE id = $1`, userID).Scan(&otp, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user", apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load verification state: %w", err)
	}

	if otp == nil || expiry == nil {
		return fmt.Errorf("%w: no verification pending", apperr.ErrConflict)
	}
	if time.Now().After(*expiry) {
		return fmt.Errorf("%w: verification code expired", apperr.ErrExpired)
	}
	if code != *otp {
		return fmt.Errorf("%w: incorrect verification code", apperr.ErrValidation)
	}

	// Code and expiry are cleared together with the verified flag flip.
	query := `
	UPDATE users
	SET phone_verified = TRUE, phone_otp = NULL, phone_otp_expiry = NULL
	WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}
	return nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
