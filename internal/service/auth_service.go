package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hengadev/errsx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("a user with this email already exists")
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

const minPasswordLength = 12

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// UpdateLoginAttempt resets the counter on success. On failure it
	// increments it and sets LockedUntil once maxAttempts is reached.
	UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool, maxAttempts int, lockFor time.Duration) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	auditSvc   *AuditService
	log        *zap.Logger
}

func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, auditSvc *AuditService, log *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, jwtManager: jwtManager, auditSvc: auditSvc, log: log}
}

func (s *AuthService) Login(ctx context.Context, email, password string, ip string) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Spend the same bcrypt cost as a real check so response time does
		// not reveal whether the email exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if !errors.Is(err, ErrUserNotFound) {
			s.log.Error("user lookup failed", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.IsLocked() {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		_ = s.userRepo.UpdateLoginAttempt(ctx, user.ID, false, maxFailedAttempts, lockDuration)
		s.log.Warn("failed login attempt",
			zap.String("user_id", user.ID.String()),
			zap.String("ip", ip),
		)
		return nil, ErrInvalidCredentials
	}

	_ = s.userRepo.UpdateLoginAttempt(ctx, user.ID, true, maxFailedAttempts, lockDuration)

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(user))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return pair, nil
}

// RefreshToken issues a new token pair given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

// ChangePassword updates a user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := validatePasswordStrength(newPassword); err != nil {
		return &ValidationError{Fields: []string{"new_password: " + err.Error()}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, userID, string(hash))
}

type CreateUserCommand struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        domain.Role
	PatientUUID *uuid.UUID
}

var validate = validator.New()

// CreateUser registers an account. Only admins may do this.
func (s *AuthService) CreateUser(ctx context.Context, cmd CreateUserCommand, caller Caller) (*domain.User, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	var errs errsx.Map
	email := normalizeEmail(cmd.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		errs.Set("email", errors.New("email is invalid"))
	}
	if err := validatePasswordStrength(cmd.Password); err != nil {
		errs.Set("password", err)
	}
	if strings.TrimSpace(cmd.FirstName) == "" {
		errs.Set("first_name", errors.New("first_name is required"))
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs.Set("last_name", errors.New("last_name is required"))
	}
	if !cmd.Role.IsValid() {
		errs.Set("role", fmt.Errorf("role %q is invalid", cmd.Role))
	}
	if cmd.Role == domain.RolePatient && cmd.PatientUUID == nil {
		errs.Set("patient_uuid", errors.New("patient_uuid is required for the patient role"))
	}
	if err := validationError(errs); err != nil {
		return nil, err
	}

	user, err := s.newUser(email, cmd.Password, cmd.FirstName, cmd.LastName, cmd.Role)
	if err != nil {
		return nil, err
	}
	if cmd.Role == domain.RolePatient {
		user.PatientUUID = cmd.PatientUUID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       domain.ActionCreate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		IPAddress:    caller.IP,
		RequestID:    caller.RequestID,
	})
	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("looking up bootstrap admin: %w", err)
	}
	if err := validatePasswordStrength(password); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}

	user, err := s.newUser(email, password, "System", "Administrator", domain.RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.userRepo.Create(ctx, user); err != nil && !errors.Is(err, ErrEmailTaken) {
		return fmt.Errorf("creating bootstrap admin: %w", err)
	}

	s.log.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

func (s *AuthService) newUser(email, password, first, last string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &domain.User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      string(hash),
		FirstName:         strings.TrimSpace(first),
		LastName:          strings.TrimSpace(last),
		Role:              role,
		IsActive:          true,
		PasswordChangedAt: time.Now(),
	}, nil
}

func claimsFor(user *domain.User) *domain.Claims {
	return &domain.Claims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		PatientUUID: user.PatientUUID,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
