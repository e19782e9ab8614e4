package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/validator"
)

type authService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	tokens    *auth.TokenIssuer
	directory repositories.IdentityDirectory
}

// NewAuthService builds the account service. directory may be nil when single
// sign-on is not configured.
func NewAuthService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, tokens *auth.TokenIssuer, directory repositories.IdentityDirectory) AuthService {
	return &authService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		tokens:    tokens,
		directory: directory,
	}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	s.logger.Info("Registering user", "username", req.Username)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, req.Username, req.Email, req.Password, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByEmail(ctx, nil, normalizeEmail(req.Email))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("Login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// Authenticate accepts a local token, or one from the single sign-on provider
// when configured. First-seen external users get a local account.
func (s *authService) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}

	identity, err := s.tokens.Parse(token)
	if err == nil {
		return identity, nil
	}
	if s.directory == nil {
		return auth.Identity{}, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}

	external, err := s.directory.ResolveToken(ctx, token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}

	user, err := s.localUserFor(ctx, external)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: user.ID, Role: user.Role}, nil
}

func (s *authService) CreateUser(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	s.logger.Info("Creating user", "username", req.Username, "role", req.Role)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.createUser(ctx, req.Username, req.Email, req.Password, req.Role)
}

// ===== HELPER METHODS =====

func (s *authService) createUser(ctx context.Context, username, email, password string, role models.UserRole) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     strings.TrimSpace(username),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.User().ExistsByUsernameOrEmail(ctx, tx, user.Username, user.Email)
		if err != nil {
			return fmt.Errorf("failed to check existing users: %w", err)
		}
		if exists {
			return ErrUserExists
		}
		if err := s.repo.User().Create(ctx, tx, user); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrUserExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// localUserFor finds the account matching an external identity by email and
// creates it on first sight with an unusable password.
func (s *authService) localUserFor(ctx context.Context, external *repositories.ExternalIdentity) (*models.User, error) {
	email := normalizeEmail(external.Email)
	user, err := s.repo.User().GetByEmail(ctx, nil, email)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	username := external.Username
	if username == "" {
		username = email
	}
	role := external.Role
	if !role.IsValid() {
		role = models.RoleStudent
	}

	user, err = s.createUser(ctx, username, email, uuid.NewString(), role)
	if errors.Is(err, ErrConflict) {
		return nil, fmt.Errorf("external user %s collides with a local account: %w", external.ExternalID, ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created local account for external user", "user_id", user.ID, "external_id", external.ExternalID)
	return user, nil
}

func (s *authService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
