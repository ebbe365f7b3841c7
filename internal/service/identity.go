package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/store"
	"tellerpos/backend/internal/validation"
)

// Register creates a user with exactly one active profile. It is open to
// anonymous callers.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.UserAccount, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return domain.UserAccount{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserAccount{}, err
	}

	created, err := s.repo.CreateUser(ctx,
		domain.User{Username: req.Username, Email: req.Email, Password: string(hash)},
		&domain.Profile{Role: req.Role, IsActive: true},
	)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserAccount{}, validation.Fields(map[string]string{"username": "is already taken"})
		}
		return domain.UserAccount{}, err
	}

	log.Info().Str("user_id", created.User.ID).Str("role", string(req.Role)).Msg("user registered")
	return *created, nil
}

// Authenticate verifies credentials and returns the account. Users without
// an active profile cannot sign in.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.UserAccount{}, ErrInvalidCredentials
	}

	account, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserAccount{}, ErrInvalidCredentials
		}
		return domain.UserAccount{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.User.Password), []byte(password)) != nil {
		return domain.UserAccount{}, ErrInvalidCredentials
	}
	if account.Profile == nil || !account.Profile.IsActive {
		return domain.UserAccount{}, ErrInactiveAccount
	}
	return *account, nil
}

// EnsureAdmin creates an admin account unless the username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username string, password string) (bool, error) {
	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	_, err = s.Register(ctx, domain.RegisterRequest{Username: username, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if _, err := s.authorize(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (domain.UserAccount, error) {
	if _, err := s.authorize(ctx, domain.RoleAdmin); err != nil {
		return domain.UserAccount{}, err
	}
	account, err := s.repo.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserAccount{}, err
	}
	return *account, nil
}

// UpdateUser edits a user and its profile together. Every field is
// validated before anything is written; a user without a profile gets one,
// which requires a role.
func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UpdateUserRequest) (domain.UserAccount, error) {
	actor, err := s.authorize(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.UserAccount{}, err
	}

	account, err := s.repo.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserAccount{}, err
	}

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}

	fields := map[string]string{}
	if err := validation.Struct(req); err != nil {
		verr, ok := validation.AsError(err)
		if !ok {
			return domain.UserAccount{}, err
		}
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if req.Username != nil && *req.Username == "" {
		fields["username"] = "is required"
	}
	if req.Email != nil && *req.Email != "" {
		if verr, ok := validation.AsError(validation.Var("email", *req.Email, "email")); ok {
			fields["email"] = verr.Fields["email"]
		}
	}
	if account.Profile == nil && req.Role == nil {
		fields["role"] = "is required for a user without a profile"
	}
	if len(fields) > 0 {
		return domain.UserAccount{}, validation.Fields(fields)
	}

	user := account.User
	user.Password = ""
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	profile := domain.Profile{UserID: user.ID, IsActive: true}
	if account.Profile != nil {
		profile = *account.Profile
	}
	if req.Role != nil {
		profile.Role = *req.Role
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	}

	updated, err := s.repo.UpdateUser(ctx, user, profile)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserAccount{}, validation.Fields(map[string]string{"username": "is already taken"})
		}
		return domain.UserAccount{}, err
	}

	log.Info().
		Str("actor", actor.Username).
		Str("user_id", updated.User.ID).
		Str("role", string(updated.Profile.Role)).
		Bool("is_active", updated.Profile.IsActive).
		Msg("user updated")
	return *updated, nil
}
