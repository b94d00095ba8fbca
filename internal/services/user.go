package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openboard/openboard/internal/events"
	"github.com/openboard/openboard/internal/social"
	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/internal/token"
	"github.com/openboard/openboard/types"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByLoginID(ctx context.Context, loginID string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates signup, login, and social-login use-cases.
type UserService struct {
	repo   UserRepository
	tokens *token.Service
	events *events.Publisher
}

func NewUserService(repo UserRepository, tokens *token.Service, publisher *events.Publisher) *UserService {
	return &UserService{repo: repo, tokens: tokens, events: publisher}
}

// SignupParams carries already-validated signup input.
type SignupParams struct {
	LoginID  string
	Password string
	Name     string
	Email    string
}

// Signup creates a local account. Login id and email uniqueness are checked
// up front for distinct error messages; the store's unique constraints catch
// races and also map to the duplicate errors.
func (s *UserService) Signup(ctx context.Context, params SignupParams) (types.User, error) {
	if _, err := s.repo.GetByLoginID(ctx, params.LoginID); err == nil {
		return types.User{}, ErrDuplicateLoginID
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check login id: %w", err)
	}

	if params.Email != "" {
		if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
			return types.User{}, ErrDuplicateEmail
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("check email: %w", err)
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcryptCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		LoginID:      params.LoginID,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateLoginID
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.events.Publish(ctx, events.TypeUserSignedUp, user.ID, map[string]any{"loginId": user.LoginID})
	return user, nil
}

// Login verifies credentials and mints a token pair.
func (s *UserService) Login(ctx context.Context, loginID, password string) (types.TokenPair, types.User, error) {
	user, err := s.repo.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, types.User{}, ErrInvalidCredentials
		}
		return types.TokenPair{}, types.User{}, fmt.Errorf("load user: %w", err)
	}

	// Social-only accounts have no password hash and cannot log in locally.
	if user.PasswordHash == "" {
		return types.TokenPair{}, types.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.TokenPair{}, types.User{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return types.TokenPair{}, types.User{}, err
	}

	s.events.Publish(ctx, events.TypeUserLoggedIn, user.ID, map[string]any{"loginId": user.LoginID})
	return pair, user, nil
}

// SocialLogin looks up the account bound to the provider identity, creating
// one on first login, and mints a token pair.
func (s *UserService) SocialLogin(ctx context.Context, providerName string, profile social.Profile) (types.TokenPair, types.User, error) {
	user, err := s.repo.GetByProvider(ctx, providerName, profile.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, types.User{}, fmt.Errorf("load social user: %w", err)
		}
		user, err = s.repo.Create(ctx, types.User{
			LoginID:    fmt.Sprintf("%s_%s", providerName, profile.ID),
			Name:       profile.Name,
			Email:      profile.Email,
			Provider:   providerName,
			ProviderID: profile.ID,
		})
		if err != nil {
			// A concurrent first login may have created the account already.
			if errors.Is(err, store.ErrDuplicate) {
				user, err = s.repo.GetByProvider(ctx, providerName, profile.ID)
			}
			if err != nil {
				return types.TokenPair{}, types.User{}, fmt.Errorf("create social user: %w", err)
			}
		}
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return types.TokenPair{}, types.User{}, err
	}

	s.events.Publish(ctx, events.TypeUserLoggedIn, user.ID, map[string]any{"loginId": user.LoginID, "provider": providerName})
	return pair, user, nil
}

// GetByID returns a user by internal id.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}
