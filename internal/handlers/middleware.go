package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/openboard/openboard/internal/services"
	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/internal/token"
	"github.com/openboard/openboard/types"
)

// Authenticator verifies bearer tokens and attaches the resolved user to the
// request context.
type Authenticator struct {
	tokens *token.Service
	users  *services.UserService
}

func NewAuthenticator(tokens *token.Service, users *services.UserService) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// RequireAuth rejects requests without a valid access token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			if errors.Is(err, token.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the user when a valid token is present and proceeds
// without one otherwise. An invalid token is not an error here.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := a.resolve(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), contextUserKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(r *http.Request) (types.User, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return types.User{}, err
	}

	userID, err := a.tokens.VerifyAccess(tokenString)
	if err != nil {
		return types.User{}, err
	}

	user, err := a.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, token.ErrInvalidToken
		}
		return types.User{}, err
	}
	return user, nil
}
