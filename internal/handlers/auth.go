package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/openboard/openboard/internal/services"
	"github.com/openboard/openboard/internal/token"
	"github.com/openboard/openboard/types"
)

var loginIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// AuthHandler provides signup, login, and token lifecycle endpoints.
type AuthHandler struct {
	userService *services.UserService
	tokens      *token.Service
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, tokens *token.Service) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, tokens *token.Service, auth *Authenticator, loginLimiter *RateLimiter) {
	handler := NewAuthHandler(userService, tokens)

	login := http.HandlerFunc(handler.Login)
	if loginLimiter != nil {
		r.Method(http.MethodPost, "/login", loginLimiter.Handler(login))
	} else {
		r.Post("/login", login)
	}
	r.Post("/signup", handler.Signup)
	r.Post("/refresh", handler.Refresh)
	r.With(auth.RequireAuth).Post("/logout", handler.Logout)
	r.With(auth.RequireAuth).Get("/me", handler.Me)
}

type SignupRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResponse is the payload returned by Login and SocialLogin.
type LoginResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         types.PublicUser `json:"user"`
}

// Signup creates a local account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.LoginID = strings.TrimSpace(req.LoginID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if fieldErrors := validateSignup(req); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	user, err := h.userService.Signup(r.Context(), services.SignupParams{
		LoginID:  req.LoginID,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateLoginID):
			writeError(w, http.StatusConflict, "login id already exists")
		case errors.Is(err, services.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeData(w, http.StatusCreated, "signup successful", user)
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.LoginID = strings.TrimSpace(req.LoginID)
	if req.LoginID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	pair, user, err := h.userService.Login(r.Context(), req.LoginID, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeData(w, http.StatusOK, "login successful", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Public(),
	})
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	// An empty body is an absent token, not a malformed request.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	access, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "missing refresh token")
		case errors.Is(err, token.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		default:
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	writeData(w, http.StatusOK, "", map[string]string{"accessToken": access})
}

// Logout revokes the supplied refresh token. Revoking an unknown token still
// succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	// A missing or empty body is fine: logout without a refresh token only
	// discards client state.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	writeData(w, http.StatusOK, "logout successful", nil)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeData(w, http.StatusOK, "", user)
}

func validateSignup(req SignupRequest) []FieldError {
	var fieldErrors []FieldError

	if !loginIDPattern.MatchString(req.LoginID) {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "loginId",
			Message: "login id must be 3-20 characters of letters, digits, or underscore",
		})
	}
	if len(req.Password) < 6 {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "password",
			Message: "password must be at least 6 characters",
		})
	}
	if n := utf8.RuneCountInString(req.Name); n < 2 || n > 20 {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "name",
			Message: "name must be 2-20 characters",
		})
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   "email",
				Message: "email must be a valid address",
			})
		}
	}

	return fieldErrors
}
