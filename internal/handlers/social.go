package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openboard/openboard/internal/services"
	"github.com/openboard/openboard/internal/social"
)

// SocialHandler provides OAuth login endpoints.
type SocialHandler struct {
	userService *services.UserService
	exchanger   *social.Exchanger
}

// NewSocialHandler constructs a SocialHandler with the provided dependencies.
func NewSocialHandler(userService *services.UserService, exchanger *social.Exchanger) *SocialHandler {
	return &SocialHandler{userService: userService, exchanger: exchanger}
}

// SocialRouter registers social login routes on the given router.
func SocialRouter(r chi.Router, userService *services.UserService, exchanger *social.Exchanger, loginLimiter *RateLimiter) {
	handler := NewSocialHandler(userService, exchanger)

	r.Get("/auth/{provider}", handler.AuthURL)
	login := http.HandlerFunc(handler.Login)
	if loginLimiter != nil {
		r.Method(http.MethodPost, "/login", loginLimiter.Handler(login))
	} else {
		r.Post("/login", login)
	}
}

type SocialLoginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	State    string `json:"state"`
}

// AuthURL returns the provider's authorization URL for the client to
// redirect to.
func (h *SocialHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	state := r.URL.Query().Get("state")

	authURL, err := h.exchanger.AuthURL(provider, state)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	writeData(w, http.StatusOK, "", map[string]string{"authUrl": authURL})
}

// Login exchanges an authorization code for a profile and signs the matching
// account in, creating it on first login.
func (h *SocialHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req SocialLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing provider or code")
		return
	}

	profile, err := h.exchanger.FetchProfile(r.Context(), req.Provider, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrUnsupportedProvider):
			writeError(w, http.StatusBadRequest, "unsupported provider")
		case errors.Is(err, social.ErrExchangeFailed):
			writeError(w, http.StatusUnauthorized, "social login failed")
		default:
			writeError(w, http.StatusInternalServerError, "social login failed")
		}
		return
	}

	pair, user, err := h.userService.SocialLogin(r.Context(), req.Provider, profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "social login failed")
		return
	}

	writeData(w, http.StatusOK, "login successful", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Public(),
	})
}
