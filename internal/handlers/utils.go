package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openboard/openboard/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// Response is the envelope wrapping every JSON reply.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError reports a validation failure for a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

func writeValidationErrors(w http.ResponseWriter, fieldErrors []FieldError) {
	writeJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Message: "invalid input",
		Errors:  fieldErrors,
	})
}

// userFromContext returns the authenticated user attached by RequireAuth,
// or false when the request carried no (valid) token.
func userFromContext(r *http.Request) (types.User, bool) {
	user, ok := r.Context().Value(contextUserKey).(types.User)
	return user, ok
}

const (
	defaultPage = 0
	defaultSize = 10
	maxSize     = 50
)

// parsePagination reads zero-based page and size query parameters.
func parsePagination(r *http.Request) (page, size int, err error) {
	page = defaultPage
	size = defaultSize

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			return 0, 0, errors.New("page must be a non-negative integer")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("size")); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxSize {
			return 0, 0, errors.New("size must be between 1 and 50")
		}
	}

	return page, size, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
