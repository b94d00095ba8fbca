package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/openboard/openboard/internal/services"
	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/types"
)

const (
	maxMultipartMemory = 8 << 20
	// Total multipart request cap: the image limit plus room for the text
	// fields, enforced before anything is spooled to disk.
	maxMultipartBytes = services.MaxImageBytes + 1<<20
	maxTitleLen       = 200
	maxContentLen     = 5000
	formFieldImage    = "image"
)

// BoardHandler provides HTTP handlers for posts.
type BoardHandler struct {
	boardService *services.BoardService
}

// NewBoardHandler constructs a handler with the provided service.
func NewBoardHandler(boardService *services.BoardService) *BoardHandler {
	return &BoardHandler{boardService: boardService}
}

// BoardRouter registers post routes on the given router.
func BoardRouter(r chi.Router, boardService *services.BoardService, auth *Authenticator) {
	handler := NewBoardHandler(boardService)

	r.With(auth.OptionalAuth).Get("/", handler.List)
	r.With(auth.RequireAuth).Post("/", handler.Create)
	r.Route("/{boardID}", func(r chi.Router) {
		r.With(auth.OptionalAuth).Get("/", handler.Get)
		r.With(auth.RequireAuth).Patch("/", handler.Update)
		r.With(auth.RequireAuth).Delete("/", handler.Delete)
	})
}

// UploadsRouter serves stored post images.
func UploadsRouter(r chi.Router, boardService *services.BoardService) {
	handler := NewBoardHandler(boardService)
	r.Get("/{key}", handler.ServeImage)
}

// BoardPage is the paginated list payload.
type BoardPage struct {
	Content       []types.Board `json:"content"`
	Pageable      Pageable      `json:"pageable"`
	TotalPages    int           `json:"totalPages"`
	TotalElements int           `json:"totalElements"`
}

type Pageable struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// List returns a page of posts, newest first, optionally filtered by
// category.
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var category types.Category
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category = types.Category(strings.ToUpper(raw))
		if !category.Valid() {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
	}

	boards, total, err := h.boardService.List(r.Context(), page*size, size, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if boards == nil {
		boards = []types.Board{}
	}

	totalPages := (total + size - 1) / size
	writeData(w, http.StatusOK, "", BoardPage{
		Content:       boards,
		Pageable:      Pageable{PageNumber: page, PageSize: size},
		TotalPages:    totalPages,
		TotalElements: total,
	})
}

// Get returns a single post by id.
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := boardID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	board, err := h.boardService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load post")
		return
	}

	writeData(w, http.StatusOK, "", board)
}

// Create makes a new post. The body is either JSON or multipart form data
// with an optional image file.
func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input, err := parseBoardInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if fieldErrors := validateBoardInput(input, true); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	params := services.CreateBoardParams{
		Image: input.image,
	}
	if input.title != nil {
		params.Title = *input.title
	}
	if input.content != nil {
		params.Content = *input.content
	}
	if input.category != nil {
		params.Category = *input.category
	}

	board, err := h.boardService.Create(r.Context(), params, user)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedImage) {
			writeError(w, http.StatusBadRequest, "unsupported image file")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	writeData(w, http.StatusCreated, "post created", board)
}

// Update applies a partial edit to the caller's own post.
func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := boardID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	input, err := parseBoardInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if fieldErrors := validateBoardInput(input, false); len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	board, err := h.boardService.Update(r.Context(), id, services.UpdateBoardParams{
		Title:    input.title,
		Content:  input.content,
		Category: input.category,
		Image:    input.image,
	}, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not the author of this post")
		case errors.Is(err, services.ErrUnsupportedImage):
			writeError(w, http.StatusBadRequest, "unsupported image file")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update post")
		}
		return
	}

	writeData(w, http.StatusOK, "post updated", board)
}

// Delete removes the caller's own post.
func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := boardID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	if err := h.boardService.Delete(r.Context(), id, user); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not the author of this post")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete post")
		}
		return
	}

	writeData(w, http.StatusOK, "post deleted", nil)
}

// ServeImage streams a stored post image.
func (h *BoardHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid image key")
		return
	}

	reader, err := h.boardService.OpenImage(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		return
	}
}

// boardInput is the decoded create/update body; nil fields were absent.
type boardInput struct {
	title    *string
	content  *string
	category *types.Category
	image    *services.ImageUpload
}

func parseBoardInput(w http.ResponseWriter, r *http.Request) (boardInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return parseBoardMultipart(w, r)
	}
	return parseBoardJSON(r)
}

func parseBoardJSON(r *http.Request) (boardInput, error) {
	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		Category *string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return boardInput{}, errors.New("invalid request body")
	}

	input := boardInput{title: req.Title, content: req.Content}
	if req.Category != nil {
		category := types.Category(strings.ToUpper(strings.TrimSpace(*req.Category)))
		input.category = &category
	}
	return input, nil
}

func parseBoardMultipart(w http.ResponseWriter, r *http.Request) (boardInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return boardInput{}, errors.New("request body is too large")
		}
		return boardInput{}, errors.New("invalid multipart body")
	}

	var input boardInput
	if values, ok := r.MultipartForm.Value["title"]; ok && len(values) > 0 {
		input.title = &values[0]
	}
	if values, ok := r.MultipartForm.Value["content"]; ok && len(values) > 0 {
		input.content = &values[0]
	}
	if values, ok := r.MultipartForm.Value["category"]; ok && len(values) > 0 {
		category := types.Category(strings.ToUpper(strings.TrimSpace(values[0])))
		input.category = &category
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil
		}
		return boardInput{}, errors.New("invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxImageBytes+1))
	if err != nil {
		return boardInput{}, errors.New("failed to read image upload")
	}
	if len(data) > services.MaxImageBytes {
		return boardInput{}, errors.New("image exceeds the 5 MiB limit")
	}

	input.image = &services.ImageUpload{Filename: header.Filename, Data: data}
	return input, nil
}

// validateBoardInput checks field constraints. For a create every field is
// required; for an update only present fields are checked.
func validateBoardInput(input boardInput, requireAll bool) []FieldError {
	var fieldErrors []FieldError

	if input.title != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*input.title)); n < 1 || n > maxTitleLen {
			fieldErrors = append(fieldErrors, FieldError{Field: "title", Message: "title must be 1-200 characters"})
		}
	} else if requireAll {
		fieldErrors = append(fieldErrors, FieldError{Field: "title", Message: "title is required"})
	}

	if input.content != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*input.content)); n < 1 || n > maxContentLen {
			fieldErrors = append(fieldErrors, FieldError{Field: "content", Message: "content must be 1-5000 characters"})
		}
	} else if requireAll {
		fieldErrors = append(fieldErrors, FieldError{Field: "content", Message: "content is required"})
	}

	if input.category != nil {
		if !input.category.Valid() {
			fieldErrors = append(fieldErrors, FieldError{Field: "category", Message: "category must be NOTICE, FREE, or QNA"})
		}
	} else if requireAll {
		fieldErrors = append(fieldErrors, FieldError{Field: "category", Message: "category is required"})
	}

	return fieldErrors
}

func boardID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "boardID"))
}
