package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/openboard/internal/events"
	"github.com/openboard/openboard/internal/storage"
	"github.com/openboard/openboard/types"
)

const (
	// MaxImageBytes caps an uploaded post image at 5 MiB.
	MaxImageBytes = 5 << 20

	imageURLPrefix = "/uploads/"
)

var allowedImageExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ErrUnsupportedImage is returned for uploads that are too large or have a
// disallowed extension.
var ErrUnsupportedImage = errors.New("unsupported image file")

// BoardRepository defines persistence operations for posts.
type BoardRepository interface {
	List(ctx context.Context, offset, limit int, category types.Category) ([]types.Board, int, error)
	Get(ctx context.Context, id int) (types.Board, error)
	Create(ctx context.Context, board types.Board) (types.Board, error)
	Update(ctx context.Context, board types.Board) (types.Board, error)
	Delete(ctx context.Context, id int) error
}

// ImageUpload is a parsed image attachment.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// BoardService encapsulates post use-cases: listing, ownership-gated
// mutation, and image attachment storage.
type BoardService struct {
	repo   BoardRepository
	images *storage.Storage
	events *events.Publisher
}

func NewBoardService(repo BoardRepository, images *storage.Storage, publisher *events.Publisher) *BoardService {
	return &BoardService{repo: repo, images: images, events: publisher}
}

func (s *BoardService) List(ctx context.Context, offset, limit int, category types.Category) ([]types.Board, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.repo.List(ctx, offset, limit, category)
}

func (s *BoardService) Get(ctx context.Context, id int) (types.Board, error) {
	return s.repo.Get(ctx, id)
}

// CreateBoardParams carries already-validated post input.
type CreateBoardParams struct {
	Title    string
	Content  string
	Category types.Category
	Image    *ImageUpload
}

func (s *BoardService) Create(ctx context.Context, params CreateBoardParams, author types.User) (types.Board, error) {
	imageURL, err := s.storeImage(ctx, params.Image)
	if err != nil {
		return types.Board{}, err
	}

	board, err := s.repo.Create(ctx, types.Board{
		Title:    params.Title,
		Content:  params.Content,
		Category: params.Category,
		ImageURL: imageURL,
		AuthorID: author.ID,
	})
	if err != nil {
		return types.Board{}, fmt.Errorf("create post: %w", err)
	}
	board.Author = author.Public()

	s.events.Publish(ctx, events.TypeBoardCreated, author.ID, map[string]any{"boardId": board.ID, "category": board.Category})
	return board, nil
}

// UpdateBoardParams carries a partial update; nil fields are left unchanged.
type UpdateBoardParams struct {
	Title    *string
	Content  *string
	Category *types.Category
	Image    *ImageUpload
}

func (s *BoardService) Update(ctx context.Context, id int, params UpdateBoardParams, user types.User) (types.Board, error) {
	board, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Board{}, err
	}
	if !IsOwner(board, user) {
		return types.Board{}, ErrForbidden
	}

	if params.Title != nil {
		board.Title = *params.Title
	}
	if params.Content != nil {
		board.Content = *params.Content
	}
	if params.Category != nil {
		board.Category = *params.Category
	}
	if params.Image != nil {
		imageURL, err := s.storeImage(ctx, params.Image)
		if err != nil {
			return types.Board{}, err
		}
		s.removeImage(ctx, board.ImageURL)
		board.ImageURL = imageURL
	}

	updated, err := s.repo.Update(ctx, board)
	if err != nil {
		return types.Board{}, fmt.Errorf("update post: %w", err)
	}
	updated.Author = board.Author

	s.events.Publish(ctx, events.TypeBoardUpdated, user.ID, map[string]any{"boardId": updated.ID})
	return updated, nil
}

func (s *BoardService) Delete(ctx context.Context, id int, user types.User) error {
	board, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !IsOwner(board, user) {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeImage(ctx, board.ImageURL)

	s.events.Publish(ctx, events.TypeBoardDeleted, user.ID, map[string]any{"boardId": id})
	return nil
}

// OpenImage streams a stored post image by object key.
func (s *BoardService) OpenImage(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.images == nil {
		return nil, errors.New("image storage is not configured")
	}
	return s.images.Get(ctx, key)
}

// IsOwner reports whether the user is the post's recorded author.
func IsOwner(board types.Board, user types.User) bool {
	return board.AuthorID == user.ID
}

func (s *BoardService) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	if image == nil {
		return "", nil
	}
	if s.images == nil {
		return "", errors.New("image storage is not configured")
	}
	if len(image.Data) == 0 || len(image.Data) > MaxImageBytes {
		return "", ErrUnsupportedImage
	}

	ext := strings.ToLower(filepath.Ext(image.Filename))
	if !allowedImageExts[ext] {
		return "", ErrUnsupportedImage
	}

	key := fmt.Sprintf("image-%d-%s%s", time.Now().Unix(), uuid.NewString(), ext)
	contentType := "image/" + strings.TrimPrefix(ext, ".")
	if ext == ".jpg" {
		contentType = "image/jpeg"
	}

	reader := bytes.NewReader(image.Data)
	if err := s.images.Put(ctx, key, reader, int64(len(image.Data)), contentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return imageURLPrefix + key, nil
}

// removeImage deletes the previous image object, best-effort.
func (s *BoardService) removeImage(ctx context.Context, imageURL string) {
	if s.images == nil || imageURL == "" {
		return
	}
	key := strings.TrimPrefix(imageURL, imageURLPrefix)
	_ = s.images.Delete(ctx, key)
}
