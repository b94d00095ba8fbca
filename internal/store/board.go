package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openboard/openboard/types"
)

// BoardRepository handles persistence for board posts.
type BoardRepository struct {
	db *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// List returns posts ordered newest-first, optionally filtered by category,
// together with the total count for the same filter.
func (r *BoardRepository) List(ctx context.Context, offset, limit int, category types.Category) ([]types.Board, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if category != "" {
		const countQuery = `SELECT COUNT(1) FROM boards WHERE category = $1`
		if err := r.db.QueryRowContext(ctx, countQuery, category).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		const countQuery = `SELECT COUNT(1) FROM boards`
		if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	query := `
		SELECT b.id, b.title, b.content, b.category, b.image_url, b.author_id, u.login_id, u.name, b.created_at, b.updated_at
		FROM boards b
		JOIN users u ON u.id = b.author_id`
	args := []any{}
	if category != "" {
		query += ` WHERE b.category = $3`
		args = append(args, offset, limit, category)
	} else {
		args = append(args, offset, limit)
	}
	query += `
		ORDER BY b.created_at DESC, b.id DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	boards := make([]types.Board, 0, limit)
	for rows.Next() {
		board, err := scanBoardRow(rows)
		if err != nil {
			return nil, 0, err
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return boards, total, nil
}

func (r *BoardRepository) Get(ctx context.Context, id int) (types.Board, error) {
	const query = `
		SELECT b.id, b.title, b.content, b.category, b.image_url, b.author_id, u.login_id, u.name, b.created_at, b.updated_at
		FROM boards b
		JOIN users u ON u.id = b.author_id
		WHERE b.id = $1`
	var board types.Board
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID,
		&board.Title,
		&board.Content,
		&board.Category,
		&imageURL,
		&board.AuthorID,
		&board.Author.LoginID,
		&board.Author.Name,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Board{}, ErrNotFound
		}
		return types.Board{}, err
	}
	board.ImageURL = imageURL.String
	return board, nil
}

func (r *BoardRepository) Create(ctx context.Context, board types.Board) (types.Board, error) {
	now := time.Now()
	board.CreatedAt = now
	board.UpdatedAt = now

	const query = `
		INSERT INTO boards (title, content, category, image_url, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		board.Title,
		board.Content,
		board.Category,
		nullable(board.ImageURL),
		board.AuthorID,
		board.CreatedAt,
		board.UpdatedAt,
	).Scan(&board.ID); err != nil {
		return types.Board{}, err
	}
	return board, nil
}

func (r *BoardRepository) Update(ctx context.Context, board types.Board) (types.Board, error) {
	board.UpdatedAt = time.Now()

	const query = `
		UPDATE boards
		SET title = $1,
			content = $2,
			category = $3,
			image_url = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		board.Title,
		board.Content,
		board.Category,
		nullable(board.ImageURL),
		board.UpdatedAt,
		board.ID,
	)
	if err != nil {
		return types.Board{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Board{}, err
	}
	if affected == 0 {
		return types.Board{}, ErrNotFound
	}
	return board, nil
}

func (r *BoardRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM boards WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoardRow(rows rowScanner) (types.Board, error) {
	var board types.Board
	var imageURL sql.NullString
	if err := rows.Scan(
		&board.ID,
		&board.Title,
		&board.Content,
		&board.Category,
		&imageURL,
		&board.AuthorID,
		&board.Author.LoginID,
		&board.Author.Name,
		&board.CreatedAt,
		&board.UpdatedAt,
	); err != nil {
		return types.Board{}, err
	}
	board.ImageURL = imageURL.String
	return board, nil
}
